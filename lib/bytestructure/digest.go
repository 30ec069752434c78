// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bytestructure

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/connector/lib/fault"
)

// DigestSize is the length of a structure digest in bytes.
const DigestSize = 32

// Digest is a keyed BLAKE3 hash of a structure's encoded bytes.
type Digest [DigestSize]byte

// digestKey domain-separates structure digests from other BLAKE3 uses
// in the module.
var digestKey = domainKey("connector.bytestructure.v1")

func domainKey(name string) [32]byte {
	var key [32]byte
	copy(key[:], name)
	return key
}

// Digest returns the keyed BLAKE3 digest of s's bytes.
func (s Structure) Digest() Digest {
	return DigestBytes(s.data)
}

// DigestBytes hashes raw structure bytes without parsing them. Used by
// receivers before FromBytes to reject corrupted frames early.
func DigestBytes(data []byte) Digest {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("bytestructure: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// DigestFromBytes converts a wire digest back to a Digest.
func DigestFromBytes(data []byte) (Digest, error) {
	if len(data) != DigestSize {
		return Digest{}, fault.Decodef("digest is %d bytes, want %d", len(data), DigestSize)
	}
	var digest Digest
	copy(digest[:], data)
	return digest, nil
}

// String returns the lowercase hex form.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }
