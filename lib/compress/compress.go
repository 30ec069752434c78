// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/connector/lib/fault"
)

// Tag identifies the compression algorithm of a payload. Tags are
// carried in agent frames; these values are protocol constants.
type Tag uint8

const (
	// None is an uncompressed payload.
	None Tag = 0

	// LZ4 is LZ4 block compression.
	LZ4 Tag = 1

	// Zstd is zstd at the default level.
	Zstd Tag = 2

	// BG4LZ4 groups bytes by position within each 4-byte word before
	// LZ4. Neuron bodies are u32/f32 arrays whose high-order bytes
	// repeat, so the grouped form compresses better.
	BG4LZ4 Tag = 3
)

// String returns the tag name used in configuration.
func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case BG4LZ4:
		return "bg4_lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseTag parses a tag from its configuration name.
func ParseTag(name string) (Tag, error) {
	switch name {
	case "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	case "bg4_lz4":
		return BG4LZ4, nil
	default:
		return 0, fault.Configurationf("unknown compression %q (want none, lz4, zstd or bg4_lz4)", name)
	}
}

// MarshalText implements encoding.TextMarshaler so tags read naturally
// in YAML and CBOR diagnostics.
func (tag Tag) MarshalText() ([]byte, error) {
	switch tag {
	case None, LZ4, Zstd, BG4LZ4:
		return []byte(tag.String()), nil
	default:
		return nil, fault.Configurationf("unknown compression tag %d", uint8(tag))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (tag *Tag) UnmarshalText(text []byte) error {
	parsed, err := ParseTag(string(text))
	if err != nil {
		return err
	}
	*tag = parsed
	return nil
}

// Compress compresses data with the requested algorithm. When the
// result would not be smaller than the input, the input is returned
// unchanged with tag None. The returned tag is the one the receiver
// must pass to Decompress.
func Compress(data []byte, tag Tag) ([]byte, Tag, error) {
	var (
		compressed []byte
		err        error
	)
	switch tag {
	case None:
		return data, None, nil
	case LZ4:
		compressed, err = compressLZ4(data)
	case Zstd:
		compressed, err = compressZstd(data)
	case BG4LZ4:
		compressed, err = compressLZ4(bg4Transpose(data))
	default:
		return nil, 0, fault.Configurationf("unsupported compression tag %d", uint8(tag))
	}
	if errors.Is(err, errIncompressible) {
		return data, None, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return compressed, tag, nil
}

// Decompress inverts Compress. The output length must equal
// uncompressedSize exactly; any mismatch or corrupt input is a
// fault.ErrDecode error. For None the input is returned without a copy.
func Decompress(compressed []byte, tag Tag, uncompressedSize int) ([]byte, error) {
	if uncompressedSize < 0 {
		return nil, fault.Decodef("negative uncompressed size %d", uncompressedSize)
	}
	switch tag {
	case None:
		if len(compressed) != uncompressedSize {
			return nil, fault.Decodef("uncompressed payload: size %d does not match expected %d",
				len(compressed), uncompressedSize)
		}
		return compressed, nil
	case LZ4:
		return decompressLZ4(compressed, uncompressedSize)
	case Zstd:
		return decompressZstd(compressed, uncompressedSize)
	case BG4LZ4:
		transposed, err := decompressLZ4(compressed, uncompressedSize)
		if err != nil {
			return nil, err
		}
		return bg4Untranspose(transposed), nil
	default:
		return nil, fault.Decodef("unsupported compression tag %d", uint8(tag))
	}
}

var errIncompressible = errors.New("data is incompressible")

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fault.Decodef("lz4 decompress: %v", err)
	}
	if read != uncompressedSize {
		return nil, fault.Decodef("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

// zstdStreamWindow admits frames written by a streaming encoder at the
// default level, which carry no content size. Larger windows are
// refused before the decoder allocates them.
const zstdStreamWindow = 8 << 20

// zstdEncoder is safe for concurrent use; one serves the whole
// process. Decoding builds a reader per payload so the output can be
// bounded by the size the frame declares.
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

// decompressZstd never produces more than uncompressedSize bytes.
// A frame header whose content size disagrees is rejected before any
// decoding, and frames without a content size are streamed and cut off
// one byte past the limit.
func decompressZstd(compressed []byte, uncompressedSize int) ([]byte, error) {
	var header zstd.Header
	if err := header.Decode(compressed); err != nil {
		return nil, fault.Decodef("zstd decompress: %v", err)
	}
	if header.HasFCS && header.FrameContentSize != uint64(uncompressedSize) {
		return nil, fault.Decodef("zstd decompress: frame declares %d bytes, expected %d",
			header.FrameContentSize, uncompressedSize)
	}

	decoder, err := zstd.NewReader(bytes.NewReader(compressed),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxWindow(max(uint64(uncompressedSize), zstdStreamWindow)),
	)
	if err != nil {
		return nil, fault.Decodef("zstd decompress: %v", err)
	}
	defer decoder.Close()

	result, err := io.ReadAll(io.LimitReader(decoder, int64(uncompressedSize)+1))
	if err != nil {
		return nil, fault.Decodef("zstd decompress: %v", err)
	}
	if len(result) != uncompressedSize {
		return nil, fault.Decodef("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}

// bg4Transpose stores byte 0 of every 4-byte word first, then every
// byte 1, and so on. Trailing bytes past the last whole word are kept
// in place at the end.
func bg4Transpose(data []byte) []byte {
	groups := len(data) / 4
	output := make([]byte, len(data))
	for i := range groups {
		for position := range 4 {
			output[position*groups+i] = data[i*4+position]
		}
	}
	copy(output[groups*4:], data[groups*4:])
	return output
}

// bg4Untranspose inverts bg4Transpose.
func bg4Untranspose(data []byte) []byte {
	groups := len(data) / 4
	output := make([]byte, len(data))
	for i := range groups {
		for position := range 4 {
			output[i*4+position] = data[position*groups+i]
		}
	}
	copy(output[groups*4:], data[groups*4:])
	return output
}
