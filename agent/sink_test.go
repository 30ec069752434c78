// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"net"
	"testing"
	"time"

	"github.com/bureau-foundation/connector/lib/bytestructure"
	"github.com/bureau-foundation/connector/lib/codec"
	"github.com/bureau-foundation/connector/lib/compress"
	"github.com/bureau-foundation/connector/lib/testutil"
)

// rawConn speaks the frame protocol directly so tests can send frames
// a well-behaved client never would.
type rawConn struct {
	t    *testing.T
	conn net.Conn
}

func dialRaw(t *testing.T, address string) *rawConn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", address, testTimeout)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(testTimeout))
	return &rawConn{t: t, conn: conn}
}

func (r *rawConn) exchange(f frame) ack {
	r.t.Helper()
	if err := codec.WriteMessage(r.conn, f); err != nil {
		r.t.Fatalf("WriteMessage: %v", err)
	}
	var reply ack
	if err := codec.ReadMessage(r.conn, maxAckSize, &reply); err != nil {
		r.t.Fatalf("ReadMessage: %v", err)
	}
	if reply.Sequence != f.Sequence {
		r.t.Fatalf("ack sequence = %d, want %d", reply.Sequence, f.Sequence)
	}
	return reply
}

func registerFrame(sequence uint64) frame {
	return frame{
		Kind:      frameRegister,
		AgentID:   "raw-agent",
		AgentType: Sensory,
		Session:   "session-1",
		Sequence:  sequence,
	}
}

func sensoryFrame(t *testing.T, sequence uint64, tag compress.Tag) frame {
	t.Helper()
	_, structure := proximityStructure(t)
	data := structure.Bytes()
	compressed, used, err := compress.Compress(data, tag)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	digest := structure.Digest()
	return frame{
		Kind:        frameSensory,
		AgentID:     "raw-agent",
		AgentType:   Sensory,
		Session:     "session-1",
		Sequence:    sequence,
		Compression: used,
		Size:        uint32(len(data)),
		Digest:      digest[:],
		Payload:     compressed,
	}
}

func TestSinkRejections(t *testing.T) {
	tests := []struct {
		name     string
		register bool
		modify   func(*frame)
		code     string
	}{
		{"accepted", true, func(*frame) {}, ""},
		{"not registered", false, func(*frame) {}, CodeNotRegistered},
		{"wrong session", true, func(f *frame) { f.Session = "other" }, CodeNotRegistered},
		{"wrong agent", true, func(f *frame) { f.AgentID = "someone-else" }, CodeNotRegistered},
		{"missing agent id", true, func(f *frame) { f.AgentID = "" }, CodeMalformed},
		{"digest mismatch", true, func(f *frame) {
			digest := bytestructure.DigestBytes([]byte("something else"))
			f.Digest = digest[:]
		}, CodeDigestMismatch},
		{"short digest", true, func(f *frame) { f.Digest = f.Digest[:4] }, CodeMalformed},
		{"wrong size", true, func(f *frame) { f.Size++ }, CodeMalformed},
		{"oversized", true, func(f *frame) { f.Size = DefaultMaxPayloadSize + 1 }, CodePayloadTooLarge},
		{"unknown kind", true, func(f *frame) { f.Kind = "telepathy" }, CodeMalformed},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ts := startSink(t, nil)
			raw := dialRaw(t, ts.address)
			if test.register {
				if reply := raw.exchange(registerFrame(1)); !reply.OK {
					t.Fatalf("register rejected: %s %s", reply.Code, reply.Message)
				}
			}

			f := sensoryFrame(t, 2, compress.None)
			test.modify(&f)
			reply := raw.exchange(f)
			if test.code == "" {
				if !reply.OK {
					t.Fatalf("frame rejected: %s %s", reply.Code, reply.Message)
				}
				requireDelivery(t, ts)
				return
			}
			if reply.OK {
				t.Fatalf("frame accepted, want %s", test.code)
			}
			if reply.Code != test.code {
				t.Errorf("code = %q (%s), want %q", reply.Code, reply.Message, test.code)
			}
			select {
			case delivery := <-ts.deliveries:
				t.Errorf("rejected frame was delivered: sequence %d", delivery.Sequence)
			default:
			}
		})
	}
}

func requireDelivery(t *testing.T, ts *testSink) {
	t.Helper()
	delivery := testutil.RequireReceive(t, ts.deliveries, testTimeout, "waiting for delivery")
	if delivery.AgentID != "raw-agent" {
		t.Errorf("delivery from %q, want raw-agent", delivery.AgentID)
	}
}

func TestSinkRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*frame)
	}{
		{"no session", func(f *frame) { f.Session = "" }},
		{"no agent id", func(f *frame) { f.AgentID = "" }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ts := startSink(t, nil)
			raw := dialRaw(t, ts.address)
			f := registerFrame(1)
			test.modify(&f)
			if reply := raw.exchange(f); reply.OK || reply.Code != CodeMalformed {
				t.Errorf("reply = %+v, want %s rejection", reply, CodeMalformed)
			}
			if agents := ts.sink.Agents(); len(agents) != 0 {
				t.Errorf("sink registered %d agents from an invalid frame", len(agents))
			}
		})
	}
}

func TestSinkReregistrationReplacesSession(t *testing.T) {
	ts := startSink(t, nil)
	raw := dialRaw(t, ts.address)
	raw.exchange(registerFrame(1))

	second := registerFrame(2)
	second.Session = "session-2"
	if reply := raw.exchange(second); !reply.OK {
		t.Fatalf("re-registration rejected: %s", reply.Message)
	}
	agents := ts.sink.Agents()
	if len(agents) != 1 || agents[0].Session != "session-2" {
		t.Fatalf("agents = %+v, want one agent on session-2", agents)
	}

	// Frames on the old session are refused.
	if reply := raw.exchange(sensoryFrame(t, 3, compress.LZ4)); reply.Code != CodeNotRegistered {
		t.Errorf("old-session frame code = %q, want %q", reply.Code, CodeNotRegistered)
	}
}

func TestSinkAgentsOrdered(t *testing.T) {
	ts := startSink(t, nil)
	for _, id := range []string{"zeta", "alpha", "mu"} {
		raw := dialRaw(t, ts.address)
		f := registerFrame(1)
		f.AgentID = id
		raw.exchange(f)
	}
	agents := ts.sink.Agents()
	if len(agents) != 3 {
		t.Fatalf("sink has %d agents, want 3", len(agents))
	}
	for i, want := range []string{"alpha", "mu", "zeta"} {
		if agents[i].AgentID != want {
			t.Errorf("agents[%d] = %q, want %q", i, agents[i].AgentID, want)
		}
	}
}

func TestNewSinkRequiresHandler(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewSink without a handler should panic")
		}
	}()
	NewSink(SinkOptions{})
}
