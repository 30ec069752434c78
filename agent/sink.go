// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/connector/lib/bytestructure"
	"github.com/bureau-foundation/connector/lib/clock"
	"github.com/bureau-foundation/connector/lib/codec"
	"github.com/bureau-foundation/connector/lib/compress"
)

// Delivery is one verified sensory payload.
type Delivery struct {
	AgentID    string
	Session    string
	Sequence   uint64
	Structure  bytestructure.Structure
	ReceivedAt time.Time
}

// Handler consumes deliveries. An error rejects the frame; the client
// sees a [*RemoteError] with [CodeRejected] carrying the error text.
type Handler func(ctx context.Context, delivery Delivery) error

// EventKind names what a sink did with a frame.
type EventKind string

const (
	EventRegistered   EventKind = "registered"
	EventSensory      EventKind = "sensory"
	EventHeartbeat    EventKind = "heartbeat"
	EventDeregistered EventKind = "deregistered"
	EventRejected     EventKind = "rejected"
)

// Event is reported to [SinkOptions].Observer after every frame.
type Event struct {
	Kind     EventKind
	AgentID  string
	Sequence uint64
	// Code is set for EventRejected.
	Code string
}

// SinkOptions configure a [Sink]. Only Handler is required.
type SinkOptions struct {
	Handler Handler

	// Observer, when set, is called synchronously after every frame.
	Observer func(Event)

	// MaxPayloadSize bounds the uncompressed size of one payload.
	// Defaults to [DefaultMaxPayloadSize].
	MaxPayloadSize int

	Clock  clock.Clock
	Logger *slog.Logger
}

// AgentInfo describes a registered agent as the sink last saw it.
type AgentInfo struct {
	AgentID      string
	AgentType    AgentType
	Session      string
	Capabilities Capabilities
	Endpoints    Endpoints
	RegisteredAt time.Time
	LastSeen     time.Time
	Payloads     uint64
}

// Sink accepts agent connections and hands verified payloads to its
// handler. A registration lasts as long as the connection that made
// it.
type Sink struct {
	handler        Handler
	observer       func(Event)
	maxPayloadSize int
	clock          clock.Clock
	logger         *slog.Logger

	mu     sync.Mutex
	agents map[string]*AgentInfo

	activeConnections sync.WaitGroup
}

// NewSink returns a sink. Panics if options.Handler is nil.
func NewSink(options SinkOptions) *Sink {
	if options.Handler == nil {
		panic("agent.NewSink: Handler is required")
	}
	if options.MaxPayloadSize <= 0 {
		options.MaxPayloadSize = DefaultMaxPayloadSize
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Sink{
		handler:        options.Handler,
		observer:       options.Observer,
		maxPayloadSize: options.MaxPayloadSize,
		clock:          options.Clock,
		logger:         options.Logger,
		agents:         make(map[string]*AgentInfo),
	}
}

// Agents returns the registered agents ordered by ID.
func (s *Sink) Agents() []AgentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	agents := make([]AgentInfo, 0, len(s.agents))
	for _, info := range s.agents {
		agents = append(agents, *info)
	}
	slices.SortFunc(agents, func(a, b AgentInfo) int { return cmp.Compare(a.AgentID, b.AgentID) })
	return agents
}

// Serve accepts connections on listener until ctx is cancelled, then
// closes the listener and every open connection and waits for their
// handlers to return. It returns nil after a cancellation.
func (s *Sink) Serve(ctx context.Context, listener net.Listener) error {
	// Unblock Accept when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()
	defer listener.Close()

	s.logger.Info("sink listening", "address", listener.Addr().String())

	var acceptErr error
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				acceptErr = fmt.Errorf("accepting connection: %w", err)
			}
			break
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			closeOnCancel := context.AfterFunc(ctx, func() { conn.Close() })
			defer closeOnCancel()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return acceptErr
}

// writeTimeout bounds each ack write.
const writeTimeout = 10 * time.Second

// connectionState is what one connection has registered.
type connectionState struct {
	agentID string
	session string
}

func (s *Sink) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	logger := s.logger.With("remote", remote)

	var state connectionState
	defer s.unregister(&state)

	limit := s.maxPayloadSize + frameOverhead
	for {
		var incoming frame
		if err := codec.ReadMessage(conn, limit, &incoming); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				logger.Warn("closing connection after unreadable frame", "error", err)
			}
			return
		}

		reply := s.handleFrame(ctx, &state, &incoming)
		reply.Sequence = incoming.Sequence
		event := Event{Kind: eventFor(incoming.Kind), AgentID: incoming.AgentID, Sequence: incoming.Sequence}
		if !reply.OK {
			event = Event{Kind: EventRejected, AgentID: incoming.AgentID, Sequence: incoming.Sequence, Code: reply.Code}
			logger.Debug("rejected frame",
				"agent_id", incoming.AgentID,
				"kind", incoming.Kind,
				"code", reply.Code,
				"message", reply.Message,
			)
		}

		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := codec.WriteMessage(conn, reply); err != nil {
			logger.Debug("failed to write ack", "error", err)
			return
		}
		if s.observer != nil {
			s.observer(event)
		}
	}
}

func eventFor(kind frameKind) EventKind {
	switch kind {
	case frameRegister:
		return EventRegistered
	case frameSensory:
		return EventSensory
	case frameHeartbeat:
		return EventHeartbeat
	case frameDeregister:
		return EventDeregistered
	default:
		return EventRejected
	}
}

func reject(code, format string, args ...any) ack {
	return ack{OK: false, Code: code, Message: fmt.Sprintf(format, args...)}
}

func (s *Sink) handleFrame(ctx context.Context, state *connectionState, incoming *frame) ack {
	if incoming.AgentID == "" {
		return reject(CodeMalformed, "frame has no agent id")
	}
	if incoming.Kind == frameRegister {
		return s.register(state, incoming)
	}
	if state.session == "" || incoming.AgentID != state.agentID || incoming.Session != state.session {
		return reject(CodeNotRegistered, "agent %q session %q is not registered on this connection", incoming.AgentID, incoming.Session)
	}

	switch incoming.Kind {
	case frameSensory:
		return s.deliver(ctx, incoming)
	case frameHeartbeat:
		s.touch(state, false)
		return ack{OK: true}
	case frameDeregister:
		s.unregister(state)
		s.logger.Info("agent deregistered", "agent_id", incoming.AgentID)
		return ack{OK: true}
	default:
		return reject(CodeMalformed, "unknown frame kind %q", incoming.Kind)
	}
}

func (s *Sink) register(state *connectionState, incoming *frame) ack {
	if incoming.Session == "" {
		return reject(CodeMalformed, "register frame has no session")
	}
	if !incoming.AgentType.Valid() {
		return reject(CodeMalformed, "register frame has agent type %d", uint8(incoming.AgentType))
	}
	// Re-registration on the same connection replaces the old session.
	s.unregister(state)

	now := s.clock.Now()
	info := &AgentInfo{
		AgentID:      incoming.AgentID,
		AgentType:    incoming.AgentType,
		Session:      incoming.Session,
		RegisteredAt: now,
		LastSeen:     now,
	}
	if incoming.Capabilities != nil {
		info.Capabilities = *incoming.Capabilities
	}
	if incoming.Endpoints != nil {
		info.Endpoints = *incoming.Endpoints
	}

	s.mu.Lock()
	s.agents[info.AgentID] = info
	s.mu.Unlock()

	state.agentID = info.AgentID
	state.session = info.Session
	s.logger.Info("agent registered",
		"agent_id", info.AgentID,
		"agent_type", info.AgentType,
		"session", info.Session,
	)
	return ack{OK: true}
}

// unregister removes the connection's registration if it is still the
// current one for that agent ID.
func (s *Sink) unregister(state *connectionState) {
	if state.session == "" {
		return
	}
	s.mu.Lock()
	if info, ok := s.agents[state.agentID]; ok && info.Session == state.session {
		delete(s.agents, state.agentID)
	}
	s.mu.Unlock()
	*state = connectionState{}
}

func (s *Sink) touch(state *connectionState, payload bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.agents[state.agentID]
	if !ok || info.Session != state.session {
		return
	}
	info.LastSeen = s.clock.Now()
	if payload {
		info.Payloads++
	}
}

func (s *Sink) deliver(ctx context.Context, incoming *frame) ack {
	if int64(incoming.Size) > int64(s.maxPayloadSize) {
		return reject(CodePayloadTooLarge, "payload is %d bytes, maximum is %d", incoming.Size, s.maxPayloadSize)
	}
	data, err := compress.Decompress(incoming.Payload, incoming.Compression, int(incoming.Size))
	if err != nil {
		return reject(CodeMalformed, "%v", err)
	}
	expected, err := bytestructure.DigestFromBytes(incoming.Digest)
	if err != nil {
		return reject(CodeMalformed, "%v", err)
	}
	if actual := bytestructure.DigestBytes(data); actual != expected {
		return reject(CodeDigestMismatch, "payload digest %s, frame claims %s", actual, expected)
	}
	structure, err := bytestructure.FromBytes(data)
	if err != nil {
		return reject(CodeMalformed, "%v", err)
	}

	delivery := Delivery{
		AgentID:    incoming.AgentID,
		Session:    incoming.Session,
		Sequence:   incoming.Sequence,
		Structure:  structure,
		ReceivedAt: s.clock.Now(),
	}
	if err := s.handler(ctx, delivery); err != nil {
		return reject(CodeRejected, "%v", err)
	}
	s.touch(&connectionState{agentID: incoming.AgentID, session: incoming.Session}, true)
	return ack{OK: true}
}
