// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/goki/mat32"
	"github.com/google/uuid"

	"github.com/bureau-foundation/connector/lib/bytestructure"
	"github.com/bureau-foundation/connector/lib/clock"
	"github.com/bureau-foundation/connector/lib/codec"
	"github.com/bureau-foundation/connector/lib/compress"
	"github.com/bureau-foundation/connector/lib/fault"
	"github.com/bureau-foundation/connector/lib/neuron"
)

// ClientOptions are the collaborators of a [Client]. Zero values select
// a [TCPDialer], the real clock and a discarding logger.
type ClientOptions struct {
	Dialer Dialer
	Clock  clock.Clock
	Logger *slog.Logger
}

// Client is a registered connection to a sink. It is safe for
// concurrent use; frames are exchanged one at a time.
type Client struct {
	config       Config
	capabilities Capabilities
	dialer       Dialer
	clock        clock.Clock
	logger       *slog.Logger

	// connectMu serializes Connect. It is never held together with
	// I/O on an installed connection, so status queries and Close do
	// not wait for a registration in progress.
	connectMu sync.Mutex

	mu         sync.Mutex
	conn       net.Conn
	session    string
	sequence   uint64
	registered bool
	// generation counts Close calls. A registration that finishes
	// after a Close is discarded.
	generation uint64
}

// NewClient validates config and returns an unconnected client.
func NewClient(config Config, options ClientOptions) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}
	capabilities, err := config.Capabilities()
	if err != nil {
		return nil, err
	}
	if options.Dialer == nil {
		options.Dialer = TCPDialer{}
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		config:       config,
		capabilities: capabilities,
		dialer:       options.Dialer,
		clock:        options.Clock,
		logger:       options.Logger.With("agent_id", config.AgentID),
	}, nil
}

// Config returns the validated configuration.
func (c *Client) Config() Config { return c.config }

// IsRegistered reports whether the last registration succeeded and the
// connection has not failed since.
func (c *Client) IsRegistered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

// Session returns the current session ID, or "" when unregistered.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.registered {
		return ""
	}
	return c.session
}

// Connect dials the registration endpoint and registers. A failed
// attempt is retried up to RegistrationRetries times, waiting
// RetryBackoff before the first retry and doubling the wait each time.
// Connect on a registered client is a no-op, and concurrent calls wait
// for the one in progress. Dialing and backoff happen without holding
// the client's state lock.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	if c.registered {
		c.mu.Unlock()
		return nil
	}
	// A stream whose registration was revoked is not reused.
	c.dropLocked()
	generation := c.generation
	c.mu.Unlock()

	attempts := c.config.RegistrationRetries + 1
	backoff := c.config.RetryBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		var session string
		session, lastErr = c.register(ctx, generation)
		if lastErr == nil {
			c.logger.Info("agent registered",
				"endpoint", c.config.Endpoints.Registration,
				"session", session,
				"attempt", attempt,
			)
			return nil
		}
		if errors.Is(lastErr, errClosed) {
			return fault.Connection(lastErr, "registering agent %q", c.config.AgentID)
		}
		c.logger.Warn("registration attempt failed",
			"attempt", attempt,
			"attempts", attempts,
			"error", lastErr,
		)
		if ctx.Err() != nil || attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fault.Connection(ctx.Err(), "registering agent %q", c.config.AgentID)
		case <-c.clock.After(backoff):
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
	return fault.Connection(lastErr, "registering agent %q after %d attempts", c.config.AgentID, attempts)
}

// errClosed ends a registration that raced with [Client.Close].
var errClosed = errors.New("client closed while connecting")

// register runs one registration attempt on a fresh connection. The
// connection is installed only when the sink accepted it and no Close
// happened since generation was read.
func (c *Client) register(ctx context.Context, generation uint64) (string, error) {
	if c.closedSince(generation) {
		return "", errClosed
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()
	conn, err := c.dialer.Dial(dialCtx, c.config.Endpoints.Registration)
	if err != nil {
		return "", fmt.Errorf("dialing %s: %w", c.config.Endpoints.Registration, err)
	}

	session := uuid.NewString()
	endpoints := c.config.Endpoints
	capabilities := c.capabilities
	if err := c.exchange(ctx, conn, &frame{
		Kind:         frameRegister,
		Session:      session,
		Sequence:     1,
		Capabilities: &capabilities,
		Endpoints:    &endpoints,
	}); err != nil {
		conn.Close()
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		conn.Close()
		return "", errClosed
	}
	c.conn = conn
	c.session = session
	c.sequence = 1
	c.registered = true
	return session, nil
}

func (c *Client) closedSince(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation != generation
}

// exchangeLocked numbers f and exchanges it on the installed
// connection.
func (c *Client) exchangeLocked(ctx context.Context, f *frame) error {
	if c.conn == nil {
		return ErrNotRegistered
	}
	c.sequence++
	f.Session = c.session
	f.Sequence = c.sequence
	return c.exchange(ctx, c.conn, f)
}

// exchange writes one frame on conn and reads its ack. Transport
// failures leave the connection unusable; the caller decides whether
// to drop it.
func (c *Client) exchange(ctx context.Context, conn net.Conn, f *frame) error {
	f.AgentID = c.config.AgentID
	f.AgentType = c.config.AgentType

	deadline := time.Now().Add(c.config.ConnectionTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("setting deadline: %w", err)
	}
	// Unblock the read or write if ctx ends first.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if err := codec.WriteMessage(conn, f); err != nil {
		return c.contextOr(ctx, fmt.Errorf("writing %s frame: %w", f.Kind, err))
	}
	var reply ack
	if err := codec.ReadMessage(conn, maxAckSize, &reply); err != nil {
		return c.contextOr(ctx, fmt.Errorf("reading %s ack: %w", f.Kind, err))
	}
	if reply.Sequence != f.Sequence {
		return fmt.Errorf("ack for sequence %d, want %d", reply.Sequence, f.Sequence)
	}
	if !reply.OK {
		return &RemoteError{Code: reply.Code, Message: reply.Message, Sequence: reply.Sequence}
	}
	return nil
}

// contextOr prefers the context's error over the I/O error it caused.
func (c *Client) contextOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return err
}

// sendLocked exchanges one frame on a registered connection. Transport
// failures drop the connection; a not_registered rejection clears the
// registration but keeps the stream.
func (c *Client) sendLocked(ctx context.Context, f *frame) error {
	if !c.registered {
		return fault.Connection(ErrNotRegistered, "sending %s frame", f.Kind)
	}
	err := c.exchangeLocked(ctx, f)
	if err == nil {
		return nil
	}
	var remote *RemoteError
	switch {
	case errors.As(err, &remote):
		if remote.Code == CodeNotRegistered {
			c.registered = false
		}
	default:
		c.logger.Warn("connection lost", "frame", f.Kind, "error", err)
		c.dropLocked()
	}
	return fault.Connection(err, "sending %s frame", f.Kind)
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.registered = false
}

// SendSensoryBytes validates payload as a byte structure and sends it.
func (c *Client) SendSensoryBytes(ctx context.Context, payload []byte) error {
	structure, err := bytestructure.FromBytes(payload)
	if err != nil {
		return fmt.Errorf("sensory payload: %w", err)
	}
	return c.SendSensoryStructure(ctx, structure)
}

// SendSensoryStructure compresses structure with the configured
// envelope and sends it in one sensory frame.
func (c *Client) SendSensoryStructure(ctx context.Context, structure bytestructure.Structure) error {
	if !c.config.AgentType.SendsSensory() {
		return fault.Configurationf("agent type %s does not send sensory data", c.config.AgentType)
	}
	if structure.IsZero() {
		return fault.Validationf("sensory payload is empty")
	}
	if structure.Len() > c.config.MaxPayloadSize {
		return fault.Validationf("sensory payload is %d bytes, maximum is %d", structure.Len(), c.config.MaxPayloadSize)
	}
	data := structure.Bytes()
	compressed, tag, err := compress.Compress(data, c.config.Compression)
	if err != nil {
		return fmt.Errorf("compressing sensory payload: %w", err)
	}
	digest := structure.Digest()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sendLocked(ctx, &frame{
		Kind:        frameSensory,
		Compression: tag,
		Size:        uint32(len(data)),
		Digest:      digest[:],
		Payload:     compressed,
	}); err != nil {
		return err
	}
	c.logger.Debug("sent sensory payload",
		"bytes", len(data),
		"compressed", len(compressed),
		"compression", tag,
	)
	return nil
}

// NeuronPotential addresses one neuron of the vision capability's area
// by flat index.
type NeuronPotential struct {
	Index     uint32
	Potential float32
}

// SendSensoryData maps index/potential pairs onto the vision
// capability's area and sends the resulting neuron map. Index i lands
// at x = i mod width, y = (i / width) mod height, z = i / (width*height).
func (c *Client) SendSensoryData(ctx context.Context, pairs []NeuronPotential) error {
	vision := c.config.Vision
	if vision == nil {
		return fault.Configurationf("agent %q has no vision capability to map neuron indices onto", c.config.AgentID)
	}
	volume := vision.Volume()
	plane := uint64(vision.Width) * uint64(vision.Height)
	collection := neuron.NewCollection(len(pairs))
	for _, pair := range pairs {
		if uint64(pair.Index) >= volume {
			return fault.Validationf("neuron index %d outside %dx%dx%d vision area", pair.Index, vision.Width, vision.Height, vision.Channels)
		}
		if mat32.IsNaN(pair.Potential) || mat32.IsInf(pair.Potential, 0) {
			return fault.Validationf("neuron %d: potential %v is not finite", pair.Index, pair.Potential)
		}
		collection.Append(neuron.Point{
			X: pair.Index % vision.Width,
			Y: (pair.Index / vision.Width) % vision.Height,
			Z: uint32(uint64(pair.Index) / plane),
			P: pair.Potential,
		})
	}
	neurons := neuron.NewMap()
	neurons.Insert(vision.Area, collection)
	structure, err := neurons.Encode()
	if err != nil {
		return err
	}
	return c.SendSensoryStructure(ctx, structure)
}

// Heartbeat sends one heartbeat frame.
func (c *Client) Heartbeat(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(ctx, &frame{Kind: frameHeartbeat})
}

// RunHeartbeat sends a heartbeat every HeartbeatInterval until ctx is
// cancelled, then returns nil. A failed heartbeat ends the loop with
// its error. With a zero interval it returns immediately.
func (c *Client) RunHeartbeat(ctx context.Context) error {
	interval := c.config.HeartbeatInterval
	if interval == 0 {
		return nil
	}
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Heartbeat(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Close deregisters (when registered) and closes the connection. The
// connection is closed even when deregistration fails.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.conn == nil {
		return nil
	}
	var err error
	if c.registered {
		err = c.exchangeLocked(ctx, &frame{Kind: frameDeregister})
		if err != nil {
			err = fault.Connection(err, "deregistering agent %q", c.config.AgentID)
		}
	}
	c.dropLocked()
	c.logger.Info("agent closed")
	return err
}
