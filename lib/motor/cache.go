// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package motor

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/connector/lib/bytestructure"
	"github.com/bureau-foundation/connector/lib/clock"
	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
	"github.com/bureau-foundation/connector/lib/neuron"
	"github.com/bureau-foundation/connector/lib/processor"
)

// Options configures a Cache.
type Options struct {
	// Clock timestamps decoded values. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives debug output for registration and decoding.
	// Nil discards.
	Logger *slog.Logger
}

// Update is one channel's new value after a decode.
type Update struct {
	Area      cortical.ID
	MotorType cortical.MotorType
	Group     cortical.GroupIndex
	Channel   cortical.ChannelIndex

	// Raw is the decoded value after frame handling.
	Raw float32

	// Value is Raw after the channel's pipeline.
	Value float32

	At time.Time
}

// CallbackID identifies a registered callback for RemoveCallback.
type CallbackID uint64

// Cache decodes motor neuron maps into per-channel values. It is safe
// for concurrent use.
type Cache struct {
	clock  clock.Clock
	logger *slog.Logger

	mu        sync.Mutex
	areas     []*area
	areaIndex map[cortical.ID]*area
	callbacks map[CallbackID]*callback
	nextID    CallbackID
}

type area struct {
	id        cortical.ID
	motorType cortical.MotorType
	group     cortical.GroupIndex
	layout    layout
	frames    FrameHandling

	// channels indexed by channel index.
	channels []*channel
}

type channel struct {
	pipeline  *processor.Pipeline
	raw       float32
	value     float32
	updatedAt time.Time
}

type callback struct {
	area    cortical.ID
	channel cortical.ChannelIndex
	fn      func(Update)
}

// New returns an empty cache.
func New(options Options) *Cache {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		clock:     options.Clock,
		logger:    options.Logger,
		areaIndex: make(map[cortical.ID]*area),
		callbacks: make(map[CallbackID]*callback),
	}
}

// RegisterArea declares the motor area for motorType and group with
// channelCount channels, each one neuron wide and depth neurons deep.
// Channel c reads the neurons at x = c. Every channel starts at 0 with
// an identity pipeline. Registering the same area again with the same
// settings is a no-op; any other re-registration fails.
func (c *Cache) RegisterArea(motorType cortical.MotorType, group cortical.GroupIndex, channelCount cortical.ChannelCount, depth uint32, frames FrameHandling, positioning Positioning) error {
	if !motorType.Valid() {
		return fault.Configurationf("unknown motor type %d", uint8(motorType))
	}
	id, err := motorType.ID(group)
	if err != nil {
		return fault.Configurationf("%s group %d: %v", motorType, group, err)
	}
	if channelCount == 0 {
		return fault.Configurationf("area %s: channel count must be positive", id)
	}
	if depth < motorType.MinDepth() || depth > motorType.MaxDepth() {
		return fault.Configurationf("area %s: depth %d outside the %s range %d..%d",
			id, depth, motorType, motorType.MinDepth(), motorType.MaxDepth())
	}
	if motorType.Signed() && depth%2 != 0 {
		return fault.Configurationf("area %s: %s depth must be even, got %d", id, motorType, depth)
	}
	if _, err := ParseFrameHandling(frames.String()); err != nil {
		return fmt.Errorf("area %s: %w", id, err)
	}
	if _, err := ParsePositioning(positioning.String()); err != nil {
		return fmt.Errorf("area %s: %w", id, err)
	}
	shape := layout{depth: depth, signed: motorType.Signed(), positioning: positioning}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.areaIndex[id]; ok {
		if uint64(len(existing.channels)) == uint64(channelCount) && existing.layout == shape && existing.frames == frames {
			return nil
		}
		return fault.Configurationf("area %s already registered with %d channels of depth %d (%s, %s)",
			id, len(existing.channels), existing.layout.depth, existing.frames, existing.layout.positioning)
	}

	registered := &area{
		id:        id,
		motorType: motorType,
		group:     group,
		layout:    shape,
		frames:    frames,
		channels:  make([]*channel, channelCount),
	}
	for i := range registered.channels {
		pipeline, err := processor.NewPipeline(processor.NewIdentity())
		if err != nil {
			return err
		}
		registered.channels[i] = &channel{pipeline: pipeline}
	}
	c.areas = append(c.areas, registered)
	c.areaIndex[id] = registered
	c.logger.Debug("registered motor area",
		"area", id.String(),
		"motor", motorType.Key(),
		"channels", uint32(channelCount),
		"depth", depth,
		"frames", frames.String(),
		"positioning", positioning.String(),
	)
	return nil
}

// SetPipeline replaces a channel's pipeline with scalar processors.
// The channel's processed value becomes the new pipeline's initial
// value; the raw value is kept.
func (c *Cache) SetPipeline(motorType cortical.MotorType, group cortical.GroupIndex, index cortical.ChannelIndex, processors ...processor.Processor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	registered, target, err := c.lookupChannel(motorType, group, index)
	if err != nil {
		return err
	}
	pipeline, err := processor.NewPipeline(processors...)
	if err != nil {
		return fmt.Errorf("area %s channel %d: %w", registered.id, index, err)
	}
	if pipeline.Kind() != cortical.DataScalar {
		return fault.Configurationf("area %s channel %d: motor pipelines take scalar samples, got %s",
			registered.id, index, pipeline.Kind())
	}
	initial, _ := pipeline.Initial().ScalarValue()
	target.pipeline = pipeline
	target.value = initial
	c.logger.Debug("set motor pipeline",
		"area", registered.id.String(),
		"channel", uint32(index),
		"pipeline", pipeline.String(),
	)
	return nil
}

func (c *Cache) lookupChannel(motorType cortical.MotorType, group cortical.GroupIndex, index cortical.ChannelIndex) (*area, *channel, error) {
	id, err := motorType.ID(group)
	if err != nil {
		return nil, nil, err
	}
	registered, ok := c.areaIndex[id]
	if !ok {
		return nil, nil, fault.Configurationf("%s group %d: motor area is not registered", motorType, group)
	}
	if uint64(index) >= uint64(len(registered.channels)) {
		return nil, nil, fault.Configurationf("area %s: channel %d out of range (area has %d channels)",
			id, index, len(registered.channels))
	}
	return registered, registered.channels[index], nil
}

// ReadChannel returns the channel's processed value.
func (c *Cache) ReadChannel(motorType cortical.MotorType, group cortical.GroupIndex, index cortical.ChannelIndex) (float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, target, err := c.lookupChannel(motorType, group, index)
	if err != nil {
		return 0, err
	}
	return target.value, nil
}

// ReadRaw returns the channel's decoded value before its pipeline and
// the time it was last decoded; the time is zero before the first
// decode.
func (c *Cache) ReadRaw(motorType cortical.MotorType, group cortical.GroupIndex, index cortical.ChannelIndex) (float32, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, target, err := c.lookupChannel(motorType, group, index)
	if err != nil {
		return 0, time.Time{}, err
	}
	return target.raw, target.updatedAt, nil
}

// Areas returns the registered area IDs in registration order.
func (c *Cache) Areas() []cortical.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]cortical.ID, len(c.areas))
	for i, registered := range c.areas {
		ids[i] = registered.id
	}
	return ids
}

// OnUpdate registers fn to run after every decode that updates the
// channel. Callbacks run on the decoding goroutine after the cache
// lock is released, in registration order of their channels.
func (c *Cache) OnUpdate(motorType cortical.MotorType, group cortical.GroupIndex, index cortical.ChannelIndex, fn func(Update)) (CallbackID, error) {
	if fn == nil {
		return 0, fault.Configurationf("nil motor callback")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	registered, _, err := c.lookupChannel(motorType, group, index)
	if err != nil {
		return 0, err
	}
	c.nextID++
	c.callbacks[c.nextID] = &callback{area: registered.id, channel: index, fn: fn}
	return c.nextID, nil
}

// RemoveCallback unregisters a callback. It reports whether id was
// registered.
func (c *Cache) RemoveCallback(id CallbackID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.callbacks[id]; !ok {
		return false
	}
	delete(c.callbacks, id)
	return true
}

// DecodeBytes decodes a neuron byte structure and applies it with
// DecodeNeurons.
func (c *Cache) DecodeBytes(structure bytestructure.Structure) ([]Update, error) {
	neurons, err := neuron.Decode(structure)
	if err != nil {
		return nil, err
	}
	return c.DecodeNeurons(neurons)
}

// pending is one channel's staged result.
type pending struct {
	area    *area
	channel *channel
	index   cortical.ChannelIndex
	raw     float32
	value   float32
}

// DecodeNeurons applies a neuron map to the registered motor areas
// and returns the updated channels in area registration and channel
// order. Areas the cache does not know are skipped. The decode is all
// or nothing: a point outside its area or a failing pipeline leaves
// every channel as it was and returns a fault.ErrValidation error.
func (c *Cache) DecodeNeurons(neurons *neuron.Map) ([]Update, error) {
	c.mu.Lock()
	staged, err := c.stage(neurons)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	now := c.clock.Now()
	updates := make([]Update, len(staged))
	calls := make([]func(), 0)
	for i, result := range staged {
		result.channel.raw = result.raw
		result.channel.value = result.value
		result.channel.updatedAt = now
		update := Update{
			Area:      result.area.id,
			MotorType: result.area.motorType,
			Group:     result.area.group,
			Channel:   result.index,
			Raw:       result.raw,
			Value:     result.value,
			At:        now,
		}
		updates[i] = update
		for _, registered := range c.callbacksFor(result.area.id, result.index) {
			calls = append(calls, func() { registered(update) })
		}
	}
	c.mu.Unlock()

	c.logger.Debug("decoded motor neurons", "areas", neurons.Len(), "updates", len(updates))
	for _, call := range calls {
		call()
	}
	return updates, nil
}

// stage decodes every known area without touching channel values.
// Pipelines that ran are restored when a later channel fails.
func (c *Cache) stage(neurons *neuron.Map) ([]pending, error) {
	var (
		staged   []pending
		restores []func()
	)
	fail := func(err error) ([]pending, error) {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return nil, err
	}

	for _, registered := range c.areas {
		collection, ok := neurons.Get(registered.id)
		if !ok {
			continue
		}
		perChannel, err := registered.split(collection)
		if err != nil {
			return fail(err)
		}
		lower, upper := registered.layout.bounds()
		for index, target := range registered.channels {
			decoded, active := registered.layout.decode(perChannel[index])
			if !active && registered.frames == Incremental {
				continue
			}
			raw := combine(registered.frames, target.raw, decoded, lower, upper)
			restores = append(restores, target.pipeline.Checkpoint())
			processed, err := target.pipeline.Run(processor.Scalar(raw))
			if err != nil {
				return fail(fmt.Errorf("area %s channel %d: %w", registered.id, index, err))
			}
			value, _ := processed.ScalarValue()
			staged = append(staged, pending{
				area:    registered,
				channel: target,
				index:   cortical.ChannelIndex(index),
				raw:     raw,
				value:   value,
			})
		}
	}

	for id := range neurons.All() {
		if _, known := c.areaIndex[id]; !known && id.Category() == cortical.CategoryMotor {
			c.logger.Debug("skipping unregistered motor area", "area", id.String())
		}
	}
	return staged, nil
}

// split groups an area's points by channel and rejects points outside
// the area.
func (a *area) split(collection *neuron.Collection) ([][]neuron.Point, error) {
	perChannel := make([][]neuron.Point, len(a.channels))
	for i := range collection.Len() {
		point := collection.At(i)
		if uint64(point.X) >= uint64(len(a.channels)) || point.Y != 0 || point.Z >= a.layout.depth {
			return nil, fault.Validationf("area %s: neuron %s outside %d channels of depth %d",
				a.id, point, len(a.channels), a.layout.depth)
		}
		perChannel[point.X] = append(perChannel[point.X], point)
	}
	return perChannel, nil
}

// callbacksFor returns the callbacks for one channel in registration
// order. The caller holds mu.
func (c *Cache) callbacksFor(id cortical.ID, index cortical.ChannelIndex) []func(Update) {
	var ids []CallbackID
	for callbackID, registered := range c.callbacks {
		if registered.area == id && registered.channel == index {
			ids = append(ids, callbackID)
		}
	}
	slices.Sort(ids)
	fns := make([]func(Update), len(ids))
	for i, callbackID := range ids {
		fns[i] = c.callbacks[callbackID].fn
	}
	return fns
}
