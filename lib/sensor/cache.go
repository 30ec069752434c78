// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/bureau-foundation/connector/lib/bytestructure"
	"github.com/bureau-foundation/connector/lib/clock"
	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
	"github.com/bureau-foundation/connector/lib/neuron"
	"github.com/bureau-foundation/connector/lib/processor"
)

// StalePolicy decides what an encode does with a channel that is
// neither fresh nor allowed to send stale data.
type StalePolicy uint8

const (
	// StaleExclude leaves the channel out of the encoded map.
	StaleExclude StalePolicy = iota

	// StaleFail fails the encode with a fault.ErrConfiguration error
	// naming the channel.
	StaleFail
)

// String returns "exclude" or "fail".
func (p StalePolicy) String() string {
	switch p {
	case StaleExclude:
		return "exclude"
	case StaleFail:
		return "fail"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// ParseStalePolicy parses a policy name. The empty string is
// StaleExclude.
func ParseStalePolicy(name string) (StalePolicy, error) {
	switch name {
	case "", "exclude":
		return StaleExclude, nil
	case "fail":
		return StaleFail, nil
	default:
		return 0, fault.Configurationf("unknown stale policy %q (want exclude or fail)", name)
	}
}

// Options configures a Cache.
type Options struct {
	// Clock timestamps updates. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives debug output for registration and encoding.
	// Nil discards.
	Logger *slog.Logger

	// StalePolicy applies to channels registered without allowStale.
	StalePolicy StalePolicy
}

// Cache buffers per-channel sensor values and encodes them into
// neuron maps.
type Cache struct {
	clock       clock.Clock
	logger      *slog.Logger
	stalePolicy StalePolicy

	// areas in registration order; the encoded map follows it.
	areas     []*area
	areaIndex map[areaKey]*area

	latest bytestructure.Structure
}

type areaKey struct {
	sensorType cortical.SensorType
	group      cortical.GroupIndex
}

type area struct {
	key          areaKey
	id           cortical.ID
	channelCount cortical.ChannelCount
	dimensions   cortical.Dimensions

	// channels sorted by index.
	channels []*channel
}

type channel struct {
	index      cortical.ChannelIndex
	pipeline   *processor.Pipeline
	coder      Coder
	allowStale bool

	value     processor.Sample
	fresh     bool
	updatedAt time.Time
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
		clock:       options.Clock,
		logger:      options.Logger,
		stalePolicy: options.StalePolicy,
		areaIndex:   make(map[areaKey]*area),
	}
}

// RegisterArea declares the cortical area for sensorType and group
// with channelCount channels of the given dimensions. Registering the
// same area again with the same shape is a no-op; any other
// re-registration fails.
func (c *Cache) RegisterArea(sensorType cortical.SensorType, group cortical.GroupIndex, channelCount cortical.ChannelCount, dims cortical.Dimensions) error {
	if !sensorType.Valid() {
		return fault.Configurationf("unknown sensor type %d", uint8(sensorType))
	}
	id, err := sensorType.ID(group)
	if err != nil {
		return fault.Configurationf("%s group %d: %v", sensorType, group, err)
	}
	if channelCount == 0 {
		return fault.Configurationf("area %s: channel count must be positive", id)
	}
	if err := dims.Validate(); err != nil {
		return fault.Configurationf("area %s: %v", id, err)
	}
	if allowed := sensorType.DimensionRange(); !allowed.Contains(dims) {
		return fault.Configurationf("area %s: channel dimensions %s outside the %s range %s", id, dims, sensorType, allowed)
	}
	if uint64(channelCount)*uint64(dims.Width) > math.MaxUint32 {
		return fault.Configurationf("area %s: %d channels of width %d overflow the x axis", id, channelCount, dims.Width)
	}

	key := areaKey{sensorType: sensorType, group: group}
	if existing, ok := c.areaIndex[key]; ok {
		if existing.channelCount == channelCount && existing.dimensions == dims {
			return nil
		}
		return fault.Configurationf("area %s already registered with %d channels of %s, cannot re-register with %d channels of %s",
			id, existing.channelCount, existing.dimensions, channelCount, dims)
	}

	registered := &area{key: key, id: id, channelCount: channelCount, dimensions: dims}
	c.areas = append(c.areas, registered)
	c.areaIndex[key] = registered
	c.logger.Debug("registered cortical area",
		"area", id.String(),
		"sensor", sensorType.Key(),
		"channels", uint32(channelCount),
		"dimensions", dims.String(),
	)
	return nil
}

// RegisterChannel attaches an ordered processor pipeline to one channel
// of a registered area, using the sensor type's default coder.
func (c *Cache) RegisterChannel(sensorType cortical.SensorType, group cortical.GroupIndex, index cortical.ChannelIndex, processors []processor.Processor, allowStale bool) error {
	return c.RegisterChannelWithCoder(sensorType, group, index, processors, allowStale, DefaultCoder(sensorType))
}

// RegisterChannelWithCoder is RegisterChannel with an explicit coder.
// The channel's value starts as the pipeline's initial value; it does
// not count as fresh until the first update.
func (c *Cache) RegisterChannelWithCoder(sensorType cortical.SensorType, group cortical.GroupIndex, index cortical.ChannelIndex, processors []processor.Processor, allowStale bool, coder Coder) error {
	registered, err := c.lookupArea(sensorType, group)
	if err != nil {
		return err
	}
	if uint64(index) >= uint64(registered.channelCount) {
		return fault.Configurationf("area %s: channel %d out of range (area has %d channels)",
			registered.id, index, registered.channelCount)
	}
	if _, found := registered.find(index); found {
		return fault.Configurationf("area %s: channel %d is already registered", registered.id, index)
	}

	pipeline, err := processor.NewPipeline(processors...)
	if err != nil {
		return fmt.Errorf("area %s channel %d: %w", registered.id, index, err)
	}
	if pipeline.Kind() != sensorType.Kind() {
		return fault.Configurationf("area %s channel %d: %s sensors take %s samples but the pipeline takes %s",
			registered.id, index, sensorType, sensorType.Kind(), pipeline.Kind())
	}
	if coder.Kind() != sensorType.Kind() {
		return fault.Configurationf("area %s channel %d: %s coder cannot encode %s samples",
			registered.id, index, coder, sensorType.Kind())
	}
	if err := coder.checkDimensions(registered.dimensions); err != nil {
		return fmt.Errorf("area %s channel %d: %w", registered.id, index, err)
	}
	initial := pipeline.Initial()
	if err := coder.checkSample(initial, registered.dimensions); err != nil {
		return fault.Configurationf("area %s channel %d: initial value: %v", registered.id, index, err)
	}

	registered.insert(&channel{
		index:      index,
		pipeline:   pipeline,
		coder:      coder,
		allowStale: allowStale,
		value:      initial,
	})
	c.logger.Debug("registered sensor channel",
		"area", registered.id.String(),
		"channel", uint32(index),
		"pipeline", pipeline.String(),
		"coder", coder.String(),
		"allow_stale", allowStale,
	)
	return nil
}

func (c *Cache) lookupArea(sensorType cortical.SensorType, group cortical.GroupIndex) (*area, error) {
	registered, ok := c.areaIndex[areaKey{sensorType: sensorType, group: group}]
	if !ok {
		return nil, fault.Configurationf("%s group %d: cortical area is not registered", sensorType, group)
	}
	return registered, nil
}

func (c *Cache) lookupChannel(sensorType cortical.SensorType, group cortical.GroupIndex, index cortical.ChannelIndex) (*area, *channel, error) {
	registered, err := c.lookupArea(sensorType, group)
	if err != nil {
		return nil, nil, err
	}
	found, ok := registered.find(index)
	if !ok {
		return nil, nil, fault.Configurationf("area %s: channel %d is not registered", registered.id, index)
	}
	return registered, found, nil
}

func (a *area) find(index cortical.ChannelIndex) (*channel, bool) {
	position, found := slices.BinarySearchFunc(a.channels, index, func(candidate *channel, target cortical.ChannelIndex) int {
		return compareIndex(candidate.index, target)
	})
	if !found {
		return nil, false
	}
	return a.channels[position], true
}

func (a *area) insert(registered *channel) {
	position, _ := slices.BinarySearchFunc(a.channels, registered.index, func(candidate *channel, target cortical.ChannelIndex) int {
		return compareIndex(candidate.index, target)
	})
	a.channels = slices.Insert(a.channels, position, registered)
}

func compareIndex(a, b cortical.ChannelIndex) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// UpdateChannel runs raw through the channel's pipeline and buffers
// the result. A failed update leaves the buffered value and freshness
// unchanged.
func (c *Cache) UpdateChannel(raw processor.Sample, sensorType cortical.SensorType, group cortical.GroupIndex, index cortical.ChannelIndex) error {
	registered, target, err := c.lookupChannel(sensorType, group, index)
	if err != nil {
		return err
	}
	restore := target.pipeline.Checkpoint()
	processed, err := target.pipeline.Run(raw)
	if err != nil {
		return fmt.Errorf("area %s channel %d: %w", registered.id, index, err)
	}
	if err := target.coder.checkSample(processed, registered.dimensions); err != nil {
		restore()
		return fmt.Errorf("area %s channel %d: %w", registered.id, index, err)
	}
	target.value = processed
	target.fresh = true
	target.updatedAt = c.clock.Now()
	return nil
}

// UpdateScalar is UpdateChannel for a scalar reading.
func (c *Cache) UpdateScalar(value float32, sensorType cortical.SensorType, group cortical.GroupIndex, index cortical.ChannelIndex) error {
	return c.UpdateChannel(processor.Scalar(value), sensorType, group, index)
}

// UpdateImage is UpdateChannel for an image frame.
func (c *Cache) UpdateImage(frame *processor.ImageFrame, sensorType cortical.SensorType, group cortical.GroupIndex, index cortical.ChannelIndex) error {
	if frame == nil {
		return fault.Validationf("nil image frame")
	}
	return c.UpdateChannel(processor.Image(frame), sensorType, group, index)
}

// ReadChannel returns the channel's buffered value. Image values are
// returned as copies.
func (c *Cache) ReadChannel(sensorType cortical.SensorType, group cortical.GroupIndex, index cortical.ChannelIndex) (processor.Sample, error) {
	_, target, err := c.lookupChannel(sensorType, group, index)
	if err != nil {
		return processor.Sample{}, err
	}
	if frame, ok := target.value.ImageValue(); ok {
		return processor.Image(frame.Clone()), nil
	}
	return target.value, nil
}

// Status describes a channel's update state.
type Status struct {
	// UpdatedAt is the time of the last successful update; zero if
	// the channel has never been updated.
	UpdatedAt time.Time

	// Fresh reports an update since the last encode.
	Fresh bool

	// AllowStale reports whether the channel emits without updates.
	AllowStale bool
}

// ChannelStatus reports a channel's update state.
func (c *Cache) ChannelStatus(sensorType cortical.SensorType, group cortical.GroupIndex, index cortical.ChannelIndex) (Status, error) {
	_, target, err := c.lookupChannel(sensorType, group, index)
	if err != nil {
		return Status{}, err
	}
	return Status{UpdatedAt: target.updatedAt, Fresh: target.fresh, AllowStale: target.allowStale}, nil
}

// Areas returns the registered area IDs in registration order.
func (c *Cache) Areas() []cortical.ID {
	ids := make([]cortical.ID, len(c.areas))
	for i, registered := range c.areas {
		ids[i] = registered.id
	}
	return ids
}

// EncodeToNeurons converts the buffered state into a new neuron map.
// Areas appear in registration order and channels in index order;
// areas with no emitting channel are omitted. On success every
// channel's freshness is cleared. On failure nothing changes.
func (c *Cache) EncodeToNeurons() (*neuron.Map, error) {
	if c.stalePolicy == StaleFail {
		for _, registered := range c.areas {
			for _, candidate := range registered.channels {
				if !candidate.allowStale && !candidate.fresh {
					return nil, fault.Configurationf("area %s channel %d has no update since the last encode",
						registered.id, candidate.index)
				}
			}
		}
	}

	neurons := neuron.NewMap()
	for _, registered := range c.areas {
		var collection *neuron.Collection
		for _, candidate := range registered.channels {
			if !candidate.allowStale && !candidate.fresh {
				continue
			}
			if collection == nil {
				collection = neuron.NewCollection(len(registered.channels))
			}
			candidate.coder.encode(candidate.value, candidate.index, registered.dimensions, collection)
		}
		if collection != nil {
			neurons.Insert(registered.id, collection)
		}
	}

	for _, registered := range c.areas {
		for _, candidate := range registered.channels {
			candidate.fresh = false
		}
	}
	c.logger.Debug("encoded sensor cache",
		"areas", neurons.Len(),
		"neurons", neurons.NeuronCount(),
	)
	return neurons, nil
}

// EncodeToBytes encodes the buffered state straight to a byte
// structure and remembers it for LatestBytes.
func (c *Cache) EncodeToBytes() (bytestructure.Structure, error) {
	neurons, err := c.EncodeToNeurons()
	if err != nil {
		return bytestructure.Structure{}, err
	}
	structure, err := neurons.Encode()
	if err != nil {
		return bytestructure.Structure{}, err
	}
	c.latest = structure
	return structure, nil
}

// LatestBytes returns the structure produced by the most recent
// EncodeToBytes, and false if there has been none.
func (c *Cache) LatestBytes() (bytestructure.Structure, bool) {
	return c.latest, !c.latest.IsZero()
}
