package audiocore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/audiobridge/internal/errors"
)

// DeviceSpec identifies a device by index or by name. The zero value selects
// the backend's default device.
type DeviceSpec struct {
	Index *int
	Name  string
}

// DeviceByIndex returns a spec selecting the device at index i.
func DeviceByIndex(i int) DeviceSpec {
	return DeviceSpec{Index: &i}
}

// DeviceByName returns a spec selecting a device by name or ID.
func DeviceByName(name string) DeviceSpec {
	return DeviceSpec{Name: name}
}

// ParseDeviceSpec interprets s as an index when it is a non-negative
// integer and as a name otherwise.
func ParseDeviceSpec(s string) DeviceSpec {
	if i, err := strconv.Atoi(s); err == nil && i >= 0 {
		return DeviceByIndex(i)
	}
	return DeviceByName(s)
}

// IsDefault reports whether d selects the default device.
func (d DeviceSpec) IsDefault() bool {
	return d.Index == nil && (d.Name == "" || d.Name == DeviceDefault || d.Name == DeviceSysDefault)
}

func (d DeviceSpec) String() string {
	if d.Index != nil {
		return fmt.Sprintf("#%d", *d.Index)
	}
	if d.Name == "" {
		return DeviceDefault
	}
	return strconv.Quote(d.Name)
}

// StreamConfig describes a stream to open. Zero values are replaced by
// defaults in Open.
type StreamConfig struct {
	Device          DeviceSpec
	InputChannels   int
	OutputChannels  int
	SampleRate      int
	FramesPerBuffer int           // engine period
	RingPeriods     int           // ring capacity in periods
	PollInterval    time.Duration // transfer wait between chunks
	ChunkFrames     int           // largest chunk a transfer moves at once
}

// WithDefaults returns a copy with unset fields filled in.
func (c StreamConfig) WithDefaults() StreamConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.FramesPerBuffer == 0 {
		c.FramesPerBuffer = DefaultFramesPerBuffer
	}
	if c.RingPeriods == 0 {
		c.RingPeriods = DefaultRingPeriods
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ChunkFrames == 0 {
		c.ChunkFrames = c.FramesPerBuffer
	}
	return c
}

// Validate checks the configuration after defaults have been applied.
func (c StreamConfig) Validate() error {
	var problems []string

	if c.InputChannels < 0 || c.InputChannels > MaxChannels {
		problems = append(problems, fmt.Sprintf("input channels %d out of range [0, %d]", c.InputChannels, MaxChannels))
	}
	if c.OutputChannels < 0 || c.OutputChannels > MaxChannels {
		problems = append(problems, fmt.Sprintf("output channels %d out of range [0, %d]", c.OutputChannels, MaxChannels))
	}
	if c.InputChannels == 0 && c.OutputChannels == 0 {
		problems = append(problems, "stream needs at least one input or output channel")
	}
	if c.SampleRate < MinSampleRate || c.SampleRate > MaxSampleRate {
		problems = append(problems, fmt.Sprintf("sample rate %d out of range [%d, %d]", c.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if c.FramesPerBuffer <= 0 {
		problems = append(problems, fmt.Sprintf("frames per buffer %d must be positive", c.FramesPerBuffer))
	}
	if c.RingPeriods < 2 || c.RingPeriods > MaxRingPeriods {
		problems = append(problems, fmt.Sprintf("ring periods %d out of range [2, %d]", c.RingPeriods, MaxRingPeriods))
	}
	if c.PollInterval <= 0 || c.PollInterval > MaxPollInterval {
		problems = append(problems, fmt.Sprintf("poll interval %s out of range (0, %s]", c.PollInterval, MaxPollInterval))
	}
	if c.ChunkFrames <= 0 {
		problems = append(problems, fmt.Sprintf("chunk frames %d must be positive", c.ChunkFrames))
	}
	if c.Device.Index != nil && *c.Device.Index < 0 {
		problems = append(problems, fmt.Sprintf("device index %d must not be negative", *c.Device.Index))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New(fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))).
		Component(ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("problems", problems).
		Build()
}

// RingCapacity returns the ring size in samples for a direction with the
// given channel count.
func (c StreamConfig) RingCapacity(channels int) int {
	return c.FramesPerBuffer * c.RingPeriods * channels
}

// NativeConfig is what a Backend needs to open a native stream.
type NativeConfig struct {
	Device          DeviceInfo
	InputChannels   int
	OutputChannels  int
	SampleRate      int
	FramesPerBuffer int
	Format          SampleFormat
}
