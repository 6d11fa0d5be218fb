package audiocore

import "time"

// Stream configuration defaults
const (
	// DefaultSampleRate is used when a stream config leaves the rate unset
	DefaultSampleRate = 48000

	// DefaultFramesPerBuffer is the engine period in frames
	DefaultFramesPerBuffer = 512

	// DefaultRingPeriods sizes each ring buffer as a multiple of the engine period
	DefaultRingPeriods = 8

	// DefaultPollInterval is how long a transfer waits for device space or data
	DefaultPollInterval = 5 * time.Millisecond
)

// Validation limits
const (
	MinSampleRate   = 8000
	MaxSampleRate   = 384000
	MaxChannels     = 32
	MaxRingPeriods  = 1024
	MaxPollInterval = time.Second
)

// Device selection keywords
const (
	DeviceDefault    = "default"
	DeviceSysDefault = "sysdefault"
)
