package audiocore

import (
	"fmt"
	"strings"

	"github.com/tphakala/audiobridge/internal/errors"
)

// Component identifier for audiocore errors
const ComponentAudioCore = "audiocore"

var (
	// ErrStreamClosed is returned by transfers interrupted or queued when the
	// stream closes
	ErrStreamClosed = errors.New(errors.NewStd("stream closed")).
			Component(ComponentAudioCore).
			Category(errors.CategoryState).
			Context("resource", "stream").
			Build()

	// ErrInvalidState is returned for lifecycle misuse, such as starting a
	// closed stream
	ErrInvalidState = errors.New(errors.NewStd("invalid stream state")).
			Component(ComponentAudioCore).
			Category(errors.CategoryState).
			Context("resource", "stream").
			Build()

	// ErrDeviceNotFound is returned when a device spec matches no device
	ErrDeviceNotFound = errors.New(errors.NewStd("audio device not found")).
				Component(ComponentAudioCore).
				Category(errors.CategoryNotFound).
				Context("resource", "audio_device").
				Build()

	// ErrInvalidConfig is returned by StreamConfig.Validate
	ErrInvalidConfig = errors.New(errors.NewStd("invalid stream configuration")).
				Component(ComponentAudioCore).
				Category(errors.CategoryValidation).
				Context("resource", "stream_config").
				Build()

	// ErrChannelMismatch is returned when a frame buffer's channel count does
	// not match the stream direction
	ErrChannelMismatch = errors.New(errors.NewStd("channel count mismatch")).
				Component(ComponentAudioCore).
				Category(errors.CategoryValidation).
				Context("resource", "frame_buffer").
				Build()

	// ErrDirectionUnavailable is returned when reading from a playback-only
	// stream or writing to a capture-only stream
	ErrDirectionUnavailable = errors.New(errors.NewStd("stream direction not configured")).
				Component(ComponentAudioCore).
				Category(errors.CategoryState).
				Context("resource", "stream").
				Build()

	// ErrNotInitialized is returned by Shutdown without a matching Initialize
	ErrNotInitialized = errors.New(errors.NewStd("audio backend not initialized")).
				Component(ComponentAudioCore).
				Category(errors.CategoryState).
				Context("resource", "backend").
				Build()
)

// DeviceNotFoundError describes a failed device lookup. It carries the
// requested device and the devices that were available at lookup time.
type DeviceNotFoundError struct {
	Requested DeviceSpec
	Available []string
}

func (e *DeviceNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("audio device %s not found, no devices available", e.Requested)
	}
	return fmt.Sprintf("audio device %s not found, available devices: %s",
		e.Requested, strings.Join(e.Available, ", "))
}

// Is makes errors.Is(err, ErrDeviceNotFound) hold for lookup failures.
func (e *DeviceNotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound
}

// ErrorCategory implements errors.CategorizedError.
func (e *DeviceNotFoundError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryNotFound
}
