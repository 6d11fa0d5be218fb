package audiocore

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tphakala/audiobridge/internal/errors"
)

// DeviceInfo describes a device reported by a Backend.
type DeviceInfo struct {
	Index             int     `json:"index"`
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	IsDefault         bool    `json:"is_default"`
}

// Supports reports whether the device has enough channels for the given
// input and output counts.
func (d DeviceInfo) Supports(inputs, outputs int) bool {
	return d.MaxInputChannels >= inputs && d.MaxOutputChannels >= outputs
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("[%d] %s (in:%d out:%d)", d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels)
}

// ResolveDevice picks the device matching spec.
//
// Index specs match DeviceInfo.Index. Name specs try, in order, the
// default keywords, an exact name, an exact ID and a case-insensitive
// substring of the name. Failure returns a *DeviceNotFoundError that
// lists the available devices.
func ResolveDevice(devices []DeviceInfo, spec DeviceSpec) (DeviceInfo, error) {
	if d, ok := matchDevice(devices, spec); ok {
		return d, nil
	}

	available := make([]string, 0, len(devices))
	for _, d := range devices {
		available = append(available, d.String())
	}
	return DeviceInfo{}, errors.New(&DeviceNotFoundError{Requested: spec, Available: available}).
		Component(ComponentAudioCore).
		Context("requested", spec.String()).
		Context("device_count", len(devices)).
		Build()
}

func matchDevice(devices []DeviceInfo, spec DeviceSpec) (DeviceInfo, bool) {
	if spec.Index != nil {
		i := slices.IndexFunc(devices, func(d DeviceInfo) bool { return d.Index == *spec.Index })
		if i < 0 {
			return DeviceInfo{}, false
		}
		return devices[i], true
	}

	if spec.IsDefault() {
		if i := slices.IndexFunc(devices, func(d DeviceInfo) bool { return d.IsDefault }); i >= 0 {
			return devices[i], true
		}
		if len(devices) > 0 {
			return devices[0], true
		}
		return DeviceInfo{}, false
	}

	matchers := []func(DeviceInfo) bool{
		func(d DeviceInfo) bool { return d.Name == spec.Name },
		func(d DeviceInfo) bool { return d.ID == spec.Name },
		func(d DeviceInfo) bool {
			return strings.Contains(strings.ToLower(d.Name), strings.ToLower(spec.Name))
		},
	}
	for _, match := range matchers {
		if i := slices.IndexFunc(devices, match); i >= 0 {
			return devices[i], true
		}
	}
	return DeviceInfo{}, false
}
