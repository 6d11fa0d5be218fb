package malgo

import (
	"encoding/hex"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audiobridge/internal/audiocore"
)

// rawDevice is one side (playback or capture) of a miniaudio device.
type rawDevice struct {
	id        malgo.DeviceID
	key       string // decoded ID
	name      string
	channels  int
	isDefault bool
}

// deviceSet is a merged device list plus the native IDs behind it.
type deviceSet struct {
	infos    []audiocore.DeviceInfo
	playback map[string]malgo.DeviceID
	capture  map[string]malgo.DeviceID
}

func toRaw(infos []malgo.DeviceInfo) []rawDevice {
	devices := make([]rawDevice, 0, len(infos))
	for i := range infos {
		// Skip the discard/null device
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}

		channels := 0
		for _, f := range infos[i].Formats {
			channels = max(channels, int(f.Channels))
		}
		if channels == 0 {
			// miniaudio reports 0 when any channel count is accepted
			channels = audiocore.MaxChannels
		}

		devices = append(devices, rawDevice{
			id:        infos[i].ID,
			key:       decodeDeviceID(infos[i].ID.String()),
			name:      infos[i].Name(),
			channels:  channels,
			isDefault: infos[i].IsDefault == 1,
		})
	}
	return devices
}

// mergeDevices joins playback and capture devices that share an ID into one
// DeviceInfo. Playback devices come first, then capture-only devices.
func mergeDevices(playback, capture []rawDevice) *deviceSet {
	set := &deviceSet{
		playback: make(map[string]malgo.DeviceID, len(playback)),
		capture:  make(map[string]malgo.DeviceID, len(capture)),
	}
	byKey := make(map[string]int)

	add := func(d rawDevice) *audiocore.DeviceInfo {
		if i, ok := byKey[d.key]; ok {
			return &set.infos[i]
		}
		byKey[d.key] = len(set.infos)
		set.infos = append(set.infos, audiocore.DeviceInfo{
			Index:             len(set.infos),
			ID:                d.key,
			Name:              d.name,
			DefaultSampleRate: audiocore.DefaultSampleRate,
		})
		return &set.infos[len(set.infos)-1]
	}

	for _, d := range playback {
		info := add(d)
		info.MaxOutputChannels = d.channels
		info.IsDefault = info.IsDefault || d.isDefault
		set.playback[d.key] = d.id
	}
	for _, d := range capture {
		info := add(d)
		info.MaxInputChannels = d.channels
		info.IsDefault = info.IsDefault || d.isDefault
		set.capture[d.key] = d.id
	}
	return set
}

// decodeDeviceID turns miniaudio's hex device ID into its readable form,
// such as "hw:1,0" on ALSA, falling back to the hex string.
func decodeDeviceID(hexID string) string {
	decoded, err := hex.DecodeString(hexID)
	if err != nil {
		return hexID
	}
	s := strings.TrimRight(string(decoded), "\x00")
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			return hexID
		}
	}
	return s
}
