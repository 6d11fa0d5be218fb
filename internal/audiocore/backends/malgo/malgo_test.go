package malgo

import (
	"encoding/hex"
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiobridge/internal/audiocore"
)

func deviceID(s string) malgo.DeviceID {
	var id malgo.DeviceID
	copy(id[:], s)
	return id
}

func raw(key, name string, channels int, isDefault bool) rawDevice {
	return rawDevice{id: deviceID(key), key: key, name: name, channels: channels, isDefault: isDefault}
}

func TestMergeDevices(t *testing.T) {
	t.Parallel()

	playback := []rawDevice{
		raw("hw:0,0", "HDA Intel PCH", 2, true),
		raw("hw:2,0", "HDMI 0", 8, false),
	}
	capture := []rawDevice{
		raw("hw:1,0", "USB Audio CODEC", 1, false),
		raw("hw:0,0", "HDA Intel PCH", 2, false),
	}

	set := mergeDevices(playback, capture)
	require.Len(t, set.infos, 3)

	assert.Equal(t, audiocore.DeviceInfo{
		Index: 0, ID: "hw:0,0", Name: "HDA Intel PCH",
		MaxInputChannels: 2, MaxOutputChannels: 2,
		DefaultSampleRate: audiocore.DefaultSampleRate, IsDefault: true,
	}, set.infos[0])
	assert.Equal(t, 8, set.infos[1].MaxOutputChannels)
	assert.Zero(t, set.infos[1].MaxInputChannels)
	assert.Equal(t, 2, set.infos[2].Index)
	assert.Equal(t, 1, set.infos[2].MaxInputChannels)
	assert.Zero(t, set.infos[2].MaxOutputChannels)

	assert.Contains(t, set.playback, "hw:0,0")
	assert.Contains(t, set.capture, "hw:0,0")
	assert.NotContains(t, set.playback, "hw:1,0")

	d, err := audiocore.ResolveDevice(set.infos, audiocore.DeviceByName("usb"))
	require.NoError(t, err)
	assert.Equal(t, "hw:1,0", d.ID)
}

func TestDecodeDeviceID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hw:1,0", decodeDeviceID(hex.EncodeToString([]byte("hw:1,0"))))
	assert.Equal(t, "hw:1,0", decodeDeviceID(hex.EncodeToString([]byte("hw:1,0\x00\x00"))))
	assert.Equal(t, "0102ff", decodeDeviceID("0102ff"), "binary IDs stay hex")
	assert.Equal(t, "zz", decodeDeviceID("zz"))
}

func TestToMalgoFormat(t *testing.T) {
	t.Parallel()

	tests := map[audiocore.SampleFormat]malgo.FormatType{
		audiocore.FormatF32: malgo.FormatF32,
		audiocore.FormatS32: malgo.FormatS32,
		audiocore.FormatS16: malgo.FormatS16,
		audiocore.FormatU8:  malgo.FormatU8,
	}
	for in, want := range tests {
		got, err := toMalgoFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := toMalgoFormat(audiocore.FormatS8)
	assert.Error(t, err)
}

func TestDevicesRequiresInit(t *testing.T) {
	t.Parallel()

	_, err := New().Devices()
	assert.ErrorIs(t, err, audiocore.ErrNotInitialized)
}
