package audiofile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
)

func sineLikeRamp(frames, channels int) audiocore.FrameBuffer[float32] {
	buf := audiocore.NewFrameBuffer[float32](frames, channels)
	for i := range buf.Data {
		// values in [-0.9, 0.9], distinct per channel
		buf.Data[i] = float32(i%181-90) / 100
	}
	return buf
}

func writeWAV(t *testing.T, buf audiocore.FrameBuffer[float32], sampleRate, bitDepth int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	w, err := CreateWAV(path, sampleRate, buf.Channels, bitDepth)
	require.NoError(t, err)
	require.NoError(t, w.Write(buf))
	require.NoError(t, w.Close())
	assert.Equal(t, int64(buf.Frames()), w.Frames())
	return path
}

func TestDecoderFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want Decoder
	}{
		{"a.wav", WAVDecoder{}},
		{"B.WAV", WAVDecoder{}},
		{"c.flac", FLACDecoder{}},
		{"d.mp3", MP3Decoder{}},
		{"e.ogg", VorbisDecoder{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			dec, err := DecoderFor(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dec)
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		t.Parallel()
		_, err := DecoderFor("track.aiff")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.Contains(t, err.Error(), ".aiff")
	})
}

func TestSupportedExtensions(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{".flac", ".mp3", ".oga", ".ogg", ".wav", ".wave"}, SupportedExtensions())
}

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	for _, bitDepth := range []int{16, 24, 32} {
		t.Run(fmt.Sprintf("%dbit", bitDepth), func(t *testing.T) {
			t.Parallel()
			want := sineLikeRamp(1000, 2)
			path := writeWAV(t, want, 44100, bitDepth)

			src, err := Open(path)
			require.NoError(t, err)
			defer func() { assert.NoError(t, src.Close()) }()

			assert.Equal(t, 44100, src.SampleRate())
			assert.Equal(t, 2, src.Channels())

			got, err := ReadAll(src)
			require.NoError(t, err)
			require.Equal(t, want.Frames(), got.Frames())
			assert.InDeltaSlice(t, want.Data, got.Data, 1e-3)
		})
	}
}

func TestWAV8BitIsUnsigned(t *testing.T) {
	t.Parallel()

	want := audiocore.FrameBuffer[float32]{Data: []float32{0, 0.5, -0.5, 1}, Channels: 1}
	path := writeWAV(t, want, 8000, 8)

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	got, err := ReadAll(src)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.Data, got.Data, 0.01)
}

func TestReadFrames(t *testing.T) {
	t.Parallel()

	path := writeWAV(t, sineLikeRamp(100, 2), 48000, 16)
	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	buf := audiocore.NewFrameBuffer[float32](64, 2)
	n, err := ReadFrames(src, buf)
	require.NoError(t, err)
	assert.Equal(t, 64, n)

	n, err = ReadFrames(src, buf)
	assert.Equal(t, 36, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenInvalidWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF data"), 0o600))

	_, err := Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFile)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWAVWriterRejects(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.wav")
	w, err := CreateWAV(path, 48000, 2, 16)
	require.NoError(t, err)

	err = w.Write(audiocore.NewFrameBuffer[float32](10, 1))
	assert.ErrorIs(t, err, audiocore.ErrChannelMismatch)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Write(audiocore.NewFrameBuffer[float32](10, 2)), ErrWriterClosed)

	_, err = CreateWAV(filepath.Join(t.TempDir(), "bad.wav"), 48000, 2, 12)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

// chunkedMP3 serves PCM bytes a few at a time, odd counts included.
type chunkedMP3 struct {
	data  []byte
	chunk int
}

func (c *chunkedMP3) SampleRate() int { return 44100 }

func (c *chunkedMP3) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p[:min(len(p), c.chunk)], c.data)
	c.data = c.data[n:]
	return n, nil
}

func TestMP3SourceCarriesOddBytes(t *testing.T) {
	t.Parallel()

	values := []int16{0, 16384, -16384, 32767, -32768, 1}
	data := make([]byte, 0, len(values)*2)
	for _, v := range values {
		data = binary.LittleEndian.AppendUint16(data, uint16(v))
	}

	src := &mp3Source{dec: &chunkedMP3{data: data, chunk: 3}}
	assert.Equal(t, 2, src.Channels())
	assert.Equal(t, 44100, src.SampleRate())

	var got []float32
	dst := make([]float32, 4)
	for {
		n, err := src.ReadSamples(dst)
		got = append(got, dst[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	want := []float32{0, 0.5, -0.5, 32767.0 / 32768, -1, 1.0 / 32768}
	assert.InDeltaSlice(t, want, got, 1e-6)
}

type fakeOgg struct {
	channels int
	values   []float32
	lastLen  int
}

func (f *fakeOgg) SampleRate() int { return 48000 }
func (f *fakeOgg) Channels() int   { return f.channels }

func (f *fakeOgg) Read(p []float32) (int, error) {
	f.lastLen = len(p)
	if len(f.values) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.values)
	f.values = f.values[n:]
	return n, nil
}

func TestVorbisSourceFrameAligned(t *testing.T) {
	t.Parallel()

	dec := &fakeOgg{channels: 2, values: []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}}
	src := &vorbisSource{dec: dec}

	dst := make([]float32, 5)
	n, err := src.ReadSamples(dst)
	require.NoError(t, err)
	assert.Equal(t, 4, dec.lastLen)
	assert.Equal(t, 4, n)

	n, err = src.ReadSamples(dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = src.ReadSamples(dst)
	assert.ErrorIs(t, err, io.EOF)

	n, err = src.ReadSamples(dst[:1])
	assert.NoError(t, err)
	assert.Zero(t, n)
}
