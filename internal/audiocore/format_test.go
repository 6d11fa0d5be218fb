package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type customSample int16

func TestFormatOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, FormatF32, FormatOf[float32]())
	assert.Equal(t, FormatS32, FormatOf[int32]())
	assert.Equal(t, FormatS16, FormatOf[int16]())
	assert.Equal(t, FormatS8, FormatOf[int8]())
	assert.Equal(t, FormatU8, FormatOf[uint8]())
	assert.Equal(t, FormatS16, FormatOf[customSample]())
}

func TestSilenceOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint8(0x80), SilenceOf[uint8]())
	assert.Equal(t, int8(0), SilenceOf[int8]())
	assert.Equal(t, float32(0), SilenceOf[float32]())
}

func TestParseSampleFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want SampleFormat
	}{
		{"f32", FormatF32},
		{"FLOAT32", FormatF32},
		{" s16 ", FormatS16},
		{"int32", FormatS32},
		{"s8", FormatS8},
		{"u8", FormatU8},
	}
	for _, tt := range tests {
		got, err := ParseSampleFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.want.BitDepth(), tt.want.BytesPerSample()*8)
	}

	_, err := ParseSampleFormat("f64")
	assert.Error(t, err)
}

func TestByteViewsShareMemory(t *testing.T) {
	t.Parallel()

	samples := []int16{1, -2, 3}
	b := SamplesAsBytes(samples)
	require.Len(t, b, 6)

	back := BytesAsSamples[int16](b)
	back[1] = 99
	assert.Equal(t, int16(99), samples[1])

	assert.Nil(t, BytesAsSamples[float32](make([]byte, 3)))
	assert.Len(t, BytesAsSamples[float32](make([]byte, 9)), 2)
	assert.Nil(t, SamplesAsBytes[int16](nil))
}

func TestInterleaveRoundTrip(t *testing.T) {
	t.Parallel()

	const channels, frames = 3, 5
	src := make([]int32, channels*frames)
	for i := range src {
		src[i] = int32(i)
	}

	planar := NewPlanar[int32](channels, frames)
	Deinterleave(planar, src, frames)
	assert.Equal(t, []int32{0, 3, 6, 9, 12}, planar[0])
	assert.Equal(t, []int32{2, 5, 8, 11, 14}, planar[2])

	dst := make([]int32, channels*frames)
	Interleave(dst, planar, frames)
	assert.Equal(t, src, dst)

	// Partial frame ranges leave the rest untouched
	partial := make([]int32, channels*frames)
	Interleave(partial, planar, 2)
	assert.Equal(t, src[:6], partial[:6])
	assert.Equal(t, make([]int32, 9), partial[6:])
}

func TestFrameBuffer(t *testing.T) {
	t.Parallel()

	buf := NewFrameBuffer[float32](4, 2)
	assert.Equal(t, 4, buf.Frames())
	buf.Frame(2)[1] = 1
	assert.Equal(t, float32(1), buf.Data[5])

	sub := buf.Slice(2, 4)
	assert.Equal(t, 2, sub.Frames())
	assert.Equal(t, float32(1), sub.Data[1])

	assert.Zero(t, FrameBuffer[float32]{}.Frames())
}

func TestFloatConversion(t *testing.T) {
	t.Parallel()

	src := []float32{-2, -1, 0, 0.5, 2}

	s16 := make([]int16, len(src))
	FromFloat32(s16, src)
	assert.Equal(t, []int16{-32767, -32767, 0, 16383, 32767}, s16)

	u8 := make([]uint8, len(src))
	FromFloat32(u8, src)
	assert.Equal(t, []uint8{1, 1, 128, 191, 255}, u8)

	back := make([]float32, len(u8))
	ToFloat32(back, []uint8{0, 128, 255})
	assert.InDelta(t, -1, back[0], 1e-6)
	assert.InDelta(t, 0, back[1], 1e-6)
	assert.InDelta(t, 0.992, back[2], 1e-3)
}

func TestGoAudioAdapters(t *testing.T) {
	t.Parallel()

	fb := FrameBuffer[float32]{Data: []float32{0, 0.5, -0.5, 1}, Channels: 2}
	assert.Equal(t, 2, fb.Frames())

	ib := ToIntBuffer(fb, 44100, 16)
	assert.Equal(t, []int{0, 16383, -16383, 32767}, ib.Data)
	assert.Equal(t, 16, ib.SourceBitDepth)
	assert.Equal(t, 2, ib.Format.NumChannels)
	assert.Equal(t, 44100, ib.Format.SampleRate)

	ib8 := ToIntBuffer(fb, 44100, 8)
	assert.Equal(t, []int{128, 191, 65, 255}, ib8.Data)
}
