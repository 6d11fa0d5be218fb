package audiocore

import (
	"github.com/go-audio/audio"
)

// FrameBuffer is an application-side, frame-major (interleaved) buffer:
// Data holds frame after frame, each frame holding one sample per channel.
type FrameBuffer[T Sample] struct {
	Data     []T
	Channels int
}

// NewFrameBuffer allocates a zeroed buffer of frames x channels samples.
func NewFrameBuffer[T Sample](frames, channels int) FrameBuffer[T] {
	return FrameBuffer[T]{
		Data:     make([]T, frames*channels),
		Channels: channels,
	}
}

// Frames returns the number of whole frames in the buffer.
func (b FrameBuffer[T]) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Frame returns the samples of frame i.
func (b FrameBuffer[T]) Frame(i int) []T {
	return b.Data[i*b.Channels : (i+1)*b.Channels]
}

// Slice returns the frames in [from, to) sharing the same backing array.
func (b FrameBuffer[T]) Slice(from, to int) FrameBuffer[T] {
	return FrameBuffer[T]{
		Data:     b.Data[from*b.Channels : to*b.Channels],
		Channels: b.Channels,
	}
}

// NewPlanar allocates a channel-major staging buffer with one slice of
// frames samples per channel, backed by a single allocation.
func NewPlanar[T Sample](channels, frames int) [][]T {
	backing := make([]T, channels*frames)
	planes := make([][]T, channels)
	for c := range planes {
		planes[c] = backing[c*frames : (c+1)*frames : (c+1)*frames]
	}
	return planes
}

// Deinterleave copies n frames from the frame-major src into the planar dst.
func Deinterleave[T Sample](dst [][]T, src []T, n int) {
	channels := len(dst)
	if channels == 1 {
		copy(dst[0][:n], src[:n])
		return
	}
	for c, plane := range dst {
		plane = plane[:n]
		for f := range plane {
			plane[f] = src[f*channels+c]
		}
	}
}

// Interleave copies n frames from the planar src into the frame-major dst.
func Interleave[T Sample](dst []T, src [][]T, n int) {
	channels := len(src)
	if channels == 1 {
		copy(dst[:n], src[0][:n])
		return
	}
	for c, plane := range src {
		plane = plane[:n]
		for f, v := range plane {
			dst[f*channels+c] = v
		}
	}
}

// ToFloat32 converts samples to normalized float32 in [-1, 1) and returns
// the number converted.
func ToFloat32[T Sample](dst []float32, src []T) int {
	n := min(len(dst), len(src))
	dst, src = dst[:n], src[:n]

	switch FormatOf[T]() {
	case FormatF32:
		for i, v := range src {
			dst[i] = float32(v)
		}
	case FormatS32:
		for i, v := range src {
			dst[i] = float32(float64(v) / (1 << 31))
		}
	case FormatS16:
		for i, v := range src {
			dst[i] = float32(v) / (1 << 15)
		}
	case FormatS8:
		for i, v := range src {
			dst[i] = float32(v) / (1 << 7)
		}
	case FormatU8:
		for i, v := range src {
			dst[i] = (float32(v) - 128) / (1 << 7)
		}
	}
	return n
}

// FromFloat32 converts normalized float32 samples into T, clipping values
// outside [-1, 1], and returns the number converted.
func FromFloat32[T Sample](dst []T, src []float32) int {
	n := min(len(dst), len(src))
	dst, src = dst[:n], src[:n]

	format := FormatOf[T]()
	if format == FormatF32 {
		for i, v := range src {
			dst[i] = T(v)
		}
		return n
	}

	for i, v := range src {
		x := float64(max(-1, min(1, v)))
		switch format {
		case FormatS32:
			s := int32(x * (1<<31 - 1))
			dst[i] = T(s)
		case FormatS16:
			s := int16(x * (1<<15 - 1))
			dst[i] = T(s)
		case FormatS8:
			s := int8(x * (1<<7 - 1))
			dst[i] = T(s)
		case FormatU8:
			s := uint8(x*(1<<7-1) + 128)
			dst[i] = T(s)
		}
	}
	return n
}

// ToIntBuffer converts b to a go-audio integer buffer at bitDepth (8, 16, 24
// or 32). 8-bit output is unsigned, as WAV stores it.
func ToIntBuffer[T Sample](b FrameBuffer[T], sampleRate, bitDepth int) *audio.IntBuffer {
	floats := make([]float32, len(b.Data))
	ToFloat32(floats, b.Data)

	data := make([]int, len(floats))
	scale := float64(int64(1)<<(bitDepth-1) - 1)
	for i, f := range floats {
		v := int(float64(max(-1, min(1, f))) * scale)
		if bitDepth == 8 {
			v += 128
		}
		data[i] = v
	}

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: b.Channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
}
