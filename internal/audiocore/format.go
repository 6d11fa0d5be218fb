package audiocore

import (
	"strings"
	"unsafe"

	"github.com/tphakala/audiobridge/internal/errors"
)

// Sample is the set of PCM sample types a stream can carry.
type Sample interface {
	~float32 | ~int32 | ~int16 | ~int8 | ~uint8
}

// SampleFormat identifies the PCM encoding of a stream.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatF32
	FormatS32
	FormatS16
	FormatS8
	FormatU8
)

// String returns the short format name used in configuration.
func (f SampleFormat) String() string {
	switch f {
	case FormatF32:
		return "f32"
	case FormatS32:
		return "s32"
	case FormatS16:
		return "s16"
	case FormatS8:
		return "s8"
	case FormatU8:
		return "u8"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the encoded size of one sample.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatF32, FormatS32:
		return 4
	case FormatS16:
		return 2
	case FormatS8, FormatU8:
		return 1
	default:
		return 0
	}
}

// BitDepth returns the number of bits per sample.
func (f SampleFormat) BitDepth() int {
	return f.BytesPerSample() * 8
}

// ParseSampleFormat parses a format name such as "f32" or "s16".
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f32", "float32":
		return FormatF32, nil
	case "s32", "int32":
		return FormatS32, nil
	case "s16", "int16":
		return FormatS16, nil
	case "s8", "int8":
		return FormatS8, nil
	case "u8", "uint8":
		return FormatU8, nil
	}
	return FormatUnknown, errors.Newf("unknown sample format %q", s).
		Component(ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("format", s).
		Build()
}

// FormatOf returns the SampleFormat matching T.
func FormatOf[T Sample]() SampleFormat {
	var zero T
	switch unsafe.Sizeof(zero) {
	case 4:
		half := 0.5
		if T(half) != 0 {
			return FormatF32
		}
		return FormatS32
	case 2:
		return FormatS16
	case 1:
		zero--
		if zero < 0 {
			return FormatS8
		}
		return FormatU8
	}
	return FormatUnknown
}

// SilenceOf returns the sample value that encodes silence: zero for signed
// and float formats, the 0x80 midpoint for unsigned 8-bit.
func SilenceOf[T Sample]() T {
	if FormatOf[T]() == FormatU8 {
		mid := 0x80
		return T(mid)
	}
	var zero T
	return zero
}

// fillSilence writes v into every element of dst.
func fillSilence[T Sample](dst []T, v T) {
	if v == 0 {
		clear(dst)
		return
	}
	for i := range dst {
		dst[i] = v
	}
}

// BytesAsSamples reinterprets an engine byte buffer as samples without
// copying. Trailing bytes that do not form a whole sample are ignored.
func BytesAsSamples[T Sample](b []byte) []T {
	var zero T
	n := len(b) / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// SamplesAsBytes reinterprets samples as their in-memory byte encoding
// without copying.
func SamplesAsBytes[T Sample](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}
