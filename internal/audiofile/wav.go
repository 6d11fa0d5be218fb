package audiofile

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/audiobridge/internal/errors"
)

// wavFormatFloat is the WAVE format tag for IEEE float samples, which
// go-audio decodes as integers.
const wavFormatFloat = 3

// WAVDecoder decodes integer PCM WAV files of 8, 16, 24 or 32 bits.
type WAVDecoder struct{}

type wavSource struct {
	dec        *wav.Decoder
	buf        *audio.IntBuffer
	divisor    float32
	offset     int
	sampleRate int
	channels   int
	eof        bool
}

func (s *wavSource) SampleRate() int { return s.sampleRate }
func (s *wavSource) Channels() int   { return s.channels }
func (s *wavSource) Close() error    { return nil }

func (s *wavSource) ReadSamples(dst []float32) (int, error) {
	if s.eof {
		return 0, io.EOF
	}
	if len(dst) == 0 {
		return 0, nil
	}

	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil {
		return 0, decodeError(err, "wav")
	}
	if n == 0 {
		s.eof = true
		return 0, io.EOF
	}

	for i, v := range s.buf.Data[:n] {
		dst[i] = float32(v-s.offset) / s.divisor
	}
	return n, nil
}

// Decode implements Decoder.
func (WAVDecoder) Decode(r io.ReadSeeker) (Source, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, decodeError(fmt.Errorf("%w: not a valid WAV file", ErrInvalidFile), "wav")
	}
	if dec.WavAudioFormat == wavFormatFloat {
		return nil, errors.New(fmt.Errorf("%w: floating point WAV", ErrUnsupportedFormat)).
			Component(ComponentAudioFile).
			Category(errors.CategoryValidation).
			Context("format", "wav").
			Build()
	}

	bitDepth := int(dec.BitDepth)
	divisor, err := sampleDivisor(bitDepth)
	if err != nil {
		return nil, err
	}

	s := &wavSource{
		dec:        dec,
		buf:        &audio.IntBuffer{Data: make([]int, 4096)},
		divisor:    divisor,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
	}
	// 8-bit WAV samples are unsigned
	if bitDepth == 8 {
		s.offset = 128
	}
	return s, nil
}

// sampleDivisor returns the value that maps a signed integer sample of
// bitDepth bits onto [-1, 1).
func sampleDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 8, 16, 24, 32:
		return float32(int64(1) << (bitDepth - 1)), nil
	default:
		return 0, errors.New(fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, bitDepth)).
			Component(ComponentAudioFile).
			Category(errors.CategoryValidation).
			Context("bit_depth", bitDepth).
			Build()
	}
}
