package audiofile

import (
	"encoding/binary"
	"io"

	"github.com/tphakala/flac"
)

// FLACDecoder decodes FLAC files of 8, 16, 24 or 32 bits per sample.
type FLACDecoder struct{}

type flacSource struct {
	dec        *flac.Decoder
	divisor    float32
	width      int
	sampleRate int
	channels   int
	pending    []float32
	eof        bool
}

func (s *flacSource) SampleRate() int { return s.sampleRate }
func (s *flacSource) Channels() int   { return s.channels }
func (s *flacSource) Close() error    { return nil }

func (s *flacSource) ReadSamples(dst []float32) (int, error) {
	n := 0
	for n < len(dst) {
		if len(s.pending) == 0 {
			if s.eof {
				break
			}
			if err := s.nextFrame(); err != nil {
				return n, err
			}
			continue
		}
		c := copy(dst[n:], s.pending)
		s.pending = s.pending[c:]
		n += c
	}
	if n == 0 && s.eof {
		return 0, io.EOF
	}
	return n, nil
}

// nextFrame decodes one FLAC frame into pending.
func (s *flacSource) nextFrame() error {
	frame, err := s.dec.Next()
	if err == io.EOF {
		s.eof = true
		return nil
	}
	if err != nil {
		return decodeError(err, "flac")
	}

	count := len(frame) / s.width
	if cap(s.pending) < count {
		s.pending = make([]float32, count)
	}
	s.pending = s.pending[:count]
	for i := range count {
		b := frame[i*s.width:]
		var sample int32
		switch s.width {
		case 1:
			sample = int32(int8(b[0]))
		case 2:
			sample = int32(int16(binary.LittleEndian.Uint16(b)))
		case 3:
			// sign-extend the 24-bit value
			sample = int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
		case 4:
			sample = int32(binary.LittleEndian.Uint32(b))
		}
		s.pending[i] = float32(sample) / s.divisor
	}
	return nil
}

// Decode implements Decoder.
func (FLACDecoder) Decode(r io.ReadSeeker) (Source, error) {
	dec, err := flac.NewDecoder(r)
	if err != nil {
		return nil, decodeError(err, "flac")
	}

	divisor, err := sampleDivisor(dec.BitsPerSample)
	if err != nil {
		return nil, err
	}

	return &flacSource{
		dec:        dec,
		divisor:    divisor,
		width:      dec.BitsPerSample / 8,
		sampleRate: dec.SampleRate,
		channels:   dec.NChannels,
	}, nil
}
