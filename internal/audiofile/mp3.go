package audiofile

import (
	"encoding/binary"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MPEG-1/2 Layer III files. go-mp3 always produces
// 16-bit stereo.
type MP3Decoder struct{}

// mp3Reader is the part of gomp3.Decoder the source uses
type mp3Reader interface {
	Read([]byte) (int, error)
	SampleRate() int
}

type mp3Source struct {
	dec  mp3Reader
	buf  []byte
	tail []byte // odd byte left over from the previous read
}

func (s *mp3Source) SampleRate() int { return s.dec.SampleRate() }
func (s *mp3Source) Channels() int   { return 2 }
func (s *mp3Source) Close() error    { return nil }

func (s *mp3Source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	need := len(dst) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	s.buf = s.buf[:need]
	held := copy(s.buf, s.tail)
	s.tail = s.tail[:0]

	m, err := s.dec.Read(s.buf[held:])
	m += held
	samples := m / 2
	for i := range samples {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(s.buf[2*i:]))) / 32768
	}
	if m%2 == 1 {
		s.tail = append(s.tail, s.buf[m-1])
	}

	if err == io.EOF {
		return samples, io.EOF
	}
	if err != nil {
		return samples, decodeError(err, "mp3")
	}
	return samples, nil
}

// Decode implements Decoder.
func (MP3Decoder) Decode(r io.ReadSeeker) (Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, decodeError(err, "mp3")
	}
	return &mp3Source{dec: dec, buf: make([]byte, 8192)}, nil
}
