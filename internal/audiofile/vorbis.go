package audiofile

import (
	"io"

	"github.com/jfreymuth/oggvorbis"
)

// VorbisDecoder decodes Ogg Vorbis files.
type VorbisDecoder struct{}

// oggReader is the part of oggvorbis.Reader the source uses
type oggReader interface {
	SampleRate() int
	Channels() int
	// Read returns the number of values written, channels times frames
	Read([]float32) (int, error)
}

type vorbisSource struct {
	dec oggReader
}

func (s *vorbisSource) SampleRate() int { return s.dec.SampleRate() }
func (s *vorbisSource) Channels() int   { return s.dec.Channels() }
func (s *vorbisSource) Close() error    { return nil }

func (s *vorbisSource) ReadSamples(dst []float32) (int, error) {
	// keep reads frame aligned
	dst = dst[:len(dst)-len(dst)%s.dec.Channels()]
	if len(dst) == 0 {
		return 0, nil
	}

	n, err := s.dec.Read(dst)
	if err == io.EOF {
		return n, io.EOF
	}
	if err != nil {
		return n, decodeError(err, "ogg")
	}
	return n, nil
}

// Decode implements Decoder.
func (VorbisDecoder) Decode(r io.ReadSeeker) (Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, decodeError(err, "ogg")
	}
	return &vorbisSource{dec: dec}, nil
}
