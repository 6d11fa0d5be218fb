package audiofile

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

// Source is a decoded audio stream.
type Source interface {
	SampleRate() int
	Channels() int
	// ReadSamples fills dst with interleaved samples and returns how many it
	// wrote. It returns io.EOF, possibly together with n > 0, once the
	// stream is exhausted.
	ReadSamples(dst []float32) (int, error)
	Close() error
}

// Decoder turns an encoded stream into a Source.
type Decoder interface {
	Decode(r io.ReadSeeker) (Source, error)
}

var decoders = map[string]Decoder{
	".wav":  WAVDecoder{},
	".wave": WAVDecoder{},
	".flac": FLACDecoder{},
	".mp3":  MP3Decoder{},
	".ogg":  VorbisDecoder{},
	".oga":  VorbisDecoder{},
}

// SupportedExtensions returns the file extensions Open understands.
func SupportedExtensions() []string {
	return slices.Sorted(maps.Keys(decoders))
}

// DecoderFor picks a decoder from the extension of path.
func DecoderFor(path string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(path))
	dec, ok := decoders[ext]
	if !ok {
		return nil, errors.New(fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)).
			Component(ComponentAudioFile).
			Category(errors.CategoryValidation).
			Context("extension", ext).
			Context("supported", SupportedExtensions()).
			Build()
	}
	return dec, nil
}

// Open opens and decodes the file at path. Closing the Source closes the
// file.
func Open(path string) (Source, error) {
	dec, err := DecoderFor(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentAudioFile).
			Category(errors.CategoryFileIO).
			Context("operation", "open").
			Build()
	}

	src, err := dec.Decode(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	GetLogger().Debug("audio file opened",
		logger.String("path", path),
		logger.Int("sample_rate", src.SampleRate()),
		logger.Int("channels", src.Channels()))

	return &fileSource{Source: src, file: f}, nil
}

type fileSource struct {
	Source
	file *os.File
}

func (s *fileSource) Close() error {
	return errors.Join(s.Source.Close(), s.file.Close())
}

// ReadFrames reads up to buf.Frames() whole frames from src into buf. A
// trailing partial frame at the end of the stream is dropped.
func ReadFrames(src Source, buf audiocore.FrameBuffer[float32]) (int, error) {
	want := buf.Frames() * buf.Channels
	total := 0
	for total < want {
		n, err := src.ReadSamples(buf.Data[total:want])
		total += n
		if err != nil {
			return total / buf.Channels, err
		}
		if n == 0 {
			break
		}
	}
	return total / buf.Channels, nil
}

// ReadAll decodes the rest of src into a single buffer.
func ReadAll(src Source) (audiocore.FrameBuffer[float32], error) {
	out := audiocore.FrameBuffer[float32]{Channels: src.Channels()}
	chunk := make([]float32, 4096*src.Channels())
	for {
		n, err := src.ReadSamples(chunk)
		out.Data = append(out.Data, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, err
		}
		if n == 0 {
			break
		}
	}
	out.Data = out.Data[:out.Frames()*out.Channels]
	return out, nil
}
