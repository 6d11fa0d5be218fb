package audiofile

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

// wavFormatPCM is the WAVE format tag for integer PCM
const wavFormatPCM = 1

// WAVWriter encodes interleaved float32 frames as integer PCM WAV.
type WAVWriter struct {
	enc        *wav.Encoder
	file       *os.File
	sampleRate int
	channels   int
	bitDepth   int
	frames     int64
	closed     bool
}

// NewWAVWriter writes to w, which must stay open until Close.
func NewWAVWriter(w io.WriteSeeker, sampleRate, channels, bitDepth int) (*WAVWriter, error) {
	if _, err := sampleDivisor(bitDepth); err != nil {
		return nil, err
	}
	if channels < 1 || sampleRate < 1 {
		return nil, errors.New(fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, channels, sampleRate)).
			Component(ComponentAudioFile).
			Category(errors.CategoryValidation).
			Build()
	}
	return &WAVWriter{
		enc:        wav.NewEncoder(w, sampleRate, bitDepth, channels, wavFormatPCM),
		sampleRate: sampleRate,
		channels:   channels,
		bitDepth:   bitDepth,
	}, nil
}

// CreateWAV creates the file at path and returns a writer that owns it.
func CreateWAV(path string, sampleRate, channels, bitDepth int) (*WAVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentAudioFile).
			Category(errors.CategoryFileIO).
			Context("operation", "create").
			Build()
	}
	w, err := NewWAVWriter(f, sampleRate, channels, bitDepth)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	w.file = f
	return w, nil
}

// Write encodes the frames of buf. buf must carry the writer's channel
// count.
func (w *WAVWriter) Write(buf audiocore.FrameBuffer[float32]) error {
	if w.closed {
		return ErrWriterClosed
	}
	if buf.Channels != w.channels {
		return errors.New(fmt.Errorf("%w: buffer has %d channels, file has %d",
			audiocore.ErrChannelMismatch, buf.Channels, w.channels)).
			Component(ComponentAudioFile).
			Category(errors.CategoryValidation).
			Build()
	}
	if buf.Frames() == 0 {
		return nil
	}

	whole := buf.Slice(0, buf.Frames())
	if err := w.enc.Write(audiocore.ToIntBuffer(whole, w.sampleRate, w.bitDepth)); err != nil {
		return errors.New(err).
			Component(ComponentAudioFile).
			Category(errors.CategoryFileIO).
			Context("operation", "write").
			Build()
	}
	w.frames += int64(whole.Frames())
	return nil
}

// Frames returns the number of frames written so far.
func (w *WAVWriter) Frames() int64 { return w.frames }

// Close finalizes the WAV header and closes the file when the writer owns
// one. It is safe to call more than once.
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if err := w.enc.Close(); err != nil {
		errs = append(errs, err)
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.New(errors.Join(errs...)).
			Component(ComponentAudioFile).
			Category(errors.CategoryFileIO).
			Context("operation", "close").
			Build()
	}

	GetLogger().Debug("wav file finalized",
		logger.Int64("frames", w.frames),
		logger.Int("sample_rate", w.sampleRate),
		logger.Int("channels", w.channels),
		logger.Int("bit_depth", w.bitDepth))
	return nil
}
