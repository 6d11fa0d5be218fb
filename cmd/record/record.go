// Package record implements the record command, which captures audio from
// the source of an input stream into a WAV file.
package record

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/audiofile"
	"github.com/tphakala/audiobridge/internal/config"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
	"github.com/tphakala/audiobridge/internal/observability/metrics"
)

// Defaults for the record command flags
const (
	DefaultDuration = 10 * time.Second
	DefaultBuffer   = 2 * time.Second
)

// Options control a recording.
type Options struct {
	Duration time.Duration // zero records until cancelled
	BitDepth int           // WAV bit depth, zero uses the configured depth
	Buffer   time.Duration // audio held between capture and encoder
}

// Command creates the record command.
func Command(ctx *config.Context) *cobra.Command {
	opts := Options{}

	cmd := &cobra.Command{
		Use:   "record <file.wav>",
		Short: "Record audio to a WAV file",
		Long: "Capture from the configured device and write a WAV file. " +
			"Channels and sample rate come from the audio settings.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), ctx, args[0], opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "duration", DefaultDuration, "Length of the recording, 0 records until interrupted")
	cmd.Flags().IntVar(&opts.BitDepth, "bitdepth", 0, "WAV bit depth (8, 16, 24 or 32), default from config")
	cmd.Flags().DurationVar(&opts.Buffer, "buffer", DefaultBuffer, "Audio buffered between capture and file writer")

	return cmd
}

// recorder carries what one recording needs across the sample type dispatch.
type recorder struct {
	backend  audiocore.Backend
	cfg      audiocore.StreamConfig
	target   int // frames to capture, zero for no limit
	writer   *audiofile.WAVWriter
	buffer   time.Duration
	transfer metrics.TransferRecorder
	log      logger.Logger
}

// Run records into path. Cancelling parent ends the recording early and
// keeps what was captured.
func Run(parent context.Context, app *config.Context, path string, opts Options) (err error) {
	format, err := app.Settings.SampleFormat()
	if err != nil {
		return err
	}

	cfg := app.Settings.StreamConfig().WithDefaults()
	cfg.OutputChannels = 0
	if cfg.InputChannels <= 0 {
		return errors.Newf("recording needs at least one input channel").
			Component("cli").
			Category(errors.CategoryValidation).
			Context("input_channels", cfg.InputChannels).
			Build()
	}
	if opts.Duration < 0 {
		return errors.Newf("duration must not be negative, got %s", opts.Duration).
			Component("cli").
			Category(errors.CategoryValidation).
			Build()
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}

	bitDepth := opts.BitDepth
	if bitDepth == 0 {
		bitDepth = app.Settings.Audio.BitDepth
	}

	backend, err := app.Backend()
	if err != nil {
		return err
	}

	writer, err := audiofile.CreateWAV(path, cfg.SampleRate, cfg.InputChannels, bitDepth)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
	}()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	if err := app.StartServices(ctx); err != nil {
		return err
	}

	r := &recorder{
		backend:  backend,
		cfg:      cfg,
		target:   int(int64(opts.Duration) * int64(cfg.SampleRate) / int64(time.Second)),
		writer:   writer,
		buffer:   opts.Buffer,
		transfer: app.Recorder(),
		log:      GetLogger().With(logger.String("file", path)),
	}

	switch format {
	case audiocore.FormatF32:
		err = record[float32](ctx, r)
	case audiocore.FormatS32:
		err = record[int32](ctx, r)
	case audiocore.FormatS16:
		err = record[int16](ctx, r)
	case audiocore.FormatS8:
		err = record[int8](ctx, r)
	case audiocore.FormatU8:
		err = record[uint8](ctx, r)
	}
	if err != nil {
		return err
	}

	r.log.Info("recording saved",
		logger.Int64("frames", writer.Frames()),
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("channels", cfg.InputChannels),
		logger.Int("bit_depth", bitDepth))
	return nil
}

func record[T audiocore.Sample](ctx context.Context, r *recorder) (err error) {
	stream, err := audiocore.Open[T](r.backend, r.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stream.Close(); err == nil {
			err = cerr
		}
	}()
	if err := stream.Start(); err != nil {
		return err
	}

	channels := r.cfg.InputChannels
	frameBytes := channels * 4
	bufferFrames := int(int64(r.buffer) * int64(r.cfg.SampleRate) / int64(time.Second))
	p := newPipe(max(bufferFrames, r.cfg.ChunkFrames)*frameBytes, frameBytes)

	r.log.Info("recording started",
		logger.String("device", stream.Device().Name),
		logger.Int("target_frames", r.target))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := capture(gctx, r, stream, p)
		p.closeWrite(err)
		return err
	})

	g.Go(func() error {
		return r.encode(p)
	})

	return g.Wait()
}

// capture reads chunks from the stream's source and pushes them into the
// pipe as float32 samples until the target is reached. Cancellation ends the
// capture without an error so the encoder still saves what was read.
func capture[T audiocore.Sample](ctx context.Context, r *recorder, stream *audiocore.Stream[T], p *pipe) error {
	channels := r.cfg.InputChannels
	chunk := audiocore.NewFrameBuffer[T](r.cfg.ChunkFrames, channels)
	converted := make([]float32, len(chunk.Data))
	direction := audiocore.DirectionSource.String()

	captured := 0
	for r.target == 0 || captured < r.target {
		want := r.cfg.ChunkFrames
		if r.target > 0 {
			want = min(want, r.target-captured)
		}

		t0 := time.Now()
		n, err := stream.Read(ctx, chunk.Slice(0, want))
		r.transfer.RecordTransfer(direction, n, time.Since(t0), err)

		if n > 0 {
			samples := n * channels
			audiocore.ToFloat32(converted[:samples], chunk.Data[:samples])
			if werr := p.write(ctx, audiocore.SamplesAsBytes(converted[:samples])); werr != nil {
				err = werr
			} else {
				captured += n
			}
		}

		if errors.Is(err, context.Canceled) {
			r.log.Info("recording interrupted", logger.Int("frames", captured))
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// encode writes everything the pipe delivers to the WAV file.
func (r *recorder) encode(p *pipe) error {
	channels := r.cfg.InputChannels
	buf := make([]byte, r.cfg.ChunkFrames*channels*4)
	for {
		n, err := p.read(buf)
		if n > 0 {
			samples := audiocore.BytesAsSamples[float32](buf[:n])
			if werr := r.writer.Write(audiocore.FrameBuffer[float32]{Data: samples, Channels: channels}); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// GetLogger returns the record command logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("cli").Module("record")
}
