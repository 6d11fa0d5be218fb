// Package play implements the play command, which decodes an audio file and
// writes it through the sink of an output stream.
package play

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/audiofile"
	"github.com/tphakala/audiobridge/internal/config"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
	"github.com/tphakala/audiobridge/internal/observability/metrics"
)

// DefaultChunkFrames is how many frames are decoded per write
const DefaultChunkFrames = 4096

// Command creates the play command.
func Command(ctx *config.Context) *cobra.Command {
	var chunkFrames int

	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play an audio file",
		Long: "Decode a WAV, FLAC, MP3 or Ogg Vorbis file and play it on the configured device. " +
			"The stream takes its sample rate and channel count from the file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), ctx, args[0], chunkFrames)
		},
	}

	cmd.Flags().IntVar(&chunkFrames, "chunk", DefaultChunkFrames, "Frames decoded and written per transfer")

	return cmd
}

// player carries what one playback needs across the sample type dispatch.
type player struct {
	src         audiofile.Source
	backend     audiocore.Backend
	cfg         audiocore.StreamConfig
	chunkFrames int
	recorder    metrics.TransferRecorder
	log         logger.Logger
}

// Run plays path until it ends or parent is cancelled. Cancellation stops
// playback without an error.
func Run(parent context.Context, app *config.Context, path string, chunkFrames int) error {
	if chunkFrames <= 0 {
		return errors.Newf("chunk frames must be positive, got %d", chunkFrames).
			Component("cli").
			Category(errors.CategoryValidation).
			Build()
	}

	format, err := app.Settings.SampleFormat()
	if err != nil {
		return err
	}

	src, err := audiofile.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	backend, err := app.Backend()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	if err := app.StartServices(ctx); err != nil {
		return err
	}

	cfg := app.Settings.StreamConfig()
	cfg.InputChannels = 0
	cfg.OutputChannels = src.Channels()
	cfg.SampleRate = src.SampleRate()

	p := &player{
		src:         src,
		backend:     backend,
		cfg:         cfg,
		chunkFrames: chunkFrames,
		recorder:    app.Recorder(),
		log:         GetLogger().With(logger.String("file", path)),
	}

	switch format {
	case audiocore.FormatF32:
		err = play[float32](ctx, p)
	case audiocore.FormatS32:
		err = play[int32](ctx, p)
	case audiocore.FormatS16:
		err = play[int16](ctx, p)
	case audiocore.FormatS8:
		err = play[int8](ctx, p)
	case audiocore.FormatU8:
		err = play[uint8](ctx, p)
	}

	if errors.Is(err, context.Canceled) {
		p.log.Info("playback interrupted")
		return nil
	}
	return err
}

func play[T audiocore.Sample](ctx context.Context, p *player) (err error) {
	stream, err := audiocore.Open[T](p.backend, p.cfg)
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

	channels := p.cfg.OutputChannels
	decoded := audiocore.NewFrameBuffer[float32](p.chunkFrames, channels)
	out := audiocore.NewFrameBuffer[T](p.chunkFrames, channels)
	direction := audiocore.DirectionSink.String()

	p.log.Info("playback started",
		logger.String("device", stream.Device().Name),
		logger.Int("sample_rate", p.cfg.SampleRate),
		logger.Int("channels", channels))

	started := time.Now()
	var played int
	for {
		n, rerr := audiofile.ReadFrames(p.src, decoded)
		if n > 0 {
			audiocore.FromFloat32(out.Data[:n*channels], decoded.Data[:n*channels])

			t0 := time.Now()
			written, werr := stream.Write(ctx, out.Slice(0, n))
			p.recorder.RecordTransfer(direction, written, time.Since(t0), werr)
			played += written
			if werr != nil {
				return werr
			}
		}
		if errors.Is(rerr, io.EOF) || (rerr == nil && n == 0) {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	if err := stream.Drain(ctx); err != nil {
		return err
	}

	stats := stream.Stats().Callback
	p.log.Info("playback finished",
		logger.Int("frames", played),
		logger.Duration("elapsed", time.Since(started)),
		logger.Uint64("silenced_samples", stats.SilencedSamples),
		logger.Uint64("xruns", stats.Xruns))
	return nil
}

// GetLogger returns the play command logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("cli").Module("play")
}
