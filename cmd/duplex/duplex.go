// Package duplex implements the duplex command, a self-test that plays a
// tone through the sink of a duplex stream while capturing its source, then
// reports the level and latency of what came back.
package duplex

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/config"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
	"github.com/tphakala/audiobridge/internal/observability/metrics"
)

// Defaults for the duplex command flags
const (
	DefaultDuration  = 2 * time.Second
	DefaultFrequency = 440.0
	DefaultAmplitude = 0.5
)

// deadlineSlack bounds how long the test may run past its duration
const deadlineSlack = 5 * time.Second

// Options control a duplex test.
type Options struct {
	Duration  time.Duration
	Frequency float64 // tone frequency in Hz
	Amplitude float64 // tone peak, 0 to 1
}

// Report is the outcome of a duplex test.
type Report struct {
	Device   string
	Written  int           // frames played
	Captured int           // frames captured
	Peak     float64       // largest absolute captured sample
	RMS      float64       // RMS over all captured samples
	Detected bool          // the tone was seen in the capture
	Latency  time.Duration // offset of the first captured tone frame
	Stats    audiocore.StreamStats
}

// Command creates the duplex command.
func Command(ctx *config.Context) *cobra.Command {
	opts := Options{}

	cmd := &cobra.Command{
		Use:   "duplex",
		Short: "Play a tone and capture it on one duplex stream",
		Long: "Open a stream with both inputs and outputs, play a sine tone through the sink " +
			"while reading the source concurrently, and report what was captured. " +
			"On the loopback backend the capture is the played tone delayed by the ring.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := Run(cmd.Context(), ctx, opts)
			if err != nil {
				return err
			}
			return report.Print(cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "duration", DefaultDuration, "Length of the test tone")
	cmd.Flags().Float64Var(&opts.Frequency, "frequency", DefaultFrequency, "Tone frequency in Hz")
	cmd.Flags().Float64Var(&opts.Amplitude, "amplitude", DefaultAmplitude, "Tone amplitude between 0 and 1")

	return cmd
}

// tester carries what one test needs across the sample type dispatch.
type tester struct {
	backend  audiocore.Backend
	cfg      audiocore.StreamConfig
	opts     Options
	frames   int
	recorder metrics.TransferRecorder
	log      logger.Logger
}

// Run performs the test on the configured backend and device.
func Run(parent context.Context, app *config.Context, opts Options) (Report, error) {
	cfg := app.Settings.StreamConfig().WithDefaults()
	if err := validate(cfg, opts); err != nil {
		return Report{}, err
	}

	format, err := app.Settings.SampleFormat()
	if err != nil {
		return Report{}, err
	}
	backend, err := app.Backend()
	if err != nil {
		return Report{}, err
	}

	ctx, cancel := context.WithTimeout(parent, opts.Duration+deadlineSlack)
	defer cancel()
	if err := app.StartServices(ctx); err != nil {
		return Report{}, err
	}

	t := &tester{
		backend:  backend,
		cfg:      cfg,
		opts:     opts,
		frames:   int(int64(opts.Duration) * int64(cfg.SampleRate) / int64(time.Second)),
		recorder: app.Recorder(),
		log:      GetLogger(),
	}

	var report Report
	switch format {
	case audiocore.FormatF32:
		report, err = run[float32](ctx, t)
	case audiocore.FormatS32:
		report, err = run[int32](ctx, t)
	case audiocore.FormatS16:
		report, err = run[int16](ctx, t)
	case audiocore.FormatS8:
		report, err = run[int8](ctx, t)
	case audiocore.FormatU8:
		report, err = run[uint8](ctx, t)
	}
	return report, err
}

func validate(cfg audiocore.StreamConfig, opts Options) error {
	var problem string
	switch {
	case cfg.InputChannels <= 0 || cfg.OutputChannels <= 0:
		problem = fmt.Sprintf("duplex test needs inputs and outputs, got %d and %d", cfg.InputChannels, cfg.OutputChannels)
	case opts.Duration <= 0:
		problem = fmt.Sprintf("duration must be positive, got %s", opts.Duration)
	case opts.Frequency <= 0 || opts.Frequency >= float64(cfg.SampleRate)/2:
		problem = fmt.Sprintf("frequency %.1f Hz must be between 0 and %d Hz", opts.Frequency, cfg.SampleRate/2)
	case opts.Amplitude <= 0 || opts.Amplitude > 1:
		problem = fmt.Sprintf("amplitude %.2f must be in (0, 1]", opts.Amplitude)
	default:
		return nil
	}
	return errors.Newf("%s", problem).
		Component("cli").
		Category(errors.CategoryValidation).
		Build()
}

func run[T audiocore.Sample](ctx context.Context, t *tester) (report Report, err error) {
	stream, err := audiocore.Open[T](t.backend, t.cfg)
	if err != nil {
		return Report{}, err
	}
	defer func() {
		if cerr := stream.Close(); err == nil {
			err = cerr
		}
	}()
	if err := stream.Start(); err != nil {
		return Report{}, err
	}

	report.Device = stream.Device().Name
	t.log.Info("duplex test started",
		logger.String("device", report.Device),
		logger.Float64("frequency", t.opts.Frequency),
		logger.Int("frames", t.frames))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := play(gctx, t, stream)
		report.Written = n
		return err
	})
	g.Go(func() error {
		return capture(gctx, t, stream, &report)
	})
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Stats = stream.Stats()
	t.log.Info("duplex test finished",
		logger.Float64("peak", report.Peak),
		logger.Bool("detected", report.Detected),
		logger.Duration("latency", report.Latency))
	return report, nil
}

// play writes t.frames of the tone to the sink, one chunk at a time.
func play[T audiocore.Sample](ctx context.Context, t *tester, stream *audiocore.Stream[T]) (int, error) {
	channels := t.cfg.OutputChannels
	tone := audiocore.NewFrameBuffer[float32](t.cfg.ChunkFrames, channels)
	out := audiocore.NewFrameBuffer[T](t.cfg.ChunkFrames, channels)
	step := 2 * math.Pi * t.opts.Frequency / float64(t.cfg.SampleRate)
	direction := audiocore.DirectionSink.String()

	written := 0
	for written < t.frames {
		n := min(t.cfg.ChunkFrames, t.frames-written)
		for f := range n {
			v := float32(t.opts.Amplitude * math.Sin(step*float64(written+f)))
			for c := range channels {
				tone.Data[f*channels+c] = v
			}
		}
		audiocore.FromFloat32(out.Data[:n*channels], tone.Data[:n*channels])

		t0 := time.Now()
		w, err := stream.Write(ctx, out.Slice(0, n))
		t.recorder.RecordTransfer(direction, w, time.Since(t0), err)
		written += w
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// capture reads as many frames as are played and measures them.
func capture[T audiocore.Sample](ctx context.Context, t *tester, stream *audiocore.Stream[T], report *Report) error {
	channels := t.cfg.InputChannels
	in := audiocore.NewFrameBuffer[T](t.cfg.ChunkFrames, channels)
	level := make([]float32, len(in.Data))
	threshold := t.opts.Amplitude / 2
	direction := audiocore.DirectionSource.String()

	var sumSquares float64
	for report.Captured < t.frames {
		n := min(t.cfg.ChunkFrames, t.frames-report.Captured)

		t0 := time.Now()
		r, err := stream.Read(ctx, in.Slice(0, n))
		t.recorder.RecordTransfer(direction, r, time.Since(t0), err)

		audiocore.ToFloat32(level[:r*channels], in.Data[:r*channels])
		for i, v := range level[:r*channels] {
			a := math.Abs(float64(v))
			sumSquares += a * a
			report.Peak = max(report.Peak, a)
			if !report.Detected && a >= threshold {
				report.Detected = true
				frame := report.Captured + i/channels
				report.Latency = time.Duration(frame) * time.Second / time.Duration(t.cfg.SampleRate)
			}
		}
		report.Captured += r
		if err != nil {
			return err
		}
	}

	if samples := report.Captured * channels; samples > 0 {
		report.RMS = math.Sqrt(sumSquares / float64(samples))
	}
	return nil
}

// Print writes a human readable summary.
func (r Report) Print(w io.Writer) error {
	detected := "no"
	if r.Detected {
		detected = fmt.Sprintf("yes, after %s", r.Latency)
	}
	_, err := fmt.Fprintf(w,
		"device:    %s\nplayed:    %d frames\ncaptured:  %d frames\npeak:      %.3f\nrms:       %.3f\ntone seen: %s\nxruns:     %d\n",
		r.Device, r.Written, r.Captured, r.Peak, r.RMS, detected, r.Stats.Callback.Xruns)
	return err
}

// GetLogger returns the duplex command logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("cli").Module("duplex")
}
