// Package config holds the application context shared by the CLI commands:
// the loaded settings, the global logger, error reporting and the
// observability services that run next to the audio streams.
package config

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/buildinfo"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
	"github.com/tphakala/audiobridge/internal/observability"
	"github.com/tphakala/audiobridge/internal/observability/metrics"
)

// ComponentConfig identifies errors raised while assembling the context
const ComponentConfig = "app"

const sentryFlushTimeout = 2 * time.Second

// Context holds the overall application state.
type Context struct {
	Settings *conf.Settings
	Build    *buildinfo.Context
	Metrics  *observability.Metrics   // nil unless metrics are enabled
	Health   *audiocore.HealthMonitor // set by StartServices

	endpoint *observability.Endpoint
	logger   *logger.CentralLogger
	wg       sync.WaitGroup
}

// NewContext creates a new instance of Context with the provided settings.
func NewContext(settings *conf.Settings, build *buildinfo.Context) *Context {
	if build == nil {
		build = buildinfo.Current()
	}
	return &Context{
		Settings: settings,
		Build:    build,
	}
}

// Setup installs the global logger and, when enabled, Sentry error
// reporting. Debug mode lowers the default and console levels to debug.
func (c *Context) Setup() error {
	cfg := c.Settings.Logging
	if c.Settings.Debug {
		cfg.DefaultLevel = string(logger.LogLevelDebug)
		console := logger.ConsoleOutput{Enabled: true}
		if cfg.Console != nil {
			console = *cfg.Console
		}
		console.Level = string(logger.LogLevelDebug)
		cfg.Console = &console
	}

	cl, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return errors.New(err).
			Component(ComponentConfig).
			Category(errors.CategoryConfiguration).
			Context("operation", "init_logger").
			Build()
	}
	logger.SetGlobal(cl)
	c.logger = cl

	if c.Settings.Sentry.Enabled {
		if err := errors.InitSentry(c.Settings.Sentry.DSN, c.Build.Version()); err != nil {
			return err
		}
		GetLogger().Info("error reporting enabled")
	}
	return nil
}

// Backend returns the backend selected in the audio settings.
func (c *Context) Backend() (audiocore.Backend, error) {
	return NewBackend(c.Settings.Audio.Backend)
}

// Recorder returns the transfer recorder commands report to. Without
// metrics it discards everything.
func (c *Context) Recorder() metrics.TransferRecorder {
	if c.Metrics == nil {
		return metrics.NopRecorder{}
	}
	return c.Metrics.Transfers
}

// StartServices starts the stream health monitor and, when enabled, the
// observability endpoint. Both stop when ctx is done.
func (c *Context) StartServices(ctx context.Context) error {
	c.Health = audiocore.NewHealthMonitor(audiocore.DefaultHealthMonitorConfig())
	c.wg.Go(func() { c.Health.Run(ctx) })

	if !c.Settings.Metrics.Enabled {
		return nil
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return errors.New(err).
			Component(ComponentConfig).
			Category(errors.CategorySystem).
			Context("operation", "init_metrics").
			Build()
	}
	endpoint, err := observability.NewEndpoint(c.Settings, m, c.Health)
	if err != nil {
		return err
	}
	c.Metrics = m
	c.endpoint = endpoint

	quit := make(chan struct{})
	endpoint.Start(&c.wg, quit)
	c.wg.Go(func() {
		<-ctx.Done()
		close(quit)
	})
	return nil
}

// Endpoint returns the running observability endpoint, or nil.
func (c *Context) Endpoint() *observability.Endpoint {
	return c.endpoint
}

// Close waits for the services to stop, flushes pending error reports and
// closes the logger. The context passed to StartServices must be done.
func (c *Context) Close() error {
	c.wg.Wait()
	errors.FlushSentry(sentryFlushTimeout)

	if c.logger == nil {
		return nil
	}
	err := c.logger.Close()
	logger.SetGlobal(nil)
	c.logger = nil
	return err
}
