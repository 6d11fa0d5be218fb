package observability

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
	"github.com/tphakala/audiobridge/internal/observability/metrics"
)

// Component identifier for observability errors
const ComponentObservability = "observability"

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string                   `json:"status"` // "ok" or "degraded"
	Streams []audiocore.StreamHealth `json:"streams"`
}

// Endpoint serves /metrics, /health and /api/v1/streams.
type Endpoint struct {
	echo          *echo.Echo
	listenAddress string
	metrics       *Metrics
	health        *audiocore.HealthMonitor
}

// NewEndpoint creates the endpoint. It returns an error when metrics are
// disabled in settings. health may be nil, in which case /health reports
// ok without stream details.
func NewEndpoint(settings *conf.Settings, m *Metrics, health *audiocore.HealthMonitor) (*Endpoint, error) {
	if !settings.Metrics.Enabled {
		return nil, errors.Newf("metrics endpoint not enabled in settings").
			Component(ComponentObservability).
			Category(errors.CategoryConfiguration).
			Build()
	}

	e := &Endpoint{
		echo:          echo.New(),
		listenAddress: settings.Metrics.Listen,
		metrics:       m,
		health:        health,
	}
	e.echo.HideBanner = true
	e.echo.HidePort = true
	e.routes()
	return e, nil
}

func (e *Endpoint) routes() {
	e.echo.Use(e.requestMetrics)

	e.echo.GET("/metrics", echo.WrapHandler(e.metrics.Handler()))
	e.echo.GET("/health", e.getHealth)

	api := e.echo.Group("/api/v1")
	api.GET("/streams", e.getStreams)
	api.GET("/streams/:id", e.getStream)
}

// Handler returns the endpoint's HTTP handler.
func (e *Endpoint) Handler() http.Handler {
	return e.echo
}

// Addr returns the address the server listens on, or nil before Start has
// bound the listener.
func (e *Endpoint) Addr() net.Addr {
	return e.echo.ListenerAddr()
}

// requestMetrics records every request under its route pattern so that
// stream IDs do not create new label values.
func (e *Endpoint) requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		e.metrics.HTTP.RecordHTTPRequest(c.Request().Method, path,
			c.Response().Status, time.Since(start).Seconds(), c.Response().Size)
		return nil
	}
}

func (e *Endpoint) getHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Streams: []audiocore.StreamHealth{}}
	if e.health != nil {
		resp.Streams = e.health.Snapshot()
		if !e.health.AllHealthy() {
			resp.Status = "degraded"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (e *Endpoint) getStreams(c echo.Context) error {
	return c.JSON(http.StatusOK, audiocore.Streams())
}

func (e *Endpoint) getStream(c echo.Context) error {
	id := c.Param("id")
	for _, info := range audiocore.Streams() {
		if info.ID == id {
			return c.JSON(http.StatusOK, info)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "stream not found")
}

// Start runs the HTTP server until quitChan is closed. Both the server and
// its shutdown run on wg.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	log := GetLogger()

	wg.Go(func() {
		log.Info("observability endpoint starting", logger.String("address", e.listenAddress))
		if err := e.echo.Start(e.listenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("observability HTTP server error", logger.Error(err))
		}
	})

	wg.Go(func() {
		<-quitChan
		e.shutdown()
	})
}

func (e *Endpoint) shutdown() {
	log := GetLogger()
	log.Info("stopping observability endpoint")
	ctx, cancel := context.WithTimeout(context.Background(), metrics.ShutdownTimeout)
	defer cancel()
	if err := e.echo.Shutdown(ctx); err != nil {
		log.Error("observability endpoint shutdown error", logger.Error(err))
	}
}
