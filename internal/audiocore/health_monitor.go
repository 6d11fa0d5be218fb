package audiocore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/audiobridge/internal/logger"
)

// HealthMonitorConfig holds configuration for health monitoring
type HealthMonitorConfig struct {
	CheckInterval time.Duration // how often stream stats are sampled
	StallTimeout  time.Duration // running with no callbacks for this long is a stall
	WarnInterval  time.Duration // minimum gap between warnings for one stream
}

// DefaultHealthMonitorConfig returns the settings used by the CLI.
func DefaultHealthMonitorConfig() HealthMonitorConfig {
	return HealthMonitorConfig{
		CheckInterval: time.Second,
		StallTimeout:  2 * time.Second,
		WarnInterval:  10 * time.Second,
	}
}

// StreamHealth is the monitor's view of one stream.
type StreamHealth struct {
	ID              string    `json:"id"`
	Healthy         bool      `json:"healthy"`
	Stalled         bool      `json:"stalled"`
	NewXruns        uint64    `json:"new_xruns"`
	NewDropped      uint64    `json:"new_dropped_samples"`
	NewSilenced     uint64    `json:"new_silenced_samples"`
	LastCallback    time.Time `json:"last_callback"`
	LastCheckedTime time.Time `json:"last_checked"`
}

// streamTrack is the per-stream state carried between checks
type streamTrack struct {
	last       CallbackStats
	lastAdv    time.Time
	limiter    *rate.Limiter
	health     StreamHealth
	suppressed int
}

// HealthMonitor samples the stats of every open stream and warns about
// xruns, overflows, underruns and stalled callbacks. Warnings are rate
// limited per stream.
type HealthMonitor struct {
	config HealthMonitorConfig
	source func() []StreamInfo
	now    func() time.Time

	mu     sync.RWMutex
	tracks map[string]*streamTrack
	logger logger.Logger
}

// NewHealthMonitor creates a monitor over the open streams.
func NewHealthMonitor(config HealthMonitorConfig) *HealthMonitor {
	def := DefaultHealthMonitorConfig()
	if config.CheckInterval <= 0 {
		config.CheckInterval = def.CheckInterval
	}
	if config.StallTimeout <= 0 {
		config.StallTimeout = def.StallTimeout
	}
	if config.WarnInterval <= 0 {
		config.WarnInterval = def.WarnInterval
	}

	return &HealthMonitor{
		config: config,
		source: Streams,
		now:    time.Now,
		tracks: make(map[string]*streamTrack),
		logger: GetLogger().Module("health"),
	}
}

// Run checks stream health every CheckInterval until ctx is done.
func (h *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Check()
		case <-ctx.Done():
			return
		}
	}
}

// Check samples all streams once and returns their health.
func (h *HealthMonitor) Check() []StreamHealth {
	infos := h.source()
	now := h.now()

	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[string]struct{}, len(infos))
	result := make([]StreamHealth, 0, len(infos))
	for _, info := range infos {
		seen[info.ID] = struct{}{}
		result = append(result, h.checkStream(info, now))
	}

	// Forget streams that have been closed
	maps.DeleteFunc(h.tracks, func(id string, _ *streamTrack) bool {
		_, ok := seen[id]
		return !ok
	})

	return result
}

func (h *HealthMonitor) checkStream(info StreamInfo, now time.Time) StreamHealth {
	cur := info.Stats.Callback
	tr, ok := h.tracks[info.ID]
	if !ok {
		tr = &streamTrack{
			lastAdv: now,
			limiter: rate.NewLimiter(rate.Every(h.config.WarnInterval), 1),
		}
		h.tracks[info.ID] = tr
	}

	if cur.Callbacks != tr.last.Callbacks {
		tr.lastAdv = now
	}

	health := StreamHealth{
		ID:              info.ID,
		NewXruns:        cur.Xruns - tr.last.Xruns,
		NewDropped:      cur.DroppedSamples - tr.last.DroppedSamples,
		NewSilenced:     cur.SilencedSamples - tr.last.SilencedSamples,
		LastCallback:    tr.lastAdv,
		LastCheckedTime: now,
	}
	running := info.State == StateRunning.String()
	health.Stalled = running && now.Sub(tr.lastAdv) > h.config.StallTimeout
	health.Healthy = !health.Stalled && health.NewXruns == 0 && health.NewDropped == 0

	tr.last = cur
	tr.health = health

	if !health.Healthy {
		if tr.limiter.AllowN(now, 1) {
			h.logger.Warn("audio stream unhealthy",
				logger.String("stream_id", info.ID),
				logger.String("device", info.Device),
				logger.Bool("stalled", health.Stalled),
				logger.Uint64("new_xruns", health.NewXruns),
				logger.Uint64("new_dropped_samples", health.NewDropped),
				logger.Uint64("new_silenced_samples", health.NewSilenced),
				logger.Int("suppressed_warnings", tr.suppressed))
			tr.suppressed = 0
		} else {
			tr.suppressed++
		}
	}

	return health
}

// Health returns the last known health of a stream.
func (h *HealthMonitor) Health(id string) (StreamHealth, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	tr, ok := h.tracks[id]
	if !ok {
		return StreamHealth{}, false
	}
	return tr.health, true
}

// Snapshot returns the last known health of every tracked stream, ordered
// by stream ID.
func (h *HealthMonitor) Snapshot() []StreamHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]StreamHealth, 0, len(h.tracks))
	for _, tr := range h.tracks {
		out = append(out, tr.health)
	}
	slices.SortFunc(out, func(a, b StreamHealth) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// AllHealthy reports whether every stream was healthy at the last check.
func (h *HealthMonitor) AllHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, tr := range h.tracks {
		if !tr.health.Healthy {
			return false
		}
	}
	return true
}
