package observability

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/audiocore/backends/loopback"
	"github.com/tphakala/audiobridge/internal/conf"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func enabledSettings() *conf.Settings {
	return &conf.Settings{Metrics: conf.MetricsSettings{Enabled: true, Listen: "127.0.0.1:0"}}
}

func newTestEndpoint(t *testing.T, health *audiocore.HealthMonitor) *Endpoint {
	t.Helper()
	m, err := NewMetrics()
	require.NoError(t, err)
	e, err := NewEndpoint(enabledSettings(), m, health)
	require.NoError(t, err)
	return e
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rec
}

func TestNewEndpointRequiresEnabled(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	_, err = NewEndpoint(&conf.Settings{}, m, nil)
	assert.Error(t, err)
}

func TestEndpointServesStreams(t *testing.T) {
	b := loopback.New(loopback.WithName(t.Name()))
	s, err := audiocore.Open[float32](b, audiocore.StreamConfig{
		OutputChannels:  2,
		FramesPerBuffer: 64,
	})
	require.NoError(t, err)
	defer s.Close()

	health := audiocore.NewHealthMonitor(audiocore.DefaultHealthMonitorConfig())
	health.Check()
	e := newTestEndpoint(t, health)
	h := e.Handler()

	rec := get(t, h, "/api/v1/streams")
	require.Equal(t, http.StatusOK, rec.Code)
	var streams []audiocore.StreamInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &streams))
	ids := make([]string, 0, len(streams))
	for _, info := range streams {
		ids = append(ids, info.ID)
	}
	assert.Contains(t, ids, s.ID())

	rec = get(t, h, "/api/v1/streams/"+s.ID())
	require.Equal(t, http.StatusOK, rec.Code)
	var info audiocore.StreamInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, t.Name(), info.Backend)
	assert.Equal(t, "open", info.State)
	require.NotNil(t, info.Stats.Sink)
	assert.Equal(t, 2, info.Stats.Sink.Channels)
	assert.Nil(t, info.Stats.Source)

	rec = get(t, h, "/api/v1/streams/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var hr HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hr))
	assert.Equal(t, "ok", hr.Status)
	assert.NotEmpty(t, hr.Streams)

	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `audiobridge_stream_info{`)
	assert.Contains(t, body, `stream_id="`+s.ID()+`"`)
	assert.Contains(t, body, `audiobridge_http_requests_total{method="GET",path="/api/v1/streams/:id",status_code="404"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestHealthWithoutMonitor(t *testing.T) {
	e := newTestEndpoint(t, nil)

	rec := get(t, e.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","streams":[]}`, rec.Body.String())
}

func TestEndpointStartAndShutdown(t *testing.T) {
	e := newTestEndpoint(t, nil)

	var wg sync.WaitGroup
	quit := make(chan struct{})
	e.Start(&wg, quit)

	// Wait for the listener so shutdown exercises a running server
	require.Eventually(t, func() bool { return e.Addr() != nil }, 2*time.Second, 5*time.Millisecond)
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + e.Addr().String() + "/health")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	close(quit)
	wg.Wait()
}
