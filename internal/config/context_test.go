package config

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/buildinfo"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
	"github.com/tphakala/audiobridge/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	return &conf.Settings{
		Logging: logger.LoggingConfig{
			DefaultLevel: "info",
			Console:      &logger.ConsoleOutput{Enabled: false},
			FileOutput: &logger.FileOutput{
				Enabled: true,
				Path:    filepath.Join(t.TempDir(), "audiobridge.log"),
				Level:   "info",
			},
		},
		Audio: conf.AudioSettings{Backend: "loopback"},
	}
}

func TestNewBackendSharesInstances(t *testing.T) {
	a, err := NewBackend("loopback")
	require.NoError(t, err)
	b, err := NewBackend("loopback")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, "loopback", a.Name())
}

func TestNewBackendUnknown(t *testing.T) {
	_, err := NewBackend("jack")
	require.Error(t, err)
	assert.ErrorIs(t, err, audiocore.ErrInvalidConfig)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestAvailableBackends(t *testing.T) {
	names := AvailableBackends()
	assert.Contains(t, names, "loopback")
	assert.Contains(t, names, "malgo")
	assert.IsIncreasing(t, names)
}

func TestContextBackendFollowsSettings(t *testing.T) {
	c := NewContext(testSettings(t), buildinfo.NewContext("1.0.0", ""))
	b, err := c.Backend()
	require.NoError(t, err)
	assert.Equal(t, "loopback", b.Name())
}

func TestSetupDebugLogsToFile(t *testing.T) {
	settings := testSettings(t)
	settings.Debug = true
	settings.Logging.FileOutput.Level = "debug"

	c := NewContext(settings, nil)
	require.NoError(t, c.Setup())
	GetLogger().Debug("debug message from setup test")
	require.NoError(t, c.Close())

	data, err := os.ReadFile(settings.Logging.FileOutput.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug message from setup test")
	assert.Equal(t, "info", settings.Logging.DefaultLevel, "debug override must not leak into settings")
}

func TestRecorderWithoutMetrics(t *testing.T) {
	c := NewContext(testSettings(t), nil)
	assert.Equal(t, metrics.NopRecorder{}, c.Recorder())
}

func TestStartServicesWithoutMetrics(t *testing.T) {
	c := NewContext(testSettings(t), nil)
	require.NoError(t, c.Setup())

	ctx, cancel := context.WithCancel(t.Context())
	require.NoError(t, c.StartServices(ctx))
	assert.NotNil(t, c.Health)
	assert.Nil(t, c.Endpoint())

	cancel()
	require.NoError(t, c.Close())
}

func TestStartServicesWithMetrics(t *testing.T) {
	settings := testSettings(t)
	settings.Metrics = conf.MetricsSettings{Enabled: true, Listen: "127.0.0.1:0"}

	c := NewContext(settings, nil)
	require.NoError(t, c.Setup())

	ctx, cancel := context.WithCancel(t.Context())
	require.NoError(t, c.StartServices(ctx))
	require.NotNil(t, c.Metrics)
	assert.Same(t, c.Metrics.Transfers, c.Recorder())

	endpoint := c.Endpoint()
	require.NotNil(t, endpoint)
	require.Eventually(t, func() bool { return endpoint.Addr() != nil }, 2*time.Second, 5*time.Millisecond)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + endpoint.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, c.Close())
}
