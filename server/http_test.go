package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/awaketai/crawlrt/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func status() map[string]any {
	return map[string]any{"engine.running": true, "engine.spider": "books"}
}

func TestStatusHandler(t *testing.T) {
	s := NewStatusServer(status)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["engine.running"])
	assert.Equal(t, "books", got["engine.spider"])

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "crawlrt_test_gauge", Help: "test"})
	reg.MustRegister(gauge)
	gauge.Set(42)

	s := NewStatusServer(status, WithGatherer(reg))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crawlrt_test_gauge 42")
}

func TestStartAndShutdown(t *testing.T) {
	s := NewStatusServer(status, WithListen("127.0.0.1", nil), WithGatherer(prometheus.NewRegistry()))
	assert.ErrorIs(t, s.Shutdown(context.Background()), ErrNotStarted)
	assert.Nil(t, s.Addr())

	require.NoError(t, s.Start(context.Background()))
	addr := s.Addr()
	require.NotNil(t, addr)

	resp, err := http.Get("http://" + addr.String() + "/status")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "books")

	require.NoError(t, s.Shutdown(context.Background()))
}

func TestFromSettings(t *testing.T) {
	settings := config.NewSettings(nil)
	_, err := FromSettings(settings, status, prometheus.NewRegistry(), zap.NewNop())
	assert.ErrorIs(t, err, config.ErrNotConfigured)

	settings.Set("STATUS_ENABLED", "true")
	settings.Set("STATUS_PORT", "7100,7110")
	s, err := FromSettings(settings, status, prometheus.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []int{7100, 7110}, s.ports)
	assert.Equal(t, "127.0.0.1", s.host)
}
