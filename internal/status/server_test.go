package status

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excelcw/dtools-pull/internal/metrics"
)

func newTestServer(t *testing.T) (*Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	return NewServer(":0", m, zerolog.Nop()), m
}

func TestServer_Healthz(t *testing.T) {
	s, _ := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_StatusReflectsUpdates(t *testing.T) {
	s, _ := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var snap Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, Snapshot{}, snap)

	s.Update(Snapshot{Phase: "processing", Fraction: 0.5, CallsUsed: 42, Rows: 10})

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "processing", snap.Phase)
	assert.Equal(t, 0.5, snap.Fraction)
	assert.Equal(t, 42, snap.CallsUsed)
	assert.Equal(t, 10, snap.Rows)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s, m := newTestServer(t)
	m.RecordAPICall("GetQuote", "200")
	m.RecordCache("QuoteDetails", "hit")

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dtools_api_calls_total")
	assert.Contains(t, string(body), "dtools_cache_requests_total")
}
