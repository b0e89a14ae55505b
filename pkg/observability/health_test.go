package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/stamprally/pkg/observability"
)

func serveHealth(t *testing.T, handler http.Handler, path string) (int, observability.HealthReport) {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))

	var report observability.HealthReport

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	return rec.Code, report
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	t.Parallel()

	code, report := serveHealth(t, observability.HealthHandler(), "/healthz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", report.Status)
	assert.Empty(t, report.Checks)
}

func TestReadyHandler_AllChecksPass(t *testing.T) {
	t.Parallel()

	pass := func(context.Context) error { return nil }

	code, report := serveHealth(t, observability.ReadyHandler(map[string]observability.ReadyCheck{
		"store":   pass,
		"catalog": pass,
	}), "/readyz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, observability.HealthReport{
		Status: "ok",
		Checks: map[string]string{"store": "ok", "catalog": "ok"},
	}, report)
}

func TestReadyHandler_ReportsFailingCheck(t *testing.T) {
	t.Parallel()

	pass := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("store unreachable") }

	code, report := serveHealth(t, observability.ReadyHandler(map[string]observability.ReadyCheck{
		"catalog": pass,
		"store":   fail,
	}), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", report.Status)
	assert.Equal(t, "store unreachable", report.Checks["store"])
	assert.Equal(t, "ok", report.Checks["catalog"])
}
