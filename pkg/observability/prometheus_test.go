package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/stamprally/pkg/observability"
)

func TestPrometheusMeterProvider_ServesRecordedMetrics(t *testing.T) {
	t.Parallel()

	mp, handler, err := observability.NewPrometheusMeterProvider()
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, mp.Shutdown(context.Background())) })

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	red.RecordRequest(context.Background(), "GET /api/progress", observability.StatusOK, 0)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	body := rec.Body.String()
	assert.Contains(t, body, "target_info")
	assert.Contains(t, body, "stamprally_requests_total")
}

func TestPrometheusMeterProvider_IndependentRegistries(t *testing.T) {
	t.Parallel()

	first, firstHandler, err := observability.NewPrometheusMeterProvider()
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, first.Shutdown(context.Background())) })

	second, secondHandler, err := observability.NewPrometheusMeterProvider()
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, second.Shutdown(context.Background())) })

	sm, err := observability.NewScanMetrics(first.Meter("test"))
	require.NoError(t, err)

	sm.RecordReset(context.Background())

	scrape := func(h http.Handler) string {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

		return rec.Body.String()
	}

	assert.Contains(t, scrape(firstHandler), "stamprally_resets_total")
	assert.NotContains(t, scrape(secondHandler), "stamprally_resets_total")
}
