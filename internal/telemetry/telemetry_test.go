package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandlerExposesCounters(t *testing.T) {
	tel, err := NewTelemetry(zap.NewNop())
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	counter, err := tel.Meter.Int64Counter("positions_exported")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "positions_exported")
	assert.Contains(t, string(body), "go_goroutines")
}
