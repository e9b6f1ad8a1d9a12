package telemetry

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NoOpExporterWhenEndpointEmpty(t *testing.T) {
	tel, err := New("", "test-service")
	require.NoError(t, err)
	require.NotNil(t, tel)
	defer tel.Shutdown(context.Background())

	ctx, span := tel.CallSpan(context.Background(), "openai", "gpt-4o-mini", "resp_1", false)
	require.NotNil(t, span)
	span.End()
	_ = ctx
}

func TestRecordCall_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotPanics(t, func() {
		tel.RecordCall("openai", true, time.Second, 10, 20)
		tel.RecordToolCall("echo", true)
	})
}

func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	tel, err := New("", "test-service")
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	tel.RecordCall("openai", false, 100*time.Millisecond, 5, 5)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "gateway_upstream_call_duration_seconds")
}
