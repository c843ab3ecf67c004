package telemetry_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/kse-bridge/internal/telemetry"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, telemetry.ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, telemetry.ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, telemetry.ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, telemetry.ParseLevel("verbose"))
}

func TestNewLogger(t *testing.T) {
	logger, err := telemetry.NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	// registering twice on separate registries must not panic
	m1 := telemetry.NewMetrics(prometheus.NewRegistry())
	m2 := telemetry.NewMetrics(prometheus.NewRegistry())

	m1.RecordSubmission("kse", "succeeded", 0.2)
	m1.RecordSubmission("kse", "failed", 0.1)
	m1.RecordError("kse", "provider")
	m2.RecordListing(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m1.SubmissionsTotal.WithLabelValues("kse", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m1.ItemErrors.WithLabelValues("kse", "provider")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m2.OrderLinesListed))
	assert.Equal(t, 0.0, testutil.ToFloat64(m2.SubmissionsTotal.WithLabelValues("kse", "succeeded")))
}

func TestMetrics_RecordRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordRequest("/api/orders", "200", 0.05)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/orders", "200")))
	count, err := testutil.GatherAndCount(reg, "kse_bridge_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTracer_NoopByDefault(t *testing.T) {
	tracer := telemetry.Tracer("test")
	require.NotNil(t, tracer)
}
