package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
	}{
		{name: "no config", opts: nil},
		{name: "disabled config", opts: []Option{WithTelemetryConfig(&Config{Enabled: false})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tel, err := New(context.Background(), tt.opts...)
			require.NoError(t, err)

			_, ok := tel.TracerProvider().(tracenoop.TracerProvider)
			assert.True(t, ok, "expected no-op tracer provider")
			_, ok = tel.MeterProvider().(metricnoop.MeterProvider)
			assert.True(t, ok, "expected no-op meter provider")
			assert.Nil(t, tel.MetricsHandler())
			assert.NoError(t, tel.Shutdown(context.Background()))
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled: true,
		Tracing: &TracingConfig{Enabled: true, Sampling: 3},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry configuration")
}

// Not parallel: enabling providers replaces the otel globals
func TestNew_PrometheusMetrics(t *testing.T) {
	tel, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled:        true,
		ServiceVersion: "test",
		Metrics:        &MetricsConfig{Enabled: true, Prometheus: true, DisableOTLP: true},
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	_, ok := tel.MeterProvider().(*sdkmetric.MeterProvider)
	require.True(t, ok, "expected SDK meter provider")
	_, ok = tel.TracerProvider().(tracenoop.TracerProvider)
	assert.True(t, ok, "tracing was not enabled")

	metrics, err := NewCloneMetrics(tel.MeterProvider())
	require.NoError(t, err)
	metrics.RecordCloneQueued(context.Background())

	require.NotNil(t, tel.MetricsHandler())
	rr := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "thv_repo_srv_clones_in_flight")
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

// Not parallel: enabling providers replaces the otel globals
func TestNew_Tracing(t *testing.T) {
	tel, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled:  true,
		Insecure: true,
		Tracing:  &TracingConfig{Enabled: true, Sampling: 1},
	}))
	require.NoError(t, err)

	tp, ok := tel.TracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok, "expected SDK tracer provider")
	assert.NotNil(t, tp.Tracer("test"))
	assert.Nil(t, tel.MetricsHandler())

	// No collector is running; shutdown errors from the exporter flush are expected
	_ = tel.Shutdown(context.Background())
}
