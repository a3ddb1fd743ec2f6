// Package telemetry provides OpenTelemetry instrumentation for the repository server.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// CloneMetricsMeterName is the name used for the clone metrics meter
	CloneMetricsMeterName = "github.com/stacklok/toolhive-repo-server/clone"
)

// CloneMetrics holds the OpenTelemetry instruments for clone operation metrics
type CloneMetrics struct {
	clonesInFlight metric.Int64UpDownCounter
	clonesTotal    metric.Int64Counter
	cloneDuration  metric.Float64Histogram
}

// NewCloneMetrics creates a new CloneMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewCloneMetrics(provider metric.MeterProvider) (*CloneMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(CloneMetricsMeterName)

	clonesInFlight, err := meter.Int64UpDownCounter(
		"thv_repo_srv_clones_in_flight",
		metric.WithDescription("Number of clone operations that have not finished"),
		metric.WithUnit("{clone}"),
	)
	if err != nil {
		return nil, err
	}

	clonesTotal, err := meter.Int64Counter(
		"thv_repo_srv_clones_total",
		metric.WithDescription("Total number of finished clone operations"),
		metric.WithUnit("{clone}"),
	)
	if err != nil {
		return nil, err
	}

	cloneDuration, err := meter.Float64Histogram(
		"thv_repo_srv_clone_duration_seconds",
		metric.WithDescription("Duration of clone operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800),
	)
	if err != nil {
		return nil, err
	}

	return &CloneMetrics{
		clonesInFlight: clonesInFlight,
		clonesTotal:    clonesTotal,
		cloneDuration:  cloneDuration,
	}, nil
}

// RecordCloneQueued records a newly launched clone operation
func (m *CloneMetrics) RecordCloneQueued(ctx context.Context) {
	if m == nil || m.clonesInFlight == nil {
		return
	}

	m.clonesInFlight.Add(ctx, 1)
}

// RecordCloneFinished records the final state and duration of a clone operation
func (m *CloneMetrics) RecordCloneFinished(ctx context.Context, state string, duration time.Duration) {
	if m == nil || m.clonesInFlight == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("state", state))

	m.clonesInFlight.Add(ctx, -1)
	m.clonesTotal.Add(ctx, 1, attrs)
	m.cloneDuration.Record(ctx, duration.Seconds(), attrs)
}
