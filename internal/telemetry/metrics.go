package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "github.com/stacklok/recordsync/sync"

// SyncMetrics holds the instruments for fetch chains and record-type syncs.
// A nil *SyncMetrics records nothing.
type SyncMetrics struct {
	chainDuration metric.Float64Histogram
	pagesTotal    metric.Int64Counter
	recordsTotal  metric.Int64Counter
	ingestErrors  metric.Int64Counter
	retriesTotal  metric.Int64Counter
	storedRecords metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	chainDuration, err := meter.Float64Histogram(
		"recordsync_fetch_duration_seconds",
		metric.WithDescription("Duration of fetch chains in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900),
	)
	if err != nil {
		return nil, err
	}

	pagesTotal, err := meter.Int64Counter(
		"recordsync_pages_total",
		metric.WithDescription("Number of result pages fetched"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		return nil, err
	}

	recordsTotal, err := meter.Int64Counter(
		"recordsync_records_ingested_total",
		metric.WithDescription("Number of records handed to targets"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	ingestErrors, err := meter.Int64Counter(
		"recordsync_ingest_errors_total",
		metric.WithDescription("Number of records a target failed to ingest"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	retriesTotal, err := meter.Int64Counter(
		"recordsync_retries_total",
		metric.WithDescription("Number of page retries scheduled"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	storedRecords, err := meter.Int64Gauge(
		"recordsync_stored_records",
		metric.WithDescription("Number of records held locally per record type"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		chainDuration: chainDuration,
		pagesTotal:    pagesTotal,
		recordsTotal:  recordsTotal,
		ingestErrors:  ingestErrors,
		retriesTotal:  retriesTotal,
		storedRecords: storedRecords,
	}, nil
}

func recordTypeAttr(recordType string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("record_type", recordType))
}

// RecordChainDuration records how long a fetch chain ran and how it ended.
func (m *SyncMetrics) RecordChainDuration(ctx context.Context, recordType string, duration time.Duration, success bool) {
	if m == nil || m.chainDuration == nil {
		return
	}
	m.chainDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("record_type", recordType),
		attribute.Bool("success", success),
	))
}

// RecordPage counts one fetched page.
func (m *SyncMetrics) RecordPage(ctx context.Context, recordType string) {
	if m == nil || m.pagesTotal == nil {
		return
	}
	m.pagesTotal.Add(ctx, 1, recordTypeAttr(recordType))
}

// RecordIngested counts one record handed to a target.
func (m *SyncMetrics) RecordIngested(ctx context.Context, recordType string, ok bool) {
	if m == nil || m.recordsTotal == nil {
		return
	}
	if ok {
		m.recordsTotal.Add(ctx, 1, recordTypeAttr(recordType))
		return
	}
	m.ingestErrors.Add(ctx, 1, recordTypeAttr(recordType))
}

// RecordRetry counts one scheduled retry.
func (m *SyncMetrics) RecordRetry(ctx context.Context, recordType string) {
	if m == nil || m.retriesTotal == nil {
		return
	}
	m.retriesTotal.Add(ctx, 1, recordTypeAttr(recordType))
}

// RecordStoredRecords records the number of records held locally for a record type.
func (m *SyncMetrics) RecordStoredRecords(ctx context.Context, recordType string, count int64) {
	if m == nil || m.storedRecords == nil {
		return
	}
	m.storedRecords.Record(ctx, count, recordTypeAttr(recordType))
}
