package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricScansTotal     = "stamprally.scans.total"
	metricScanDuration   = "stamprally.scan.duration.seconds"
	metricResetsTotal    = "stamprally.resets.total"
	metricCompletedGauge = "stamprally.progress.completed"

	attrOutcome    = "outcome"
	attrReason     = "reason"
	attrCheckpoint = "checkpoint"
)

// ScanMetrics holds the instruments for the check-in engine.
type ScanMetrics struct {
	scansTotal   metric.Int64Counter
	scanDuration metric.Float64Histogram
	resetsTotal  metric.Int64Counter
	completed    metric.Int64Gauge
}

// ScanRecord describes one finished scan for metric purposes.
type ScanRecord struct {
	Outcome    string
	Reason     string
	Checkpoint string
	Completed  int
	Duration   time.Duration
}

// NewScanMetrics creates the engine instruments from the given meter.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	set := newInstrumentSet(mt)

	sm := &ScanMetrics{
		scansTotal:   set.counter(metricScansTotal, "Scan attempts by outcome and reason", "{scan}"),
		scanDuration: set.seconds(metricScanDuration, "Scan handling time"),
		resetsTotal:  set.counter(metricResetsTotal, "Progress resets", "{reset}"),
		completed:    set.gauge(metricCompletedGauge, "Checkpoints completed in the current record", "{checkpoint}"),
	}

	err := set.err()
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordScan records a finished scan. Safe to call on a nil receiver.
func (sm *ScanMetrics) RecordScan(ctx context.Context, rec ScanRecord) {
	if sm == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String(attrOutcome, rec.Outcome)}

	if rec.Reason != "" {
		attrs = append(attrs, attribute.String(attrReason, rec.Reason))
	}

	if rec.Checkpoint != "" {
		attrs = append(attrs, attribute.String(attrCheckpoint, rec.Checkpoint))
	}

	sm.scansTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	sm.scanDuration.Record(ctx, rec.Duration.Seconds(),
		metric.WithAttributes(attribute.String(attrOutcome, rec.Outcome)))
	sm.completed.Record(ctx, int64(rec.Completed))
}

// RecordReset records a progress reset. Safe to call on a nil receiver.
func (sm *ScanMetrics) RecordReset(ctx context.Context) {
	if sm == nil {
		return
	}

	sm.resetsTotal.Add(ctx, 1)
	sm.completed.Record(ctx, 0)
}
