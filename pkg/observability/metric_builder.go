package observability

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// instrumentSet creates instruments from one meter and collects every
// creation failure, so a constructor checks a single error at the end.
type instrumentSet struct {
	meter metric.Meter
	errs  []error
}

func newInstrumentSet(mt metric.Meter) *instrumentSet {
	return &instrumentSet{meter: mt}
}

func (s *instrumentSet) err() error {
	return errors.Join(s.errs...)
}

func create[T any](s *instrumentSet, name string, fn func() (T, error)) T {
	inst, err := fn()
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("create %s: %w", name, err))
	}

	return inst
}

func (s *instrumentSet) counter(name, desc, unit string) metric.Int64Counter {
	return create(s, name, func() (metric.Int64Counter, error) {
		return s.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	})
}

func (s *instrumentSet) upDownCounter(name, desc, unit string) metric.Int64UpDownCounter {
	return create(s, name, func() (metric.Int64UpDownCounter, error) {
		return s.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	})
}

func (s *instrumentSet) gauge(name, desc, unit string) metric.Int64Gauge {
	return create(s, name, func() (metric.Int64Gauge, error) {
		return s.meter.Int64Gauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	})
}

// seconds creates a duration histogram using durationBucketBoundaries.
func (s *instrumentSet) seconds(name, desc string) metric.Float64Histogram {
	return create(s, name, func() (metric.Float64Histogram, error) {
		return s.meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
		)
	})
}
