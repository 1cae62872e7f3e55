package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the meter name used by NewOtelFactory when no
// meter is given.
const InstrumentationName = "github.com/xraph/cocoa"

// OtelFactory is a MetricFactory backed by an OpenTelemetry meter.
// Instruments that fail to register fall back to no-ops.
type OtelFactory struct {
	meter metric.Meter
}

// NewOtelFactory returns a factory on meter, or on the global meter
// provider when meter is nil.
func NewOtelFactory(meter metric.Meter) *OtelFactory {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	return &OtelFactory{meter: meter}
}

// Counter implements MetricFactory.
func (f *OtelFactory) Counter(name string) Counter {
	c, err := f.meter.Float64Counter(name)
	if err != nil {
		otel.Handle(err)
		return nopMetric{}
	}
	return otelCounter{c}
}

// Histogram implements MetricFactory.
func (f *OtelFactory) Histogram(name string) Histogram {
	h, err := f.meter.Float64Histogram(name)
	if err != nil {
		otel.Handle(err)
		return nopMetric{}
	}
	return otelHistogram{h}
}

type otelCounter struct{ c metric.Float64Counter }

func (o otelCounter) Inc()          { o.c.Add(context.Background(), 1) }
func (o otelCounter) Add(v float64) { o.c.Add(context.Background(), v) }

type otelHistogram struct{ h metric.Float64Histogram }

func (o otelHistogram) Observe(v float64) { o.h.Record(context.Background(), v) }

type nopMetric struct{}

func (nopMetric) Inc()            {}
func (nopMetric) Add(float64)     {}
func (nopMetric) Observe(float64) {}
