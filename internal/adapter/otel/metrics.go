package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "simpledigital"

// Metrics holds the relay metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	EventsHandled metric.Int64Counter
	ParseFailures metric.Int64Counter
	OpenFailures  metric.Int64Counter
	SettingsSent  metric.Int64Counter
	SendDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWith(otel.GetMeterProvider())
}

// NewMetricsWith creates all metric instruments on mp.
func NewMetricsWith(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.EventsHandled, err = meter.Int64Counter("simpledigital.events.handled",
		metric.WithDescription("Lifecycle events handled by the relay"))
	if err != nil {
		return nil, err
	}

	m.ParseFailures, err = meter.Int64Counter("simpledigital.payload.parse_failures",
		metric.WithDescription("Configuration page responses that could not be parsed"))
	if err != nil {
		return nil, err
	}

	m.OpenFailures, err = meter.Int64Counter("simpledigital.openurl.failures",
		metric.WithDescription("Configuration page open requests the host refused"))
	if err != nil {
		return nil, err
	}

	m.SettingsSent, err = meter.Int64Counter("simpledigital.settings.sent",
		metric.WithDescription("Settings messages delivered to the watch, by outcome"))
	if err != nil {
		return nil, err
	}

	m.SendDuration, err = meter.Float64Histogram("simpledigital.settings.send_duration_seconds",
		metric.WithDescription("Time until the watch acknowledged a settings message"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordEvent counts a handled lifecycle event.
func (m *Metrics) RecordEvent(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.EventsHandled.Add(ctx, 1, metric.WithAttributes(attribute.String("event", name)))
}

// RecordParseFailure counts an unparseable configuration response.
func (m *Metrics) RecordParseFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.ParseFailures.Add(ctx, 1)
}

// RecordOpenFailure counts a refused open request.
func (m *Metrics) RecordOpenFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.OpenFailures.Add(ctx, 1)
}

// RecordSend counts a settings delivery and its duration.
func (m *Metrics) RecordSend(ctx context.Context, ok bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := attribute.String("outcome", "success")
	if !ok {
		outcome = attribute.String("outcome", "failure")
	}
	m.SettingsSent.Add(ctx, 1, metric.WithAttributes(outcome))
	m.SendDuration.Record(ctx, seconds, metric.WithAttributes(outcome))
}
