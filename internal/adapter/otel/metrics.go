package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "claimdesk"

// Metrics holds the ClaimDesk metric instruments.
type Metrics struct {
	TurnsHandled      metric.Int64Counter
	Delegations       metric.Int64Counter
	Decisions         metric.Int64Counter
	Relays            metric.Int64Counter
	InferenceFailures metric.Int64Counter
	AuditPublishFails metric.Int64Counter
	BreakerChanges    metric.Int64Counter
	TurnDuration      metric.Float64Histogram
	InferenceDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.TurnsHandled, "claimdesk.turns", "Number of user turns handled"},
		{&m.Delegations, "claimdesk.delegations", "Number of delegations from Eloise to a specialist"},
		{&m.Decisions, "claimdesk.decisions", "Number of structured specialist decisions"},
		{&m.Relays, "claimdesk.relays", "Number of specialist decisions relayed to the customer"},
		{&m.InferenceFailures, "claimdesk.inference.failures", "Number of failed inference calls"},
		{&m.AuditPublishFails, "claimdesk.audit.publish_failures", "Number of failed audit sink publishes"},
		{&m.BreakerChanges, "claimdesk.breaker.transitions", "Number of circuit breaker state changes"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}

	m.TurnDuration, err = meter.Float64Histogram("claimdesk.turn.duration_seconds",
		metric.WithDescription("Turn duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.InferenceDuration, err = meter.Float64Histogram("claimdesk.inference.duration_seconds",
		metric.WithDescription("Inference call duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
