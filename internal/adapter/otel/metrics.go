// Package otel provides OpenTelemetry instruments for the governance pipeline.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "warden"

// Metrics holds all Warden metric instruments.
type Metrics struct {
	DecisionsAllowed      metric.Int64Counter
	DecisionsDenied       metric.Int64Counter
	ApprovalsRequired     metric.Int64Counter
	Promotions            metric.Int64Counter
	SessionsCompleted     metric.Int64Counter
	InterventionsResolved metric.Int64Counter
	DecisionDuration      metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.DecisionsAllowed, err = meter.Int64Counter("warden.decisions.allowed",
		metric.WithDescription("Number of actions allowed"))
	if err != nil {
		return nil, err
	}

	m.DecisionsDenied, err = meter.Int64Counter("warden.decisions.denied",
		metric.WithDescription("Number of actions denied"))
	if err != nil {
		return nil, err
	}

	m.ApprovalsRequired, err = meter.Int64Counter("warden.decisions.approval_required",
		metric.WithDescription("Number of decisions requiring human approval"))
	if err != nil {
		return nil, err
	}

	m.Promotions, err = meter.Int64Counter("warden.tier.promotions",
		metric.WithDescription("Number of tier promotions"))
	if err != nil {
		return nil, err
	}

	m.SessionsCompleted, err = meter.Int64Counter("warden.training.sessions_completed",
		metric.WithDescription("Number of training sessions completed"))
	if err != nil {
		return nil, err
	}

	m.InterventionsResolved, err = meter.Int64Counter("warden.interventions.resolved",
		metric.WithDescription("Number of interventions approved or rejected"))
	if err != nil {
		return nil, err
	}

	m.DecisionDuration, err = meter.Float64Histogram("warden.decision.duration_seconds",
		metric.WithDescription("Governance decision latency in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
