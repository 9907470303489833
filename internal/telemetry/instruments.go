// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "chargewalk.session"

// RecordTransition adds one to the otel transition counter. The meter is
// looked up at call time so a provider installed later is honoured.
func RecordTransition(ctx context.Context, from, to, event string) {
	meter := otel.GetMeterProvider().Meter(meterName)
	counter, err := meter.Int64Counter("chargewalk.session.transitions",
		metric.WithDescription("Session state transitions"))
	if err != nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
		attribute.String("event", event),
	))
}

// RecordEmission adds one to the otel event emission counter.
func RecordEmission(ctx context.Context, kind, result string) {
	meter := otel.GetMeterProvider().Meter(meterName)
	counter, err := meter.Int64Counter("chargewalk.events.emitted",
		metric.WithDescription("Remote events by kind and outcome"))
	if err != nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}
