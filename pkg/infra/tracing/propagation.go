// Package tracing configures OpenTelemetry context propagation. Spans are
// not exported; outbound calls only forward the caller's trace headers.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// SetupPropagator sets the global text map propagator to W3C Trace Context
// plus Baggage, so httpclient injects traceparent on upstream calls.
func SetupPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}
