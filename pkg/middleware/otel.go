package middleware

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/server"
)

// defaultTracerName is the tracer name used when none is configured.
const defaultTracerName = "portico"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "portico").
	TracerName string

	// Filter determines which events to trace.
	// Return true to trace the event, false to skip.
	// If nil, all events are traced.
	Filter func(c server.Ctx) bool

	// AttributeExtractor extracts custom attributes from the context.
	// Called for each traced event.
	AttributeExtractor func(c server.Ctx) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithEventFilter sets a filter function for events.
func WithEventFilter(filter func(c server.Ctx) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(c server.Ctx) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// defaultOTelConfig returns the default OpenTelemetry configuration.
func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates middleware that traces every dispatched event.
//
// The middleware:
//   - Creates a span per event named after the event type
//   - Tags the span with session ID, event type, and target element
//   - Installs the span context on the Ctx so handlers and later middleware
//     see it through c.Context()
//   - Records handler errors and sets span status
//   - Records the event's patch and relocation counts
//
// The tracer comes from the global OpenTelemetry tracer provider. Configure
// the provider in main() before starting the server:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//
//	srv.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	))
func OpenTelemetry(opts ...OTelOption) server.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Resolve tracer from global provider
	config.tracer = otel.Tracer(config.TracerName)

	return func(c server.Ctx, next func() error) error {
		if config.Filter != nil && !config.Filter(c) {
			return next()
		}

		spanName := "portico.event"
		attrs := []attribute.KeyValue{}

		if sess := c.Session(); sess != nil {
			attrs = append(attrs, attribute.String("portico.session_id", sess.ID))
		}
		if ev := c.Event(); ev != nil {
			attrs = append(attrs,
				attribute.String("portico.event_type", ev.Type.String()),
				attribute.String("portico.event_target", ev.EID),
			)
			spanName = fmt.Sprintf("portico.%s", ev.Type.String())
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(c)...)
		}

		spanCtx, span := config.tracer.Start(
			c.Context(),
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		// Downstream middleware and the handler see the span through
		// c.Context().
		c.SetContext(spanCtx)

		err := next()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		pending := c.PendingPatches()
		moves := 0
		for _, p := range pending {
			if p.Op == dom.OpMoveNode {
				moves++
			}
		}
		span.SetAttributes(
			attribute.Int("portico.patch_count", len(pending)),
			attribute.Int("portico.relocations", moves),
		)

		return err
	}
}

// SpanFromCtx retrieves the current trace span from a dispatch context.
// Returns a no-op span if the event is not being traced.
//
// Example:
//
//	func onClick(c server.Ctx) error {
//	    middleware.SpanFromCtx(c).AddEvent("sidebar toggled")
//	    return nil
//	}
func SpanFromCtx(c server.Ctx) trace.Span {
	return trace.SpanFromContext(c.Context())
}
