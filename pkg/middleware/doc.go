// Package middleware provides observability middleware for the event
// dispatch chain.
//
// This package includes:
//   - OpenTelemetry distributed tracing middleware
//   - Prometheus metrics middleware
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware traces every dispatched event. Spans carry
// the session ID, event type, target element, and the patch and relocation
// counts the event produced.
//
//	srv.Use(middleware.OpenTelemetry())
//
// Configure with options:
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithEventFilter(func(c server.Ctx) bool {
//	        return c.Event() != nil
//	    }),
//	)
//
// # Prometheus Metrics
//
// The Prometheus middleware counts events, errors, patches, and subtree
// relocations:
//   - portico_events_total: Total events processed by type and status
//   - portico_event_duration_seconds: Event processing duration histogram
//   - portico_patches_sent_total: Total patches produced by events
//   - portico_relocations_total: Total subtree move patches
//   - portico_active_sessions: Current number of attached sessions
//
//	srv.Use(middleware.Prometheus())
//
// Then expose metrics on a separate port:
//
//	http.Handle("/metrics", promhttp.Handler())
//	go http.ListenAndServe(":9090", nil)
//
// # Context Propagation
//
// The tracing middleware installs the span context on the dispatch Ctx, so
// database drivers and HTTP clients called from handlers inherit the trace:
//
//	func onClick(c server.Ctx) error {
//	    row := db.QueryRowContext(c.Context(), "SELECT ...")
//	    return nil
//	}
package middleware
