package middleware

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/protocol"
)

func resetGlobalMetricsForTest() {
	globalMetricsMu.Lock()
	globalMetrics = nil
	globalMetricsMu.Unlock()
}

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestPrometheus_RecordsSuccessAndError(t *testing.T) {
	t.Run("success increments success counter and duration", func(t *testing.T) {
		resetGlobalMetricsForTest()
		reg := prometheus.NewRegistry()

		mw := Prometheus(WithRegistry(reg))
		c := newFakeCtx()
		c.event = protocol.NewClickEvent(1, "e1")

		err := mw(c, func() error { return nil })
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		m := globalMetrics
		if m == nil {
			t.Fatal("expected global metrics after initialization")
		}

		if got := metricCounterValue(t, m.eventsTotal.WithLabelValues("Click", "success")); got != 1 {
			t.Fatalf("events_total(success)=%v, want 1", got)
		}
		if got := metricCounterValue(t, m.eventsTotal.WithLabelValues("Click", "error")); got != 0 {
			t.Fatalf("events_total(error)=%v, want 0", got)
		}
		if got := metricHistogramCount(t, m.eventDuration.WithLabelValues("Click")); got == 0 {
			t.Fatal("expected event_duration_seconds histogram to have sample count > 0")
		}
	})

	t.Run("error increments error counter and categorizes", func(t *testing.T) {
		resetGlobalMetricsForTest()
		reg := prometheus.NewRegistry()

		mw := Prometheus(WithRegistry(reg))
		c := newFakeCtx()
		c.event = protocol.NewClickEvent(1, "e1")

		err := mw(c, func() error { return errors.New("write timeout") })
		if err == nil {
			t.Fatal("expected error to propagate")
		}

		m := globalMetrics
		if got := metricCounterValue(t, m.eventsTotal.WithLabelValues("Click", "error")); got != 1 {
			t.Fatalf("events_total(error)=%v, want 1", got)
		}
		if got := metricCounterValue(t, m.eventErrors.WithLabelValues("Click", "timeout")); got != 1 {
			t.Fatalf("event_errors_total(timeout)=%v, want 1", got)
		}
	})
}

func TestPrometheus_CountsPatchesAndRelocations(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	mw := Prometheus(WithRegistry(reg))
	c := newFakeCtx()
	c.event = protocol.NewClickEvent(1, "e1")
	c.pending = []dom.Patch{
		{Op: dom.OpMoveNode, EID: "e5", Parent: "e2", Index: 0},
		{Op: dom.OpSetAttr, EID: "e5", Key: "class", Value: "hosted"},
		{Op: dom.OpMoveNode, EID: "e6", Parent: "e3", Index: 1},
	}

	if err := mw(c, func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := globalMetrics
	if got := metricCounterValue(t, m.patchesSent); got != 3 {
		t.Fatalf("patches_sent_total=%v, want 3", got)
	}
	if got := metricCounterValue(t, m.relocationsTotal); got != 2 {
		t.Fatalf("relocations_total=%v, want 2", got)
	}
}

func TestPrometheus_UnknownEventType(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	mw := Prometheus(WithRegistry(reg))
	c := newFakeCtx() // no event attached

	if err := mw(c, func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := globalMetrics
	if got := metricCounterValue(t, m.eventsTotal.WithLabelValues("Unknown", "success")); got != 1 {
		t.Fatalf("events_total(Unknown,success)=%v, want 1", got)
	}
}

func TestRecordSessionHelpers_NilMetrics(t *testing.T) {
	resetGlobalMetricsForTest()

	// These should not panic when metrics are uninitialized
	RecordSessionStart()
	RecordSessionEnd()
	RecordSessionDetach()
	RecordSessionReattach()
}

func TestRecordSessionHelpers_WithInitializedMetrics(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	_ = Prometheus(WithRegistry(reg)) // initialize global metrics
	m := globalMetrics
	if m == nil {
		t.Fatal("expected global metrics after initialization")
	}

	RecordSessionStart()
	RecordSessionDetach()
	RecordSessionReattach()
	RecordSessionEnd()

	if got := metricGaugeValue(t, m.activeSessions); got != 0 {
		t.Fatalf("active_sessions=%v, want 0 (start+detach+reattach+end)", got)
	}
	if got := metricGaugeValue(t, m.detachedSessions); got != 0 {
		t.Fatalf("detached_sessions=%v, want 0 (detach+reattach)", got)
	}
	if got := metricCounterValue(t, m.reconnectsTotal); got != 1 {
		t.Fatalf("reconnects_total=%v, want 1", got)
	}
}
