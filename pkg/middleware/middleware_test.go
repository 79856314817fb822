package middleware

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/protocol"
	"github.com/portico-dev/portico/pkg/server"
)

// fakeCtx implements server.Ctx for testing middleware in isolation.
type fakeCtx struct {
	ctx     context.Context
	session *server.Session
	event   *protocol.Event
	doc     *dom.Document
	pending []dom.Patch
}

func newFakeCtx() *fakeCtx {
	return &fakeCtx{
		ctx: context.Background(),
		doc: dom.NewDocument(),
	}
}

func (f *fakeCtx) Context() context.Context { return f.ctx }

func (f *fakeCtx) SetContext(ctx context.Context) {
	if ctx != nil {
		f.ctx = ctx
	}
}

func (f *fakeCtx) Session() *server.Session    { return f.session }
func (f *fakeCtx) Event() *protocol.Event      { return f.event }
func (f *fakeCtx) Document() *dom.Document     { return f.doc }
func (f *fakeCtx) Logger() *slog.Logger        { return slog.Default() }
func (f *fakeCtx) PendingPatches() []dom.Patch { return f.pending }

func TestOTelConfig(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		config := defaultOTelConfig()
		if config.TracerName != defaultTracerName {
			t.Errorf("TracerName = %q, want %q", config.TracerName, defaultTracerName)
		}
		if config.Filter != nil {
			t.Error("Filter should be nil by default")
		}
	})

	t.Run("with options", func(t *testing.T) {
		config := defaultOTelConfig()
		WithTracerName("my-app")(&config)
		WithEventFilter(func(c server.Ctx) bool { return false })(&config)

		if config.TracerName != "my-app" {
			t.Errorf("TracerName = %q, want %q", config.TracerName, "my-app")
		}
		if config.Filter == nil {
			t.Error("Filter should be set")
		}
	})
}

func TestMetricsConfig(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		config := defaultMetricsConfig()
		if config.Namespace != "portico" {
			t.Errorf("Namespace = %q, want %q", config.Namespace, "portico")
		}
		if config.Subsystem != "" {
			t.Errorf("Subsystem = %q, want empty", config.Subsystem)
		}
		if config.Registry != prometheus.DefaultRegisterer {
			t.Error("Registry should be DefaultRegisterer")
		}
	})

	t.Run("with options", func(t *testing.T) {
		config := defaultMetricsConfig()
		WithNamespace("myapp")(&config)
		WithSubsystem("api")(&config)
		WithBuckets([]float64{0.1, 0.5, 1.0})(&config)

		if config.Namespace != "myapp" {
			t.Errorf("Namespace = %q, want %q", config.Namespace, "myapp")
		}
		if config.Subsystem != "api" {
			t.Errorf("Subsystem = %q, want %q", config.Subsystem, "api")
		}
		if len(config.Buckets) != 3 {
			t.Errorf("len(Buckets) = %d, want 3", len(config.Buckets))
		}
	})
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("write timeout"), "timeout"},
		{server.ErrEventQueueFull, "queue_full"},
		{server.ErrHandlerNotFound, "not_found"},
		{errors.New("handler panic in session s1"), "panic"},
		{server.ErrSessionClosed, "closed"},
		{errors.New("some other error"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := categorizeError(tt.err)
			if got != tt.want {
				t.Errorf("categorizeError(%q) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
