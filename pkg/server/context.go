package server

import (
	"context"
	"log/slog"

	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/protocol"
)

// Ctx is the per-dispatch context handed to middleware and event handlers.
// A Ctx lives for exactly one event and is only valid on the session's
// event loop.
type Ctx interface {
	// Context returns the dispatch context. Middleware may derive from it
	// (tracing spans, deadlines) and install the derivative with SetContext.
	Context() context.Context

	// SetContext replaces the dispatch context for the rest of the chain.
	SetContext(ctx context.Context)

	// Session returns the session this event belongs to.
	Session() *Session

	// Event returns the event being dispatched.
	Event() *protocol.Event

	// Document returns the session's live document.
	Document() *dom.Document

	// Logger returns the session-scoped logger.
	Logger() *slog.Logger

	// PendingPatches returns the mutations recorded so far during this
	// dispatch, in order. After next() returns in a middleware, this is the
	// full set the flush will send for the event.
	PendingPatches() []dom.Patch
}

// EventHandler processes one event on the session's event loop.
type EventHandler func(c Ctx) error

// Middleware wraps event dispatch. Implementations must call next exactly
// once to continue the chain, or skip it to short-circuit.
type Middleware func(c Ctx, next func() error) error

// eventCtx is the Ctx implementation built per dispatched event.
type eventCtx struct {
	ctx     context.Context
	session *Session
	event   *protocol.Event
}

func newEventCtx(s *Session, ev *protocol.Event) *eventCtx {
	return &eventCtx{
		ctx:     context.Background(),
		session: s,
		event:   ev,
	}
}

func (c *eventCtx) Context() context.Context { return c.ctx }

func (c *eventCtx) SetContext(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
}

func (c *eventCtx) Session() *Session { return c.session }

func (c *eventCtx) Event() *protocol.Event { return c.event }

func (c *eventCtx) Document() *dom.Document { return c.session.Document() }

func (c *eventCtx) Logger() *slog.Logger { return c.session.Logger() }

func (c *eventCtx) PendingPatches() []dom.Patch {
	return c.session.recorder.Patches()
}

// runChain invokes the middleware chain around the final handler.
func runChain(c Ctx, chain []Middleware, final func(Ctx) error) error {
	if len(chain) == 0 {
		return final(c)
	}

	var run func(i int) error
	run = func(i int) error {
		if i == len(chain) {
			return final(c)
		}
		return chain[i](c, func() error { return run(i + 1) })
	}
	return run(0)
}
