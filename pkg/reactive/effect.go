package reactive

import (
	"sync"
	"sync/atomic"
)

// Effect is a reactive side effect. It runs once on creation, tracks every
// signal read during the run, and re-runs whenever one of them changes.
// Re-runs are synchronous: MarkDirty executes the effect inline unless the
// effect is already running, in which case one follow-up run is queued so
// runs never overlap.
type Effect struct {
	id uint64

	fn      func() Cleanup
	cleanup Cleanup

	sources   []*source
	sourcesMu sync.Mutex

	owner *Owner

	// running and rerun serialize re-entrant MarkDirty calls: a write to a
	// dependency from inside the effect body queues exactly one extra run.
	running  atomic.Bool
	rerun    atomic.Bool
	disposed atomic.Bool
}

// NewEffect creates an effect owned by the current owner and runs it
// immediately. The returned Cleanup from fn runs before each re-run and on
// disposal.
func NewEffect(fn func() Cleanup) *Effect {
	e := &Effect{
		id:    nextID(),
		fn:    fn,
		owner: currentOwner(),
	}

	if e.owner != nil {
		e.owner.registerEffect(e)
	}

	e.run()
	return e
}

// MarkDirty re-runs the effect. Implements Listener.
func (e *Effect) MarkDirty() {
	if e.disposed.Load() {
		return
	}

	// A dependency write from inside the effect body must not recurse;
	// flag a single follow-up run instead.
	if e.running.Load() {
		e.rerun.Store(true)
		return
	}

	e.run()
}

// ID implements Listener.
func (e *Effect) ID() uint64 {
	return e.id
}

// run executes the effect body: previous cleanup first, then dependency
// re-collection, then fn. Loops while a re-run was requested mid-body.
func (e *Effect) run() {
	if !e.running.CompareAndSwap(false, true) {
		e.rerun.Store(true)
		return
	}
	defer e.running.Store(false)

	for {
		if e.disposed.Load() {
			return
		}

		if e.cleanup != nil {
			e.cleanup()
			e.cleanup = nil
		}

		e.sourcesMu.Lock()
		for _, src := range e.sources {
			src.unsubscribe(e)
		}
		e.sources = e.sources[:0]
		e.sourcesMu.Unlock()

		old := setListener(e)
		e.cleanup = e.fn()
		setListener(old)

		if !e.rerun.CompareAndSwap(true, false) {
			return
		}
	}
}

// addSource records a dependency. Called by signals read during the run.
func (e *Effect) addSource(src *source) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for _, s := range e.sources {
		if s == src {
			return
		}
	}
	e.sources = append(e.sources, src)
}

// dispose runs the final cleanup and unsubscribes from all sources.
func (e *Effect) dispose() {
	if e.disposed.Swap(true) {
		return
	}

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	e.sourcesMu.Lock()
	for _, src := range e.sources {
		src.unsubscribe(e)
	}
	e.sources = nil
	e.sourcesMu.Unlock()
}

// OnDispose registers fn on the current owner, to run once when the owner is
// discarded. Used by components for unmount teardown.
func OnDispose(fn func()) {
	if owner := currentOwner(); owner != nil {
		owner.OnCleanup(fn)
	}
}
