package reactive

import (
	"runtime"
	"sync"
)

// trackingContext holds the reactive state for one goroutine: which owner
// adopts newly created effects, which listener is collecting dependencies,
// and the batch state for coalesced notification.
type trackingContext struct {
	currentOwner    *Owner
	currentListener Listener

	// batchDepth counts nested Batch calls. While > 0, writes queue their
	// notifications instead of delivering them synchronously.
	batchDepth int
	pending    []Listener
}

// trackingContexts maps goroutine ID to its tracking context.
var trackingContexts sync.Map

// goroutineID extracts the current goroutine's ID from the runtime stack
// header ("goroutine <id> ..."). Implementation detail; not exposed.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

func getContext() *trackingContext {
	gid := goroutineID()
	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}
	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

func currentListener() Listener {
	return getContext().currentListener
}

// setListener installs the listener that tracked reads subscribe, returning
// the previous one so callers can restore it.
func setListener(l Listener) Listener {
	ctx := getContext()
	old := ctx.currentListener
	ctx.currentListener = l
	return old
}

func currentOwner() *Owner {
	return getContext().currentOwner
}

func setOwner(o *Owner) *Owner {
	ctx := getContext()
	old := ctx.currentOwner
	ctx.currentOwner = o
	return old
}

func batchDepth() int {
	return getContext().batchDepth
}

func enterBatch() {
	getContext().batchDepth++
}

// exitBatch reports whether the outermost batch just completed.
func exitBatch() bool {
	ctx := getContext()
	ctx.batchDepth--
	return ctx.batchDepth == 0
}

func queueNotify(l Listener) {
	ctx := getContext()
	ctx.pending = append(ctx.pending, l)
}

func drainNotify() []Listener {
	ctx := getContext()
	pending := ctx.pending
	ctx.pending = nil
	return pending
}

// WithOwner runs fn with the given owner adopting any effects created inside.
// Use it when handing work to another goroutine that must create effects
// belonging to an existing scope.
func WithOwner(owner *Owner, fn func()) {
	old := setOwner(owner)
	defer setOwner(old)
	fn()
}

// WithListener runs fn with the given listener collecting dependencies.
// Primarily a test seam; effects install themselves during run.
func WithListener(l Listener, fn func()) {
	old := setListener(l)
	defer setListener(old)
	fn()
}
