// Package reactive provides the signal primitives that drive Portico's
// relocation logic.
//
// A Signal[T] is a readable cell. Reading it inside a tracked context (an
// effect body) subscribes the current listener; writing it notifies
// subscribers when the value actually changed:
//
//	host := reactive.NewSignal[*dom.Element](nil)
//	value := host.Get()   // tracked read
//	value = host.Peek()   // untracked read
//	host.Set(el)          // notify on change
//
// An Effect re-runs whenever a signal it read during its last run changes.
// Unlike render-loop frameworks that defer effects to a scheduler tick,
// effects here re-run synchronously inside the Set call, one at a time, and
// run to completion before control returns to the writer. Portals rely on
// this ordering: the previous mount is torn down before the new container is
// populated, within the same write.
//
//	reactive.NewEffect(func() reactive.Cleanup {
//	    el := host.Get()
//	    relocate(el)
//	    return func() { tearDown() }
//	})
//
// Owners scope the lifetime of effects and cleanup callbacks. Disposing an
// owner disposes its child owners, then its effects, then runs OnCleanup
// callbacks in reverse registration order.
//
// Batch coalesces several writes into one notification sweep:
//
//	reactive.Batch(func() {
//	    a.Set(1)
//	    b.Set(2)
//	})
package reactive
