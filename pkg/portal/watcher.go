package portal

import (
	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/reactive"
)

// Host is the reactive cell a portal watches. It holds the element the
// portal's content should live in, or nil while no host is available.
// Absence is a normal value, not an error.
type Host = reactive.Signal[*dom.Element]

// NewHost returns a host signal seeded with initial. Hosts compare by
// identity: publishing the element pointer already held does not renotify,
// so a relocation effect re-runs once per actual host change.
func NewHost(initial *dom.Element) *Host {
	return reactive.NewSignal(initial).WithEquals(func(a, b *dom.Element) bool {
		return a == b
	})
}

// Watcher adapts a host signal to the two read modes portals need: a
// tracked read inside relocation effects and an untracked read for paths
// that must not establish a dependency.
type Watcher struct {
	host *Host
}

// NewWatcher returns a watcher over host. A nil host panics.
func NewWatcher(host *Host) *Watcher {
	if host == nil {
		panic("portal: nil host signal")
	}
	return &Watcher{host: host}
}

// Current returns the present host element and subscribes the current
// listener, if any, so effects re-run when the host changes.
func (w *Watcher) Current() *dom.Element {
	return w.host.Get()
}

// CurrentUntracked returns the present host element without subscribing.
func (w *Watcher) CurrentUntracked() *dom.Element {
	return w.host.Peek()
}

// OnChange invokes fn with the current host immediately, then again after
// every host change. The subscription belongs to the current owner and ends
// when that owner is disposed.
func (w *Watcher) OnChange(fn func(*dom.Element)) *reactive.Effect {
	return reactive.NewEffect(func() reactive.Cleanup {
		fn(w.host.Get())
		return nil
	})
}
