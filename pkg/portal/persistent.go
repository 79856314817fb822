package portal

import (
	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/reactive"
)

// PersistentState names where a persistent portal's subtree currently lives.
type PersistentState int

const (
	// StateUncreated means nothing has been rendered yet.
	StateUncreated PersistentState = iota
	// StateCreated means the subtree was rendered into the home container
	// and has never been attached to a host.
	StateCreated
	// StateAttached means the subtree currently lives inside a host.
	StateAttached
	// StateDetached means the subtree was attached before and is parked in
	// the home container again.
	StateDetached
)

func (s PersistentState) String() string {
	switch s {
	case StateUncreated:
		return "uncreated"
	case StateCreated:
		return "created"
	case StateAttached:
		return "attached"
	case StateDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// PersistentPortal renders content exactly once and then only re-parents
// it: into the current host when one is available, back into the hidden
// home container when none is. Moves preserve node identity, so state held
// by the subtree survives every relocation.
//
// The one-time render handle deliberately outlives normal disposal: Close
// stops host watching but leaves the subtree mounted and its effects
// running, so content stays functional even while no component is watching
// the host. Dispose is the explicit final teardown.
type PersistentPortal struct {
	doc      *dom.Document
	watcher  *Watcher
	children RenderFunc
	svg      bool

	owner  *reactive.Owner
	handle *MountHandle
	root   *dom.Element
	state  PersistentState
}

// PersistentOption configures MountPersistent.
type PersistentOption func(*PersistentPortal)

// PersistentForSVG makes the home container an svg group element.
func PersistentForSVG() PersistentOption {
	return func(p *PersistentPortal) { p.svg = true }
}

// MountPersistent starts a persistent portal for children. The subtree is
// rendered once, on the first relocation step that finds no host while the
// home container is empty; afterwards every host change is a pure
// re-parenting move. Nil arguments panic.
func MountPersistent(doc *dom.Document, host *Host, children RenderFunc, opts ...PersistentOption) *PersistentPortal {
	if doc == nil {
		panic("portal: nil document")
	}
	if children == nil {
		panic("portal: nil render function")
	}

	p := &PersistentPortal{
		doc:      doc,
		watcher:  NewWatcher(host),
		children: children,
		owner:    reactive.NewOwner(nil),
		state:    StateUncreated,
	}
	for _, opt := range opts {
		opt(p)
	}

	reactive.WithOwner(p.owner, func() {
		reactive.NewEffect(p.relocate)
	})
	return p
}

// State reports where the subtree currently lives.
func (p *PersistentPortal) State() PersistentState {
	return p.state
}

// Root returns the persisted subtree's root element, or nil before the
// one-time render has happened.
func (p *PersistentPortal) Root() *dom.Element {
	return p.root
}

// Close stops watching the host. The persisted subtree stays exactly where
// it is and its effects keep running; a portal going out of scope must not
// blank out content that may still be on screen. Use Dispose for final
// teardown. Close is idempotent.
func (p *PersistentPortal) Close() {
	p.owner.Dispose()
}

// Dispose is the final teardown: Close, plus disposal of the one-time
// render handle, which removes the subtree and releases its reactive
// scope. The shared home container stays in place for other portals.
// Dispose is idempotent.
func (p *PersistentPortal) Dispose() {
	p.Close()
	if p.handle != nil {
		p.handle.Dispose()
		p.handle = nil
	}
	p.root = nil
	p.state = StateUncreated
}

// relocate is the portal's effect body: render once if due, otherwise move
// the persisted root to where it belongs. A step whose placement is already
// correct mutates nothing.
func (p *PersistentPortal) relocate() reactive.Cleanup {
	host := p.watcher.Current()

	if host != nil {
		if p.root == nil {
			// Nothing rendered yet. Creation only happens on a hostless
			// step; benign, the next one renders.
			return nil
		}
		if !host.Contains(p.root) {
			host.AppendChild(p.root)
		}
		p.state = StateAttached
		return nil
	}

	home := p.ensureHome()
	if p.root == nil {
		if home.ChildCount() == 0 {
			p.handle = mountInto(p.doc, home, p.children)
			p.root = p.handle.Root()
			p.state = StateCreated
		}
		return nil
	}
	if !home.Contains(p.root) {
		home.AppendChild(p.root)
		p.state = StateDetached
	}
	return nil
}

// ensureHome finds the shared home container or creates it, hidden, under
// the document root.
func (p *PersistentPortal) ensureHome() *dom.Element {
	if home := FindFallback(p.doc, HomeID); home != nil {
		return home
	}
	return CreateContainer(p.doc, containerTag(p.svg), HomeID, HideStyle, false)
}
