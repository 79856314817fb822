package portal

import (
	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/reactive"
)

// RenderFunc produces the content a portal manages. It receives the portal's
// document and returns the root element of the rendered subtree. Portals
// call it under a fresh owner with dependency tracking suspended, so signal
// reads while rendering subscribe the content's own effects, never the
// relocation effect. It must be repeatable: DynamicPortal calls it once per
// relocation, PersistentPortal at most once ever.
type RenderFunc func(*dom.Document) *dom.Element

// MountHandle owns one rendered subtree: its root element plus the reactive
// scope the content's effects live in.
type MountHandle struct {
	root     *dom.Element
	owner    *reactive.Owner
	disposed bool
}

// Root returns the mounted subtree's root element.
func (h *MountHandle) Root() *dom.Element {
	return h.root
}

// Dispose releases the handle's reactive scope, then removes the subtree
// from the document. Calling it again is a no-op.
func (h *MountHandle) Dispose() {
	if h.disposed {
		return
	}
	h.disposed = true
	h.owner.Dispose()
	h.root.Remove()
}

// Mount renders children once into target, or into the document root when
// target is nil, and returns the handle owning the subtree. With useShadow
// the content goes into target's shadow root, attaching one if needed. The
// caller disposes the handle when the content should go away.
func Mount(doc *dom.Document, target *dom.Element, useShadow bool, children RenderFunc) *MountHandle {
	if doc == nil {
		panic("portal: nil document")
	}
	if children == nil {
		panic("portal: nil render function")
	}
	if target == nil {
		target = doc.Root()
	}
	return mountInto(doc, renderTarget(target, useShadow), children)
}

// mountInto renders children and appends the result to target. Rendering is
// untracked under a fresh root owner: effects the content creates belong to
// the new owner, and its signal reads do not subscribe the caller.
func mountInto(doc *dom.Document, target *dom.Element, children RenderFunc) *MountHandle {
	owner := reactive.NewOwner(nil)

	var root *dom.Element
	reactive.Untracked(func() {
		reactive.WithOwner(owner, func() {
			root = children(doc)
		})
	})
	if root == nil {
		owner.Dispose()
		panic("portal: render returned no content")
	}

	target.AppendChild(root)
	return &MountHandle{root: root, owner: owner}
}

// renderTarget resolves where content is inserted: the container itself, or
// its shadow root when shadow rendering is requested. A reused container
// without a shadow root gets one attached on demand.
func renderTarget(container *dom.Element, useShadow bool) *dom.Element {
	if !useShadow {
		return container
	}
	if sr := container.ShadowRoot(); sr != nil {
		return sr
	}
	return container.AttachShadow()
}
