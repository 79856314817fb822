package portal

import "github.com/portico-dev/portico/pkg/dom"

// Well-known container ids. Dynamic and persistent portals keep separate
// singletons: a dynamic teardown removes its fallback, and that must never
// take a persistent portal's parked subtree with it.
const (
	// FallbackID names the shared container a DynamicPortal renders into
	// while no host is available.
	FallbackID = "portal_fallback"

	// HomeID names the hidden container a PersistentPortal renders into
	// once and parks its subtree in whenever no host is available.
	HomeID = "portal_home"

	// WrapperID names the container a wrapping DynamicPortal creates
	// around its host.
	WrapperID = "portal_wrapper"
)

// HideStyle visually suppresses a container while keeping it in the tree.
const HideStyle = "visibility: hidden; height: 0; width: 0;"

// containerTag picks the container element for the content's namespace.
func containerTag(svg bool) string {
	if svg {
		return "g"
	}
	return "div"
}

// CreateContainer makes a new container element and appends it under the
// document root. id and style are applied when non-empty; useShadow attaches
// an open shadow root. A nil document or missing root panics: a portal
// cannot function without somewhere to put its container.
//
// CreateContainer never checks for an existing element with the same id.
// Callers wanting the singleton containers must look them up with
// FindFallback first, or they will duplicate the node.
func CreateContainer(doc *dom.Document, tag, id, style string, useShadow bool) *dom.Element {
	if doc == nil || doc.Root() == nil {
		panic("portal: document root unavailable")
	}
	c := doc.CreateElement(tag)
	if id != "" {
		c.SetID(id)
	}
	if style != "" {
		c.SetStyle(style)
	}
	if useShadow {
		c.AttachShadow()
	}
	doc.Root().AppendChild(c)
	return c
}

// FindFallback returns the connected container carrying id, or nil when none
// exists. Detached and removed containers are not found, so a portal that
// removed its fallback on teardown gets a fresh one next time.
func FindFallback(doc *dom.Document, id string) *dom.Element {
	if doc == nil {
		return nil
	}
	return doc.GetElementByID(id)
}
