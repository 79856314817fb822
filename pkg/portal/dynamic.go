package portal

import (
	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/reactive"
)

// DynamicPortal renders content into whatever host its watcher currently
// reports. Every host change tears the previous mount down and renders
// afresh into the newly resolved container, so at most one mount exists per
// portal at any time. Content state does not survive a relocation; use
// PersistentPortal when it must.
type DynamicPortal struct {
	doc      *dom.Document
	watcher  *Watcher
	children RenderFunc
	cfg      dynamicConfig

	owner  *reactive.Owner
	handle *MountHandle
}

type dynamicConfig struct {
	shadow bool
	svg    bool
	hide   bool
	wrap   bool
}

// DynamicOption configures MountDynamic.
type DynamicOption func(*dynamicConfig)

// WithShadow renders content into the container's shadow root, attaching
// one when the container has none.
func WithShadow() DynamicOption {
	return func(c *dynamicConfig) { c.shadow = true }
}

// ForSVG makes portal-created containers svg group elements instead of divs.
func ForSVG() DynamicOption {
	return func(c *dynamicConfig) { c.svg = true }
}

// HideWhenUnhosted controls whether the fallback container is visually
// suppressed while no host is available. Defaults to true; passing false
// leaves the fallback visible and clears any hiding style on reuse.
func HideWhenUnhosted(hide bool) DynamicOption {
	return func(c *dynamicConfig) { c.hide = hide }
}

// WrapHost renders beside the host instead of inside it: each relocation
// creates a wrapper container, moves the host into it, and renders content
// as the host's sibling within the wrapper. On teardown the host is moved
// back under the document root and the wrapper removed; the host element
// always survives, but it is not returned to its previous parent.
func WrapHost() DynamicOption {
	return func(c *dynamicConfig) { c.wrap = true }
}

// MountDynamic starts a dynamic portal rendering children, relocating on
// every change of host. Nil arguments panic. The portal runs until Close.
func MountDynamic(doc *dom.Document, host *Host, children RenderFunc, opts ...DynamicOption) *DynamicPortal {
	if doc == nil {
		panic("portal: nil document")
	}
	if children == nil {
		panic("portal: nil render function")
	}

	cfg := dynamicConfig{hide: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &DynamicPortal{
		doc:      doc,
		watcher:  NewWatcher(host),
		children: children,
		cfg:      cfg,
		owner:    reactive.NewOwner(nil),
	}

	reactive.WithOwner(p.owner, func() {
		reactive.NewEffect(p.relocate)
	})
	return p
}

// Handle returns the handle of the currently mounted content, or nil after
// Close.
func (p *DynamicPortal) Handle() *MountHandle {
	return p.handle
}

// Close tears the portal down: the current mount is disposed and any
// portal-created container removed. A provided host element survives.
// Close is idempotent.
func (p *DynamicPortal) Close() {
	p.owner.Dispose()
}

// relocate is the portal's effect body. It reads the host (tracked),
// resolves the container, renders children into it, and returns the cleanup
// undoing exactly this mount. The effect runner invokes the previous
// cleanup before each re-run, so the old mount is fully gone before the new
// container is touched.
func (p *DynamicPortal) relocate() reactive.Cleanup {
	host := p.watcher.Current()

	var container *dom.Element
	provided := false
	switch {
	case host != nil && p.cfg.wrap:
		container = CreateContainer(p.doc, containerTag(p.cfg.svg), WrapperID, "", p.cfg.shadow)
		container.AppendChild(host)
	case host != nil:
		container = host
		provided = true
	default:
		container = FindFallback(p.doc, FallbackID)
		if container == nil {
			style := ""
			if p.cfg.hide {
				style = HideStyle
			}
			container = CreateContainer(p.doc, containerTag(p.cfg.svg), FallbackID, style, p.cfg.shadow)
		} else if p.cfg.hide {
			container.SetStyle(HideStyle)
		} else {
			container.SetStyle("")
		}
	}

	handle := mountInto(p.doc, renderTarget(container, p.cfg.shadow), p.children)
	p.handle = handle

	return func() {
		p.handle = nil
		handle.Dispose()
		if provided {
			return
		}
		if p.cfg.wrap && host != nil && container.Contains(host) {
			// Hand the host back before dropping the wrapper; removing
			// the wrapper takes its whole subtree with it.
			p.doc.Root().AppendChild(host)
		}
		container.Remove()
	}
}
