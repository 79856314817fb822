package render

import (
	"io"
	"strings"

	"github.com/portico-dev/portico/pkg/dom"
)

// Config configures the HTML renderer.
type Config struct {
	// IncludeEIDs emits a data-eid attribute on every element, and an
	// "eid:" comment before every text node, so the thin client can bind
	// patch targets to real nodes after first paint.
	IncludeEIDs bool
}

// Renderer serializes dom trees to HTML. The zero value renders without
// wire ids; use NewRenderer to configure.
type Renderer struct {
	config Config
}

// NewRenderer creates a renderer with the given configuration.
func NewRenderer(config Config) *Renderer {
	return &Renderer{config: config}
}

// Snapshot renders the document's whole tree, root element included.
func (r *Renderer) Snapshot(doc *dom.Document) (string, error) {
	return r.RenderToString(doc.Root())
}

// RenderToString renders the subtree rooted at e.
func (r *Renderer) RenderToString(e *dom.Element) (string, error) {
	var sb strings.Builder
	if err := r.RenderToWriter(&sb, e); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderToWriter streams the subtree rooted at e to w. The first write
// error aborts rendering and is returned.
func (r *Renderer) RenderToWriter(w io.Writer, e *dom.Element) error {
	hw := &htmlWriter{w: w}
	r.renderNode(hw, e)
	return hw.err
}

// InnerHTML renders only e's content: the shadow template when one is
// attached, then the light children. The element's own tag is omitted.
func (r *Renderer) InnerHTML(e *dom.Element) (string, error) {
	var sb strings.Builder
	hw := &htmlWriter{w: &sb}
	r.renderContent(hw, e)
	if hw.err != nil {
		return "", hw.err
	}
	return sb.String(), nil
}

// htmlWriter wraps an io.Writer with a sticky error so render code writes
// unconditionally and checks once at the end.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) writeString(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

func (r *Renderer) renderNode(hw *htmlWriter, e *dom.Element) {
	if e == nil || hw.err != nil {
		return
	}
	switch e.Kind() {
	case dom.KindText:
		if r.config.IncludeEIDs {
			hw.writeString("<!--eid:" + e.EID() + "-->")
		}
		hw.writeString(escapeText(e.Text()))
	case dom.KindShadow:
		r.renderShadow(hw, e)
	default:
		r.renderElement(hw, e)
	}
}

func (r *Renderer) renderElement(hw *htmlWriter, e *dom.Element) {
	tag := e.Tag()
	hw.writeString("<")
	hw.writeString(tag)
	r.renderAttrs(hw, e)
	if r.config.IncludeEIDs {
		hw.writeString(` data-eid="`)
		hw.writeString(escapeAttr(e.EID()))
		hw.writeString(`"`)
	}
	hw.writeString(">")

	if isVoidElement(tag) {
		return
	}

	r.renderContent(hw, e)
	hw.writeString("</")
	hw.writeString(tag)
	hw.writeString(">")
}

// renderContent writes an element's inner HTML: the declarative shadow
// template first, then the light children.
func (r *Renderer) renderContent(hw *htmlWriter, e *dom.Element) {
	if sr := e.ShadowRoot(); sr != nil {
		r.renderShadow(hw, sr)
	}
	for _, c := range e.Children() {
		r.renderNode(hw, c)
	}
}

func (r *Renderer) renderShadow(hw *htmlWriter, sr *dom.Element) {
	hw.writeString(`<template shadowrootmode="open"`)
	if r.config.IncludeEIDs {
		hw.writeString(` data-eid="`)
		hw.writeString(escapeAttr(sr.EID()))
		hw.writeString(`"`)
	}
	hw.writeString(">")
	for _, c := range sr.Children() {
		r.renderNode(hw, c)
	}
	hw.writeString("</template>")
}

func (r *Renderer) renderAttrs(hw *htmlWriter, e *dom.Element) {
	for _, name := range e.AttrNames() {
		hw.writeString(" ")
		hw.writeString(name)
		if isBooleanAttr(name) {
			continue
		}
		hw.writeString(`="`)
		hw.writeString(escapeAttr(e.Attr(name)))
		hw.writeString(`"`)
	}
}
