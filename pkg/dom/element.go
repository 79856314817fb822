package dom

import "sort"

// NodeKind distinguishes the node flavors a Document can hold.
type NodeKind uint8

const (
	KindElement NodeKind = iota
	KindText
	KindShadow
)

// Element is a node in a Document's tree. Elements are created through
// Document.CreateElement / CreateText and are bound to that document for
// life. The zero value is not usable.
//
// Structural mutators (AppendChild, InsertChildAt, RemoveChild, Remove)
// panic on misuse: nil children, cross-document inserts, cycles, text-node
// parents, re-parenting shadow roots or the document root, and reuse of a
// node after destructive removal. These are logic defects in the caller, not
// runtime conditions to recover from.
type Element struct {
	doc      *Document
	kind     NodeKind
	tag      string
	eid      string
	text     string
	parent   *Element
	shadow   *Element
	children []*Element
	attrs    map[string]string
	removed  bool
}

// EID returns the node's stable wire ID.
func (e *Element) EID() string { return e.eid }

// Kind returns the node flavor.
func (e *Element) Kind() NodeKind { return e.kind }

// Tag returns the element's tag name ("" for text nodes, "#shadow-root" for
// shadow roots).
func (e *Element) Tag() string { return e.tag }

// Parent returns the node's parent, or nil when detached. A shadow root's
// parent is its host element.
func (e *Element) Parent() *Element { return e.parent }

// Document returns the owning document.
func (e *Element) Document() *Document { return e.doc }

// Children returns a copy of the node's child list.
func (e *Element) Children() []*Element {
	if len(e.children) == 0 {
		return nil
	}
	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

// ChildCount reports the number of children.
func (e *Element) ChildCount() int { return len(e.children) }

// Child returns the i-th child. It panics when i is out of range.
func (e *Element) Child(i int) *Element {
	if i < 0 || i >= len(e.children) {
		panic("dom: child index out of range")
	}
	return e.children[i]
}

// Contains reports whether other is e or lives in e's subtree. The test
// crosses shadow boundaries: content under an element's shadow root counts
// as contained by the element.
func (e *Element) Contains(other *Element) bool {
	for n := other; n != nil; n = n.parent {
		if n == e {
			return true
		}
	}
	return false
}

// IsConnected reports whether the node is reachable from its document root.
func (e *Element) IsConnected() bool {
	n := e
	for n.parent != nil {
		n = n.parent
	}
	return n == e.doc.root
}

// AppendChild adds child as e's last child. A child that is already in the
// tree is moved, keeping its identity and subtree intact.
func (e *Element) AppendChild(child *Element) {
	e.insertChild(child, -1)
}

// InsertChildAt inserts child at index. The index is interpreted against the
// child list after the child has been detached from any previous parent, and
// must be in [0, ChildCount]. A child that is already in the tree is moved.
func (e *Element) InsertChildAt(index int, child *Element) {
	if index < 0 {
		panic("dom: child index out of range")
	}
	e.insertChild(child, index)
}

// insertChild performs the shared append/insert work. index -1 means append.
func (e *Element) insertChild(child *Element, index int) {
	e.validateInsert(child)
	moved := child.parent != nil
	child.detach()
	if index < 0 {
		index = len(e.children)
	}
	if index > len(e.children) {
		panic("dom: child index out of range")
	}
	e.children = append(e.children, nil)
	copy(e.children[index+1:], e.children[index:])
	e.children[index] = child
	child.parent = e
	op := OpInsertNode
	if moved {
		op = OpMoveNode
	}
	e.doc.record(Patch{Op: op, EID: child.eid, Parent: e.eid, Index: index})
}

func (e *Element) validateInsert(child *Element) {
	if child == nil {
		panic("dom: nil child")
	}
	if e.kind == KindText {
		panic("dom: text node cannot have children")
	}
	if child.doc != e.doc {
		panic("dom: node belongs to a different document")
	}
	if child.kind == KindShadow {
		panic("dom: cannot re-parent a shadow root")
	}
	if child == child.doc.root {
		panic("dom: cannot re-parent root")
	}
	if child.removed || e.removed {
		panic("dom: node was removed")
	}
	if child.Contains(e) {
		panic("dom: insertion would create a cycle")
	}
}

// RemoveChild destructively removes child and its subtree. It panics when
// child is not a child of e. Removed nodes cannot be inserted again.
func (e *Element) RemoveChild(child *Element) {
	if child == nil || child.parent != e {
		panic("dom: not a child of this element")
	}
	child.Remove()
}

// Remove destructively detaches the node and its subtree from the tree.
// Removing the document root panics. Removed nodes cannot be inserted again;
// relocation uses AppendChild / InsertChildAt directly, which move without
// removing.
func (e *Element) Remove() {
	if e == e.doc.root {
		panic("dom: cannot remove root")
	}
	if e.kind == KindShadow {
		panic("dom: cannot remove a shadow root")
	}
	if e.removed {
		return
	}
	e.detach()
	e.markRemoved()
	e.doc.record(Patch{Op: OpRemoveNode, EID: e.eid})
}

// detach unlinks the node from its parent without recording a patch.
func (e *Element) detach() {
	p := e.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == e {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	e.parent = nil
}

func (e *Element) markRemoved() {
	e.removed = true
	e.doc.unregisterID(e.attr("id"), e)
	if e.shadow != nil {
		e.shadow.markRemoved()
	}
	for _, c := range e.children {
		c.markRemoved()
	}
}

// Attr returns the value of the named attribute, or "" when unset.
func (e *Element) Attr(key string) string { return e.attr(key) }

func (e *Element) attr(key string) string {
	if e.attrs == nil {
		return ""
	}
	return e.attrs[key]
}

// Attrs returns a copy of the attribute map, or nil when empty.
func (e *Element) Attrs() map[string]string {
	if len(e.attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(e.attrs))
	for k, v := range e.attrs {
		out[k] = v
	}
	return out
}

// AttrNames returns the set attribute names in sorted order.
func (e *Element) AttrNames() []string {
	if len(e.attrs) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.attrs))
	for k := range e.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetAttr sets an attribute. Setting "id" updates the document's id
// registry. Text nodes have no attributes and panic.
func (e *Element) SetAttr(key, value string) {
	if e.kind == KindText {
		panic("dom: text node has no attributes")
	}
	if key == "" {
		panic("dom: empty attribute name")
	}
	if key == "id" {
		e.doc.unregisterID(e.attr("id"), e)
		e.doc.registerID(value, e)
	}
	if e.attrs == nil {
		e.attrs = make(map[string]string)
	}
	e.attrs[key] = value
	e.doc.record(Patch{Op: OpSetAttr, EID: e.eid, Key: key, Value: value})
}

// RemoveAttr removes an attribute. Removing an attribute that is not set is
// a no-op.
func (e *Element) RemoveAttr(key string) {
	if e.kind == KindText {
		panic("dom: text node has no attributes")
	}
	if e.attrs == nil {
		return
	}
	if _, ok := e.attrs[key]; !ok {
		return
	}
	if key == "id" {
		e.doc.unregisterID(e.attrs["id"], e)
	}
	delete(e.attrs, key)
	e.doc.record(Patch{Op: OpRemoveAttr, EID: e.eid, Key: key})
}

// ID returns the element's id attribute.
func (e *Element) ID() string { return e.attr("id") }

// SetID sets the element's id attribute.
func (e *Element) SetID(id string) { e.SetAttr("id", id) }

// Style returns the element's inline style.
func (e *Element) Style() string { return e.attr("style") }

// SetStyle replaces the element's inline style. An empty css clears it.
func (e *Element) SetStyle(css string) {
	if e.kind == KindText {
		panic("dom: text node has no attributes")
	}
	if e.attrs == nil {
		e.attrs = make(map[string]string)
	}
	if css == "" {
		delete(e.attrs, "style")
	} else {
		e.attrs["style"] = css
	}
	e.doc.record(Patch{Op: OpSetStyle, EID: e.eid, Value: css})
}

// Text returns a text node's content ("" for other kinds).
func (e *Element) Text() string { return e.text }

// SetText replaces a text node's content. It panics on non-text nodes.
func (e *Element) SetText(text string) {
	if e.kind != KindText {
		panic("dom: not a text node")
	}
	if e.text == text {
		return
	}
	e.text = text
	e.doc.record(Patch{Op: OpSetText, EID: e.eid, Value: text})
}

// AttachShadow attaches an open shadow root to the element and returns it.
// Attaching twice, or attaching to a text node, panics. The shadow root is
// a node of its own: children appended to it live in the shadow tree, not
// in the element's child list.
func (e *Element) AttachShadow() *Element {
	if e.kind != KindElement {
		panic("dom: shadow root requires an element")
	}
	if e.shadow != nil {
		panic("dom: shadow root already attached")
	}
	s := &Element{
		doc:    e.doc,
		kind:   KindShadow,
		tag:    "#shadow-root",
		eid:    e.doc.nextEID(),
		parent: e,
	}
	e.shadow = s
	e.doc.record(Patch{Op: OpAttachShadow, EID: e.eid, Child: s.eid})
	return s
}

// ShadowRoot returns the element's shadow root, or nil when none is
// attached.
func (e *Element) ShadowRoot() *Element { return e.shadow }

// RenderRoot returns the node new content should be rendered into: the
// shadow root when one is attached, otherwise the element itself.
func (e *Element) RenderRoot() *Element {
	if e.shadow != nil {
		return e.shadow
	}
	return e
}
