package dom

import "strconv"

// RootEID is the wire ID of every document's root element.
const RootEID = "e0"

// Document owns an element tree and allocates stable wire IDs for its nodes.
type Document struct {
	root    *Element
	sink    PatchSink
	byID    map[string]*Element
	counter uint64
}

// NewDocument returns a document whose root element ("body") is already
// connected. The root cannot be removed or re-parented.
func NewDocument() *Document {
	d := &Document{byID: make(map[string]*Element)}
	d.root = &Element{
		doc:  d,
		kind: KindElement,
		tag:  "body",
		eid:  RootEID,
	}
	return d
}

// SetSink installs the PatchSink that receives all subsequent mutations.
// A nil sink silently discards them.
func (d *Document) SetSink(s PatchSink) {
	d.sink = s
}

// Root returns the document's root element.
func (d *Document) Root() *Element {
	return d.root
}

// CreateElement allocates a detached element with the given tag.
func (d *Document) CreateElement(tag string) *Element {
	if tag == "" {
		panic("dom: empty tag")
	}
	e := &Element{
		doc:  d,
		kind: KindElement,
		tag:  tag,
		eid:  d.nextEID(),
	}
	d.record(Patch{Op: OpCreateElement, EID: e.eid, Tag: tag})
	return e
}

// CreateText allocates a detached text node.
func (d *Document) CreateText(text string) *Element {
	e := &Element{
		doc:  d,
		kind: KindText,
		eid:  d.nextEID(),
		text: text,
	}
	d.record(Patch{Op: OpCreateText, EID: e.eid, Value: text})
	return e
}

// GetElementByID returns the connected element whose id attribute is id, or
// nil when no such element exists. Detached elements are invisible to the
// lookup even if they still carry the id.
func (d *Document) GetElementByID(id string) *Element {
	if id == "" {
		return nil
	}
	if e := d.byID[id]; e != nil && e.IsConnected() && e.attr("id") == id {
		return e
	}
	// The cached entry is stale (detached, re-assigned, or shadowed by a
	// newer element). Re-walk the connected tree.
	if e := findByID(d.root, id); e != nil {
		d.byID[id] = e
		return e
	}
	delete(d.byID, id)
	return nil
}

func findByID(e *Element, id string) *Element {
	if e.attr("id") == id {
		return e
	}
	if e.shadow != nil {
		if hit := findByID(e.shadow, id); hit != nil {
			return hit
		}
	}
	for _, c := range e.children {
		if hit := findByID(c, id); hit != nil {
			return hit
		}
	}
	return nil
}

func (d *Document) nextEID() string {
	d.counter++
	return "e" + strconv.FormatUint(d.counter, 10)
}

func (d *Document) record(p Patch) {
	if d.sink != nil {
		d.sink.Record(p)
	}
}

func (d *Document) registerID(id string, e *Element) {
	if id != "" {
		d.byID[id] = e
	}
}

func (d *Document) unregisterID(id string, e *Element) {
	if id != "" && d.byID[id] == e {
		delete(d.byID, id)
	}
}
