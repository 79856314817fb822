package portal

import (
	"testing"

	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/reactive"
)

func TestPersistentCreatesOnceInHome(t *testing.T) {
	doc := dom.NewDocument()
	var renders int
	p := MountPersistent(doc, NewHost(nil), labelRenderer("content", &renders))
	defer p.Dispose()

	home := FindFallback(doc, HomeID)
	if home == nil {
		t.Fatal("no home container was created")
	}
	if home.Parent() != doc.Root() {
		t.Error("home is not under the document root")
	}
	if home.Style() != HideStyle {
		t.Errorf("home style = %q, want %q", home.Style(), HideStyle)
	}
	if renders != 1 {
		t.Errorf("render ran %d times, want 1", renders)
	}
	if p.State() != StateCreated {
		t.Errorf("State() = %v, want %v", p.State(), StateCreated)
	}
	if p.Root() == nil || p.Root().Parent() != home {
		t.Error("content is not parked in the home container")
	}
}

func TestPersistentMovesWithoutRerender(t *testing.T) {
	doc := dom.NewDocument()
	hostEl := doc.CreateElement("main")
	doc.Root().AppendChild(hostEl)

	host := NewHost(nil)
	var renders int
	p := MountPersistent(doc, host, labelRenderer("content", &renders))
	defer p.Dispose()

	root := p.Root()
	if root == nil {
		t.Fatal("no content was created")
	}

	host.Set(hostEl)
	if p.State() != StateAttached {
		t.Errorf("State() = %v, want %v", p.State(), StateAttached)
	}
	if p.Root() != root {
		t.Fatal("root identity changed on attach")
	}
	if root.Parent() != hostEl {
		t.Error("root did not move into the host")
	}

	host.Set(nil)
	if p.State() != StateDetached {
		t.Errorf("State() = %v, want %v", p.State(), StateDetached)
	}
	if root.Parent() != FindFallback(doc, HomeID) {
		t.Error("root did not move back into the home container")
	}
	if renders != 1 {
		t.Errorf("render ran %d times across the round trip, want 1", renders)
	}
}

func TestPersistentIdentityAcrossManyTransitions(t *testing.T) {
	doc := dom.NewDocument()
	a := doc.CreateElement("div")
	b := doc.CreateElement("div")
	doc.Root().AppendChild(a)
	doc.Root().AppendChild(b)

	host := NewHost(nil)
	var renders int
	p := MountPersistent(doc, host, labelRenderer("content", &renders))
	defer p.Dispose()

	root := p.Root()
	eid := root.EID()
	text := root.Child(0)

	for _, next := range []*dom.Element{a, nil, b, nil, a, b, nil} {
		host.Set(next)
		if p.Root() != root {
			t.Fatal("root identity changed during relocation")
		}
		if p.Root().EID() != eid {
			t.Fatal("root EID changed during relocation")
		}
		if root.Child(0) != text {
			t.Fatal("subtree content was rebuilt during relocation")
		}
	}
	if renders != 1 {
		t.Errorf("render ran %d times, want exactly 1", renders)
	}
	if a.ChildCount() != 0 || b.ChildCount() != 0 {
		t.Error("stale content left behind in a previous host")
	}
}

func TestPersistentAttachEmitsSingleMovePatch(t *testing.T) {
	doc := dom.NewDocument()
	hostEl := doc.CreateElement("main")
	doc.Root().AppendChild(hostEl)

	host := NewHost(nil)
	p := MountPersistent(doc, host, labelRenderer("content", nil))
	defer p.Dispose()

	rec := &dom.Recorder{}
	doc.SetSink(rec)
	host.Set(hostEl)

	patches := rec.Patches()
	if len(patches) != 1 {
		t.Fatalf("attach emitted %d patches, want 1: %v", len(patches), patches)
	}
	if patches[0].Op != dom.OpMoveNode {
		t.Errorf("attach op = %v, want %v", patches[0].Op, dom.OpMoveNode)
	}
	if patches[0].EID != p.Root().EID() || patches[0].Parent != hostEl.EID() {
		t.Errorf("move = %v, want root %s under %s", patches[0], p.Root().EID(), hostEl.EID())
	}
}

func TestPersistentIdempotentWhenAlreadyPlaced(t *testing.T) {
	doc := dom.NewDocument()
	outer := doc.CreateElement("div")
	inner := doc.CreateElement("div")
	doc.Root().AppendChild(outer)
	outer.AppendChild(inner)

	host := NewHost(nil)
	p := MountPersistent(doc, host, labelRenderer("content", nil))
	defer p.Dispose()

	host.Set(inner)
	if p.Root().Parent() != inner {
		t.Fatal("root did not attach to the inner host")
	}

	rec := &dom.Recorder{}
	doc.SetSink(rec)

	// The new host already contains the root; the step must not mutate.
	host.Set(outer)
	if rec.Len() != 0 {
		t.Errorf("re-evaluation emitted %d patches, want 0: %v", rec.Len(), rec.Patches())
	}
	if p.Root().Parent() != inner {
		t.Error("root was moved despite already being inside the host")
	}
	if p.State() != StateAttached {
		t.Errorf("State() = %v, want %v", p.State(), StateAttached)
	}
}

func TestPersistentHostBeforeCreationIsBenign(t *testing.T) {
	doc := dom.NewDocument()
	hostEl := doc.CreateElement("main")
	doc.Root().AppendChild(hostEl)

	host := NewHost(hostEl)
	var renders int
	p := MountPersistent(doc, host, labelRenderer("content", &renders))
	defer p.Dispose()

	if renders != 0 {
		t.Fatalf("render ran %d times with a host present, want 0", renders)
	}
	if p.State() != StateUncreated {
		t.Fatalf("State() = %v, want %v", p.State(), StateUncreated)
	}
	if p.Root() != nil {
		t.Fatal("Root() is set before anything was rendered")
	}
	if hostEl.ChildCount() != 0 {
		t.Fatal("something was mounted into the host before creation")
	}

	host.Set(nil)
	if renders != 1 {
		t.Errorf("render ran %d times after the host cleared, want 1", renders)
	}
	if p.State() != StateCreated {
		t.Errorf("State() = %v, want %v", p.State(), StateCreated)
	}
}

func TestPersistentForeignHomeContentBlocksCreation(t *testing.T) {
	doc := dom.NewDocument()
	home := CreateContainer(doc, "div", HomeID, HideStyle, false)
	squatter := doc.CreateElement("div")
	home.AppendChild(squatter)

	host := NewHost(nil)
	var renders int
	p := MountPersistent(doc, host, labelRenderer("content", &renders))
	defer p.Dispose()

	if renders != 0 {
		t.Fatalf("render ran %d times into an occupied home, want 0", renders)
	}
	if p.State() != StateUncreated {
		t.Errorf("State() = %v, want %v", p.State(), StateUncreated)
	}

	squatter.Remove()
	hostEl := doc.CreateElement("main")
	doc.Root().AppendChild(hostEl)
	host.Set(hostEl)
	host.Set(nil)

	if renders != 1 {
		t.Errorf("render ran %d times after the home cleared, want 1", renders)
	}
	if p.State() != StateCreated {
		t.Errorf("State() = %v, want %v", p.State(), StateCreated)
	}
}

func TestPersistentCloseLeavesContentLive(t *testing.T) {
	doc := dom.NewDocument()
	hostEl := doc.CreateElement("main")
	doc.Root().AppendChild(hostEl)

	label := reactive.NewSignal("v1")
	render := func(d *dom.Document) *dom.Element {
		root := d.CreateElement("div")
		txt := d.CreateText("")
		root.AppendChild(txt)
		reactive.NewEffect(func() reactive.Cleanup {
			txt.SetText(label.Get())
			return nil
		})
		return root
	}

	host := NewHost(nil)
	p := MountPersistent(doc, host, render)
	host.Set(hostEl)

	root := p.Root()
	p.Close()

	if !root.IsConnected() || root.Parent() != hostEl {
		t.Fatal("content was unmounted by Close")
	}

	label.Set("v2")
	if got := root.Child(0).Text(); got != "v2" {
		t.Errorf("content text = %q after Close, want %q: effects must keep running", got, "v2")
	}

	host.Set(nil)
	if root.Parent() != hostEl {
		t.Error("content moved after Close, want host changes ignored")
	}
	if p.State() != StateAttached {
		t.Errorf("State() = %v after Close, want %v", p.State(), StateAttached)
	}

	p.Dispose()
}

func TestPersistentDisposeRemovesContent(t *testing.T) {
	doc := dom.NewDocument()
	label := reactive.NewSignal("v1")
	var txt *dom.Element
	render := func(d *dom.Document) *dom.Element {
		root := d.CreateElement("div")
		txt = d.CreateText("")
		root.AppendChild(txt)
		reactive.NewEffect(func() reactive.Cleanup {
			txt.SetText(label.Get())
			return nil
		})
		return root
	}

	p := MountPersistent(doc, NewHost(nil), render)
	root := p.Root()

	p.Dispose()

	if root.IsConnected() {
		t.Error("content still connected after Dispose")
	}
	if p.Root() != nil {
		t.Error("Root() still set after Dispose")
	}
	if p.State() != StateUncreated {
		t.Errorf("State() = %v after Dispose, want %v", p.State(), StateUncreated)
	}
	if FindFallback(doc, HomeID) == nil {
		t.Error("shared home container was removed by Dispose")
	}

	label.Set("v2")
	if got := txt.Text(); got != "v1" {
		t.Errorf("content text = %q after Dispose, want it frozen at %q", got, "v1")
	}

	p.Dispose()
}

func TestPersistentCloseIdempotent(t *testing.T) {
	doc := dom.NewDocument()
	p := MountPersistent(doc, NewHost(nil), labelRenderer("content", nil))
	p.Close()
	p.Close()
	p.Dispose()
	p.Dispose()
}

func TestPersistentSVGHome(t *testing.T) {
	doc := dom.NewDocument()
	p := MountPersistent(doc, NewHost(nil), labelRenderer("content", nil), PersistentForSVG())
	defer p.Dispose()

	home := FindFallback(doc, HomeID)
	if home == nil {
		t.Fatal("no home container was created")
	}
	if home.Tag() != "g" {
		t.Errorf("home tag = %q, want %q", home.Tag(), "g")
	}
}

func TestPersistentAndDynamicKeepSeparateContainers(t *testing.T) {
	doc := dom.NewDocument()
	dp := MountDynamic(doc, NewHost(nil), labelRenderer("d", nil))
	pp := MountPersistent(doc, NewHost(nil), labelRenderer("p", nil))
	defer pp.Dispose()

	fb := FindFallback(doc, FallbackID)
	home := FindFallback(doc, HomeID)
	if fb == nil || home == nil {
		t.Fatal("expected both singleton containers to exist")
	}
	if fb == home {
		t.Fatal("dynamic and persistent portals share a container")
	}

	dp.Close()

	if FindFallback(doc, FallbackID) != nil {
		t.Error("dynamic fallback still present after Close")
	}
	if !pp.Root().IsConnected() {
		t.Error("persistent content was destroyed by the dynamic teardown")
	}
	if pp.State() != StateCreated {
		t.Errorf("State() = %v, want %v", pp.State(), StateCreated)
	}
}

func TestMountPersistentNilArgumentsPanic(t *testing.T) {
	doc := dom.NewDocument()
	host := NewHost(nil)
	render := labelRenderer("x", nil)

	mustPanic(t, func() { MountPersistent(nil, host, render) })
	mustPanic(t, func() { MountPersistent(doc, nil, render) })
	mustPanic(t, func() { MountPersistent(doc, host, nil) })
}

func TestPersistentStateString(t *testing.T) {
	cases := []struct {
		state PersistentState
		want  string
	}{
		{StateUncreated, "uncreated"},
		{StateCreated, "created"},
		{StateAttached, "attached"},
		{StateDetached, "detached"},
		{PersistentState(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
