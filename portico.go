// Package portico relocates live UI subtrees between dynamically changing
// host elements without re-creating them. Content renders once into a
// retained server-side document; when the element that should hold it
// changes, the subtree moves with a single patch and keeps its state.
//
// This is the recommended import for applications:
//
//	import "github.com/portico-dev/portico"
//
//	app := portico.New(portico.Config{})
//	app.MountFunc(func(s *portico.Session) error {
//	    doc := s.Document()
//	    host := portico.NewHost(nil)
//	    portico.MountPersistent(doc, host, func(d *portico.Document) *portico.Element {
//	        player := d.CreateElement("video")
//	        player.SetAttr("src", "/stream.m3u8")
//	        return player
//	    })
//	    // host.Set(...) from event handlers relocates the player.
//	    return nil
//	})
//	app.Run(":8080")
//
// Subpackages carry the pieces: pkg/portal (the relocation primitive),
// pkg/dom (the retained document), pkg/reactive (signals and effects),
// pkg/server (live sessions), pkg/snapshot (session persistence),
// pkg/middleware (metrics and tracing).
package portico

import (
	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/portal"
	"github.com/portico-dev/portico/pkg/protocol"
	"github.com/portico-dev/portico/pkg/reactive"
	"github.com/portico-dev/portico/pkg/server"
	"github.com/portico-dev/portico/pkg/snapshot"
)

// Document and element tree.
type (
	// Document owns a retained element tree with stable wire ids.
	Document = dom.Document

	// Element is one node in a Document.
	Element = dom.Element
)

// NewDocument returns an empty document with a connected root.
var NewDocument = dom.NewDocument

// Portal primitives.
type (
	// Host is the signal naming where portal content should live. Set it
	// to nil to indicate no host.
	Host = portal.Host

	// Watcher observes a Host.
	Watcher = portal.Watcher

	// RenderFunc builds portal content against a document.
	RenderFunc = portal.RenderFunc

	// MountHandle owns one rendered subtree and its reactive scope.
	MountHandle = portal.MountHandle

	// DynamicPortal re-renders content wherever its host currently is.
	DynamicPortal = portal.DynamicPortal

	// PersistentPortal renders content once and then only re-parents it.
	PersistentPortal = portal.PersistentPortal

	// PersistentState is a PersistentPortal's lifecycle position.
	PersistentState = portal.PersistentState

	// DynamicOption configures MountDynamic.
	DynamicOption = portal.DynamicOption

	// PersistentOption configures MountPersistent.
	PersistentOption = portal.PersistentOption
)

// Portal constructors and options.
var (
	NewHost         = portal.NewHost
	NewWatcher      = portal.NewWatcher
	Mount           = portal.Mount
	MountDynamic    = portal.MountDynamic
	MountPersistent = portal.MountPersistent

	WithShadow       = portal.WithShadow
	ForSVG           = portal.ForSVG
	HideWhenUnhosted = portal.HideWhenUnhosted
	WrapHost         = portal.WrapHost
	PersistentForSVG = portal.PersistentForSVG
)

// PersistentPortal lifecycle states.
const (
	StateUncreated = portal.StateUncreated
	StateCreated   = portal.StateCreated
	StateAttached  = portal.StateAttached
	StateDetached  = portal.StateDetached
)

// Reactive primitives.
type (
	// Effect is a computation that re-runs when its dependencies change.
	Effect = reactive.Effect

	// Owner scopes effects for group disposal.
	Owner = reactive.Owner

	// Cleanup undoes one effect run.
	Cleanup = reactive.Cleanup
)

// NewSignal creates a reactive signal.
//
//	count := portico.NewSignal(0)
//	count.Set(1)
func NewSignal[T any](initial T) *reactive.Signal[T] {
	return reactive.NewSignal(initial)
}

// Reactive helpers.
var (
	NewEffect = reactive.NewEffect
	NewOwner  = reactive.NewOwner
	WithOwner = reactive.WithOwner
	OnDispose = reactive.OnDispose
	Batch     = reactive.Batch
	Untracked = reactive.Untracked
)

// Sessions and event handling.
type (
	// Session is one connected client and its document.
	Session = server.Session

	// Ctx is the per-event context handed to handlers and middleware.
	Ctx = server.Ctx

	// Handler mounts an application onto a new session.
	Handler = server.Handler

	// HandlerFunc is Handler for a plain function.
	HandlerFunc = server.HandlerFunc

	// EventHandler responds to one client event.
	EventHandler = server.EventHandler

	// Middleware wraps event dispatch.
	Middleware = server.Middleware

	// Event is a decoded client event.
	Event = protocol.Event

	// EventType discriminates client events.
	EventType = protocol.EventType
)

// Client event types.
const (
	EventClick    = protocol.EventClick
	EventDblClick = protocol.EventDblClick
	EventInput    = protocol.EventInput
	EventChange   = protocol.EventChange
	EventSubmit   = protocol.EventSubmit
	EventKeyDown  = protocol.EventKeyDown
	EventCustom   = protocol.EventCustom
)

// SnapshotStore persists session snapshots across restarts. Backends live
// in pkg/snapshot.
type SnapshotStore = snapshot.Store

// NewMemoryStore returns the in-process snapshot store.
var NewMemoryStore = snapshot.NewMemoryStore
