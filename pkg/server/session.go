package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/protocol"
	"github.com/portico-dev/portico/pkg/reactive"
	"github.com/portico-dev/portico/pkg/render"
	"github.com/portico-dev/portico/pkg/snapshot"
)

// Handler mounts an application onto a fresh session: it builds the
// session's document (portals included) and registers event handlers.
// Mount runs before the session loops start, so it may touch the document
// directly; everything it creates belongs to the session's owner and is
// disposed when the session is destroyed.
type Handler interface {
	Mount(s *Session) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(s *Session) error

// Mount calls f(s).
func (f HandlerFunc) Mount(s *Session) error { return f(s) }

type handlerKey struct {
	eid string
	typ protocol.EventType
}

// Session is one live client: a WebSocket connection paired with a retained
// document. A single event-loop goroutine owns the document, the reactive
// owner, the handler table, and the values map; all mutations run there and
// are flushed as one sequenced Patches frame per event.
type Session struct {
	// ID is the unique session identifier.
	ID string

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	// LastActive is when the session last saw client traffic.
	// Guarded by mu.
	LastActive time.Time

	// Connection
	conn   *websocket.Conn
	mu     sync.Mutex // guards conn writes, conn swap, LastActive
	closed atomic.Bool

	// Document state (event loop only)
	doc      *dom.Document
	recorder *dom.Recorder
	owner    *reactive.Owner
	handlers map[handlerKey]EventHandler
	values   map[string]json.RawMessage
	restored bool

	// Sequence tracking
	sendSeq atomic.Uint64 // Last patches frame sequence sent
	recvSeq atomic.Uint64 // Last event sequence received
	ackSeq  atomic.Uint64 // Last sequence acknowledged by the client

	// Channels
	events     chan *protocol.Event
	dispatchCh chan func()
	done       chan struct{}
	loopDone   chan struct{}

	eventLoopRunning atomic.Bool

	history    *PatchHistory
	middleware []Middleware
	renderer   *render.Renderer

	// Persistence
	store        snapshot.Store
	resumeWindow time.Duration
	discard      atomic.Bool // Client closed for good; skip the snapshot
	destroyed    atomic.Bool

	config  *SessionConfig
	logger  *slog.Logger
	metrics *Collector

	// Arbitrary per-session application state.
	dataMu sync.RWMutex
	data   map[string]any

	// Counters
	eventCount atomic.Uint64
	patchCount atomic.Uint64
	bytesSent  atomic.Uint64
	bytesRecv  atomic.Uint64
}

// newSession creates a session around an established connection. The
// document starts empty; the server mounts the application before starting
// the loops.
func newSession(id string, conn *websocket.Conn, config *SessionConfig, logger *slog.Logger, metrics *Collector) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
		conn:       conn,
		doc:        dom.NewDocument(),
		recorder:   &dom.Recorder{},
		owner:      reactive.NewOwner(nil),
		handlers:   make(map[handlerKey]EventHandler),
		values:     make(map[string]json.RawMessage),
		events:     make(chan *protocol.Event, config.MaxEventQueue),
		dispatchCh: make(chan func(), config.MaxEventQueue),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
		history:    NewPatchHistory(config.MaxPatchHistory),
		renderer:   render.NewRenderer(render.Config{IncludeEIDs: true}),
		config:     config,
		logger:     logger.With("session_id", id),
		metrics:    metrics,
		data:       make(map[string]any),
	}
	s.doc.SetSink(s.recorder)
	return s
}

// generateSessionID returns a cryptographically random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("server: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// Document returns the session's live document. Outside of Mount and event
// handlers, touch it only through Dispatch.
func (s *Session) Document() *dom.Document { return s.doc }

// Owner returns the reactive owner everything mounted on this session
// belongs to.
func (s *Session) Owner() *reactive.Owner { return s.owner }

// Logger returns the session-scoped logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// IsClosed reports whether the session's connection has been closed.
// A closed session may still be resumed until it is destroyed.
func (s *Session) IsClosed() bool { return s.closed.Load() }

// Restored reports whether this session was rebuilt from a snapshot after a
// server restart.
func (s *Session) Restored() bool { return s.restored }

// HandleEvent registers fn for events of type et targeting the element with
// wire id eid. A later registration for the same target replaces the
// earlier one; a nil fn removes it. Call from Mount or on the event loop.
func (s *Session) HandleEvent(eid string, et protocol.EventType, fn EventHandler) {
	key := handlerKey{eid: eid, typ: et}
	if fn == nil {
		delete(s.handlers, key)
		return
	}
	s.handlers[key] = fn
}

// Dispatch queues fn to run on the session's event loop, where it may
// safely read and mutate the document and signals. Mutations are flushed to
// the client when fn returns, exactly like an event's.
func (s *Session) Dispatch(fn func()) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	select {
	case s.dispatchCh <- fn:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrEventQueueFull
	}
}

// Set stores an application value on the session.
func (s *Session) Set(key string, value any) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.data[key] = value
}

// Get retrieves an application value, or nil when unset.
func (s *Session) Get(key string) any {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.data[key]
}

// SetValue stores durable application state carried by session snapshots.
// Values survive a server restart when a snapshot store is configured.
// Event loop only.
func (s *Session) SetValue(key string, value json.RawMessage) {
	s.values[key] = value
}

// Value returns a durable value and whether it was present. After a
// restore, Mount reads back what the previous process saved here.
// Event loop only.
func (s *Session) Value(key string) (json.RawMessage, bool) {
	v, ok := s.values[key]
	return v, ok
}

// UpdateLastActive marks the session as active now.
func (s *Session) UpdateLastActive() {
	s.mu.Lock()
	s.LastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastActive
}

// EventCount returns the number of events this session has received.
func (s *Session) EventCount() uint64 { return s.eventCount.Load() }

// PatchCount returns the number of patches this session has sent.
func (s *Session) PatchCount() uint64 { return s.patchCount.Load() }

// runMount invokes the application handler under the session's owner.
func (s *Session) runMount(h Handler) error {
	if h == nil {
		return ErrNoHandler
	}
	var err error
	reactive.WithOwner(s.owner, func() {
		err = h.Mount(s)
	})
	if err != nil {
		return NewSessionError(s.ID, "mount", err)
	}
	return nil
}

// handleEvent dispatches one event through the middleware chain to its
// handler and flushes the resulting patches. Runs on the event loop.
func (s *Session) handleEvent(ev *protocol.Event) {
	start := time.Now()
	s.recvSeq.Store(ev.Seq)
	s.eventCount.Add(1)

	c := newEventCtx(s, ev)
	if err := runChain(c, s.middleware, s.invokeHandler); err != nil {
		s.reportDispatchError(ev, err)
	}
	s.flush()

	if s.metrics != nil {
		s.metrics.RecordEventProcessed()
		s.metrics.RecordEventLatency(time.Since(start).Microseconds())
	}
}

// invokeHandler is the end of the middleware chain: it finds and runs the
// registered handler, converting panics into HandlerErrors.
func (s *Session) invokeHandler(c Ctx) (err error) {
	ev := c.Event()
	fn := s.handlers[handlerKey{eid: ev.EID, typ: ev.Type}]
	if fn == nil {
		return NewSessionError(s.ID, "dispatch", ErrHandlerNotFound)
	}

	defer func() {
		if r := recover(); r != nil {
			if s.metrics != nil {
				s.metrics.RecordHandlerPanic()
			}
			err = NewHandlerError(s.ID, ev.EID, ev.Type.String(), r, debug.Stack())
		}
	}()

	return fn(c)
}

func (s *Session) reportDispatchError(ev *protocol.Event, err error) {
	var he *HandlerError
	switch {
	case errors.As(err, &he):
		s.logger.Error("handler panic",
			"eid", ev.EID,
			"event", ev.Type.String(),
			"panic", he.Panic,
			"stack", string(he.Stack))
		s.sendErrorMessage(protocol.ErrHandlerPanic, "Event handler failed")

	case errors.Is(err, ErrHandlerNotFound):
		s.logger.Warn("no handler for event", "eid", ev.EID, "event", ev.Type.String())
		s.sendErrorMessage(protocol.ErrTargetNotFound, "No handler for target")

	default:
		s.logger.Error("event dispatch failed",
			"eid", ev.EID,
			"event", ev.Type.String(),
			"error", err)
		s.sendErrorMessage(protocol.ErrServerError, "Event dispatch failed")
	}
}

// executeDispatch runs a dispatched function with panic recovery. Whatever
// the function managed to mutate before a panic has already happened to the
// document, so the flush still runs.
func (s *Session) executeDispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("dispatch panic", "panic", r, "stack", string(debug.Stack()))
		}
		s.flush()
	}()
	fn()
}

// flush drains the recorder and sends the patches as one sequenced frame.
// Returns the number of patches sent.
func (s *Session) flush() int {
	patches := s.recorder.Drain()
	if len(patches) == 0 {
		return 0
	}

	wire := make([]protocol.Patch, len(patches))
	for i := range patches {
		wire[i] = wirePatch(patches[i])
	}
	if err := s.sendPatches(wire); err != nil {
		s.logger.Error("patch flush failed", "error", err, "patches", len(wire))
		return 0
	}
	return len(wire)
}

// sendPatches encodes and writes one Patches frame. Oversized batches are
// split; every chunk gets its own sequence number and history entry.
func (s *Session) sendPatches(patches []protocol.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendPatchesLocked(patches)
}

func (s *Session) sendPatchesLocked(patches []protocol.Patch) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	seq := s.sendSeq.Load() + 1
	payload := protocol.EncodePatches(&protocol.PatchesFrame{Seq: seq, Patches: patches})
	if len(payload) > protocol.MaxPayloadSize {
		if len(patches) == 1 {
			return NewSessionError(s.ID, "send patches", protocol.ErrFrameTooLarge)
		}
		mid := len(patches) / 2
		if err := s.sendPatchesLocked(patches[:mid]); err != nil {
			return err
		}
		return s.sendPatchesLocked(patches[mid:])
	}

	frame := protocol.NewFrame(protocol.FramePatches, payload)
	data := frame.Encode()

	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		if s.metrics != nil {
			s.metrics.RecordWriteError()
		}
		s.closeLocked()
		return NewSessionError(s.ID, "send patches", err)
	}

	s.sendSeq.Store(seq)
	s.history.Add(seq, data)
	s.bytesSent.Add(uint64(len(data)))
	s.patchCount.Add(uint64(len(patches)))
	if s.metrics != nil {
		s.metrics.RecordPatchesSent(len(patches), len(data))
		s.metrics.RecordBytesSent(len(data))
	}
	return nil
}

// sendControl writes one control frame.
func (s *Session) sendControl(ct protocol.ControlType, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}

	frame := protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(ct, payload))
	data := frame.Encode()

	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return NewSessionError(s.ID, "send control", err)
	}
	s.bytesSent.Add(uint64(len(data)))
	return nil
}

// sendErrorMessage writes a non-fatal error frame; failures are only logged.
func (s *Session) sendErrorMessage(code protocol.ErrorCode, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return
	}

	em := protocol.NewError(code, message)
	frame := protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em))

	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		s.logger.Error("error frame write failed", "error", err)
	}
}

// sendPing sends a heartbeat ping.
func (s *Session) sendPing() error {
	ct, pp := protocol.NewPing(uint64(time.Now().UnixMilli()))
	return s.sendControl(ct, pp)
}

// sendPong answers a client ping.
func (s *Session) sendPong(timestamp uint64) {
	ct, pp := protocol.NewPong(timestamp)
	if err := s.sendControl(ct, pp); err != nil {
		s.logger.Error("pong error", "error", err)
	}
}

// sendResyncFull renders the current document and ships it as a full
// resync. The patch history is cleared: after a full snapshot the retained
// frames describe a baseline the client no longer has. Must run on the
// event loop, or before the loops start.
func (s *Session) sendResyncFull() error {
	html, err := s.renderer.Snapshot(s.doc)
	if err != nil {
		return NewSessionError(s.ID, "resync render", err)
	}
	s.history.Clear()
	ct, rr := protocol.NewResyncFull(html)
	return s.sendControl(ct, rr)
}

// replayFrames re-sends stored patch frames verbatim.
func (s *Session) replayFrames(frames [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}

	for _, data := range frames {
		s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return NewSessionError(s.ID, "replay", err)
		}
		s.bytesSent.Add(uint64(len(data)))
	}
	return nil
}

// Close detaches the session: the loops stop and the connection closes, but
// the document and its portals stay alive so the client can resume within
// the resume window. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
}

func (s *Session) closeLocked() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
	s.logger.Info("session detached",
		"events", s.eventCount.Load(),
		"patches", s.patchCount.Load())
}

// CloseWithReason tells the client why before closing. The notification is
// best effort.
func (s *Session) CloseWithReason(reason protocol.CloseReason, message string) {
	ct, cm := protocol.NewClose(reason, message)
	_ = s.sendControl(ct, cm)
	s.Close()
}

// destroy is the final teardown: close if needed, wait for the event loop
// to finish its snapshot, then dispose everything mounted on the session.
// After destroy the session cannot be resumed.
func (s *Session) destroy() {
	s.destroyed.Store(true)
	s.Close()

	select {
	case <-s.loopDone:
	case <-time.After(5 * time.Second):
		s.logger.Warn("event loop did not exit in time")
	}

	s.owner.Dispose()
	s.recorder.Drain()
}

// disposeNow tears down a session whose loops never started.
func (s *Session) disposeNow() {
	s.destroyed.Store(true)
	s.Close()
	s.owner.Dispose()
	s.recorder.Drain()
}

// saveSnapshot persists the session state for restart resume. Runs on the
// event loop as it exits, so it may read the document directly.
func (s *Session) saveSnapshot() {
	if s.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.discard.Load() {
		// The client said goodbye for good; drop any persisted state.
		if err := s.store.Delete(ctx, s.ID); err != nil {
			s.logger.Error("snapshot delete failed", "error", err)
		}
		return
	}

	html, err := s.renderer.Snapshot(s.doc)
	if err != nil {
		s.logger.Error("snapshot render failed", "error", err)
		return
	}

	env := &snapshot.Envelope{
		SessionID:  s.ID,
		CreatedAt:  s.CreatedAt,
		LastActive: s.lastActive(),
		Seq:        s.sendSeq.Load(),
		HTML:       html,
		Values:     s.values,
	}
	data, err := snapshot.Marshal(env)
	if err != nil {
		s.logger.Error("snapshot marshal failed", "error", err)
		return
	}

	window := s.resumeWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	if err := s.store.Save(ctx, s.ID, data, time.Now().Add(window)); err != nil {
		s.logger.Error("snapshot save failed", "error", err)
	}
}
