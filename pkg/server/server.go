package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/portico-dev/portico/pkg/protocol"
	"github.com/portico-dev/portico/pkg/snapshot"
)

// Server upgrades WebSocket connections into live sessions and keeps the
// session registry. It serves exactly one endpoint; mount it wherever the
// application routes its live connection path.
type Server struct {
	config   *Config
	handler  Handler
	upgrader websocket.Upgrader

	middleware []Middleware
	store      snapshot.Store
	metrics    *Collector
	logger     *slog.Logger

	mu           sync.RWMutex
	sessions     map[string]*Session
	totalCreated int64
	totalClosed  int64
	peak         int

	httpServer *http.Server
	closed     atomic.Bool
	done       chan struct{}
}

// New creates a Server with the given configuration. A nil config uses
// DefaultConfig; partially filled configs get defaults for unset fields.
func New(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	} else {
		defaults := DefaultConfig()
		if config.Address == "" {
			config.Address = defaults.Address
		}
		if config.ReadBufferSize == 0 {
			config.ReadBufferSize = defaults.ReadBufferSize
		}
		if config.WriteBufferSize == 0 {
			config.WriteBufferSize = defaults.WriteBufferSize
		}
		if config.CheckOrigin == nil {
			config.CheckOrigin = defaults.CheckOrigin
		}
		if config.Session == nil {
			config.Session = defaults.Session
		}
		if config.ShutdownTimeout == 0 {
			config.ShutdownTimeout = defaults.ShutdownTimeout
		}
		if config.CleanupInterval == 0 {
			config.CleanupInterval = defaults.CleanupInterval
		}
		if config.ResumeWindow == 0 {
			config.ResumeWindow = defaults.ResumeWindow
		}
	}

	s := &Server{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		store:    config.SnapshotStore,
		metrics:  NewCollector(),
		logger:   slog.Default().With("component", "server"),
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// SetHandler sets the application mount handler for new sessions.
func (s *Server) SetHandler(h Handler) {
	s.handler = h
}

// Use appends middleware to the event dispatch chain. Call before the
// first session connects; sessions copy the chain at creation.
func (s *Server) Use(mw ...Middleware) {
	s.middleware = append(s.middleware, mw...)
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger { return s.logger }

// SetLogger replaces the server logger. Call before the first session
// connects.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger.With("component", "server")
}

// Collector returns the server's metrics collector.
func (s *Server) Collector() *Collector { return s.metrics }

// Config returns the server configuration.
func (s *Server) Config() *Config { return s.config }

// Session returns a session by ID, or nil.
func (s *Server) Session(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// SessionCount returns the number of registered sessions, detached ones
// included.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Metrics returns a snapshot of server activity.
func (s *Server) Metrics() *Stats {
	stats := s.metrics.Snapshot()

	s.mu.RLock()
	active := 0
	for _, sess := range s.sessions {
		if !sess.IsClosed() {
			active++
		}
	}
	stats.ActiveSessions = int64(active)
	stats.TotalSessions = s.totalCreated
	stats.SessionCloses = s.totalClosed
	stats.PeakSessions = int64(s.peak)
	s.mu.RUnlock()

	return stats
}

// ServeHTTP implements http.Handler: every request is a WebSocket upgrade
// attempt.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.HandleWebSocket(w, r)
}

// HandleWebSocket upgrades the connection, performs the handshake, and
// hands the connection to a new or resumed session.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(s.config.Session.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.config.Session.HandshakeTimeout))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		s.logger.Error("handshake read failed", "error", err)
		conn.Close()
		return
	}

	frame, err := protocol.DecodeFrame(msg)
	if err != nil || frame.Type != protocol.FrameHandshake {
		s.sendHandshakeError(conn, protocol.HandshakeInvalidFormat)
		conn.Close()
		return
	}

	hello, err := protocol.DecodeClientHello(frame.Payload)
	if err != nil {
		s.sendHandshakeError(conn, protocol.HandshakeInvalidFormat)
		conn.Close()
		return
	}

	if hello.Version.Major != protocol.CurrentVersion.Major {
		s.logger.Warn("handshake version mismatch",
			"client", hello.Version.Major, "server", protocol.CurrentVersion.Major)
		s.sendHandshakeError(conn, protocol.HandshakeVersionMismatch)
		conn.Close()
		return
	}

	if hello.SessionID != "" {
		s.resumeSession(conn, hello)
		return
	}

	s.startSession(conn, r)
}

// startSession creates a fresh session, mounts the application, and starts
// the loops.
func (s *Server) startSession(conn *websocket.Conn, r *http.Request) {
	sess, err := s.createSession(conn)
	if err != nil {
		switch err {
		case ErrMaxSessionsReached:
			s.sendHandshakeError(conn, protocol.HandshakeServerBusy)
		default:
			s.sendHandshakeError(conn, protocol.HandshakeInternalError)
		}
		conn.Close()
		return
	}

	// The request context dies when this returns; move anything the app
	// needs out of it now.
	if s.config.OnSessionStart != nil {
		s.config.OnSessionStart(r.Context(), sess)
	}

	if err := sess.runMount(s.handler); err != nil {
		s.logger.Error("mount failed", "session_id", sess.ID, "error", err)
		s.sendHandshakeError(conn, protocol.HandshakeInternalError)
		s.removeSession(sess)
		sess.disposeNow()
		return
	}

	s.sendServerHello(conn, sess)
	sess.flush()
	sess.Start()

	s.logger.Info("session started", "session_id", sess.ID, "remote", r.RemoteAddr)
}

// resumeSession reattaches a client to its session: live registry first,
// then the snapshot store, otherwise the client learns the session is gone.
func (s *Server) resumeSession(conn *websocket.Conn, hello *protocol.ClientHello) {
	s.mu.RLock()
	sess := s.sessions[hello.SessionID]
	s.mu.RUnlock()

	if sess != nil {
		if !sess.Resume(conn) {
			s.sendHandshakeError(conn, protocol.HandshakeSessionExpired)
			conn.Close()
			return
		}

		s.sendServerHello(conn, sess)
		if sess.NeedsRestart() {
			sess.Start()
		} else {
			// The loops survived the disconnect; only the new connection
			// needs a reader.
			go sess.ReadLoop()
		}
		s.sendMissedPatches(sess, hello.LastSeq)
		s.logger.Info("session resumed", "session_id", sess.ID)
		return
	}

	if s.store != nil {
		s.restoreSession(conn, hello)
		return
	}

	s.sendHandshakeError(conn, protocol.HandshakeSessionExpired)
	conn.Close()
}

// sendMissedPatches brings a resumed client current: replay from the
// history ring when it covers the gap, full resync otherwise.
func (s *Server) sendMissedPatches(sess *Session, lastSeq uint64) {
	cur := sess.sendSeq.Load()
	if lastSeq >= cur {
		return
	}

	if frames := sess.history.GetFrames(lastSeq, cur); frames != nil {
		if err := sess.replayFrames(frames); err != nil {
			s.logger.Error("resume replay failed", "session_id", sess.ID, "error", err)
		}
		return
	}

	err := sess.Dispatch(func() {
		if err := sess.sendResyncFull(); err != nil {
			sess.logger.Error("resume resync failed", "error", err)
		}
	})
	if err != nil {
		s.logger.Error("resume resync dispatch failed", "session_id", sess.ID, "error", err)
	}
}

// restoreSession rebuilds a session from its persisted snapshot after a
// server restart: same ID, a fresh document from a fresh mount, and a full
// resync so the client's tree matches the new element ids.
func (s *Server) restoreSession(conn *websocket.Conn, hello *protocol.ClientHello) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := s.store.Load(ctx, hello.SessionID)
	if err != nil {
		s.logger.Error("snapshot load failed", "session_id", hello.SessionID, "error", err)
		s.sendHandshakeError(conn, protocol.HandshakeInternalError)
		conn.Close()
		return
	}
	if data == nil {
		s.sendHandshakeError(conn, protocol.HandshakeSessionExpired)
		conn.Close()
		return
	}

	env, err := snapshot.Unmarshal(data)
	if err != nil {
		s.logger.Error("snapshot decode failed", "session_id", hello.SessionID, "error", err)
		s.sendHandshakeError(conn, protocol.HandshakeInternalError)
		conn.Close()
		return
	}

	if time.Since(env.LastActive) > s.config.ResumeWindow {
		s.sendHandshakeError(conn, protocol.HandshakeSessionExpired)
		conn.Close()
		return
	}

	sess := newSession(env.SessionID, conn, s.config.Session, s.logger, s.metrics)
	sess.CreatedAt = env.CreatedAt
	sess.restored = true
	if env.Values != nil {
		sess.values = env.Values
	}
	sess.sendSeq.Store(env.Seq)

	if err := s.addSession(sess); err != nil {
		switch err {
		case ErrMaxSessionsReached:
			s.sendHandshakeError(conn, protocol.HandshakeServerBusy)
		default:
			s.sendHandshakeError(conn, protocol.HandshakeInternalError)
		}
		conn.Close()
		return
	}

	if err := sess.runMount(s.handler); err != nil {
		s.logger.Error("restore mount failed", "session_id", sess.ID, "error", err)
		s.sendHandshakeError(conn, protocol.HandshakeInternalError)
		s.removeSession(sess)
		sess.disposeNow()
		return
	}

	s.sendServerHello(conn, sess)

	// The client still holds its old tree; the mount patches assume an
	// empty one. Discard them and replace the client's tree wholesale.
	sess.recorder.Drain()
	if err := sess.sendResyncFull(); err != nil {
		s.logger.Error("restore resync failed", "session_id", sess.ID, "error", err)
	}

	sess.Start()
	s.logger.Info("session restored", "session_id", sess.ID)
}

// createSession allocates and registers a new session.
func (s *Server) createSession(conn *websocket.Conn) (*Session, error) {
	sess := newSession(generateSessionID(), conn, s.config.Session, s.logger, s.metrics)
	if err := s.addSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Server) addSession(sess *Session) error {
	sess.middleware = s.middleware
	sess.store = s.store
	sess.resumeWindow = s.config.ResumeWindow

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrServerClosed
	}
	if s.config.MaxSessions > 0 && len(s.sessions) >= s.config.MaxSessions {
		return ErrMaxSessionsReached
	}

	s.sessions[sess.ID] = sess
	s.totalCreated++
	if len(s.sessions) > s.peak {
		s.peak = len(s.sessions)
	}
	return nil
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	if s.sessions[sess.ID] == sess {
		delete(s.sessions, sess.ID)
		s.totalClosed++
	}
	s.mu.Unlock()
}

// sendHandshakeError sends a handshake error response.
func (s *Server) sendHandshakeError(conn *websocket.Conn, status protocol.HandshakeStatus) {
	hello := protocol.NewServerHelloError(status)
	frame := protocol.NewFrame(protocol.FrameHandshake, protocol.EncodeServerHello(hello))

	conn.SetWriteDeadline(time.Now().Add(s.config.Session.WriteTimeout))
	conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
}

// sendServerHello sends a successful handshake response.
func (s *Server) sendServerHello(conn *websocket.Conn, sess *Session) {
	hello := protocol.NewServerHello(
		sess.ID,
		sess.sendSeq.Load()+1,
		uint64(time.Now().UnixMilli()),
		sess.Document().Root().EID(),
	)
	hello.Flags = protocol.ServerFlagResume
	frame := protocol.NewFrame(protocol.FrameHandshake, protocol.EncodeServerHello(hello))

	conn.SetWriteDeadline(time.Now().Add(s.config.Session.WriteTimeout))
	conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
}

// cleanupLoop periodically detaches idle sessions and destroys detached
// ones whose resume window has passed.
func (s *Server) cleanupLoop() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.done:
			return
		}
	}
}

func (s *Server) cleanup() {
	now := time.Now()
	var idle, expired []*Session

	s.mu.RLock()
	for _, sess := range s.sessions {
		last := sess.lastActive()
		if sess.IsClosed() {
			if sess.discard.Load() || now.Sub(last) > s.config.ResumeWindow {
				expired = append(expired, sess)
			}
		} else if now.Sub(last) > s.config.Session.IdleTimeout {
			idle = append(idle, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range idle {
		sess.logger.Info("closing idle session")
		sess.CloseWithReason(protocol.CloseSessionExpired, "idle timeout")
	}
	for _, sess := range expired {
		s.removeSession(sess)
		sess.destroy()
	}
}

// Run starts an HTTP server on the configured address serving the
// WebSocket endpoint, and blocks until a shutdown signal or listen error.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:    s.config.Address,
		Handler: s,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the server: sessions are notified, closed, and
// destroyed (flushing their snapshots), then the HTTP listener stops.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*Session)
	s.totalClosed += int64(len(sessions))
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.CloseWithReason(protocol.CloseServerShutdown, "server shutting down")
		sess.destroy()
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("snapshot store close failed", "error", err)
		}
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
