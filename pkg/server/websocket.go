package server

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/portico-dev/portico/pkg/protocol"
)

// Start launches the session loops. Call after the handshake is complete
// and the document is mounted.
func (s *Session) Start() {
	go s.ReadLoop()
	go s.WriteLoop()
	go s.EventLoop()
}

// ReadLoop continuously reads messages from the WebSocket connection,
// decodes frames, handles control messages, and queues events. It blocks
// until the connection is closed or a read fails.
func (s *Session) ReadLoop() {
	// Bind to the connection this loop was started for. After a resume
	// swaps connections, a stale loop must not close the fresh one.
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	defer s.closeIfCurrent(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
				if s.metrics != nil {
					s.metrics.RecordReadError()
				}
			}
			return
		}

		s.UpdateLastActive()
		s.bytesRecv.Add(uint64(len(msg)))
		if s.metrics != nil {
			s.metrics.RecordBytesReceived(len(msg))
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.logger.Error("frame decode error", "error", err)
			continue
		}

		switch frame.Type {
		case protocol.FrameEvent:
			s.handleEventFrame(frame.Payload)

		case protocol.FrameControl:
			s.handleControlFrame(frame.Payload)

		case protocol.FrameAck:
			s.handleAckFrame(frame.Payload)

		default:
			s.logger.Warn("unknown frame type", "type", frame.Type)
		}
	}
}

// closeIfCurrent closes the session only when conn is still its active
// connection.
func (s *Session) closeIfCurrent(conn *websocket.Conn) {
	s.mu.Lock()
	current := s.conn == conn
	s.mu.Unlock()
	if current {
		s.Close()
	}
}

// handleEventFrame decodes and queues an event from the client.
func (s *Session) handleEventFrame(payload []byte) {
	ev, err := protocol.DecodeEvent(payload)
	if err != nil {
		s.logger.Error("event decode error", "error", err)
		s.sendErrorMessage(protocol.ErrInvalidEvent, "Invalid event format")
		return
	}

	if s.metrics != nil {
		s.metrics.RecordEventReceived()
	}

	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event dropped, queue full", "eid", ev.EID, "event", ev.Type.String())
		if s.metrics != nil {
			s.metrics.RecordEventDropped()
		}
		s.sendErrorMessage(protocol.ErrRateLimited, "Event queue full")
	}
}

// handleControlFrame handles ping, pong, resync, and close messages.
func (s *Session) handleControlFrame(payload []byte) {
	ct, data, err := protocol.DecodeControl(payload)
	if err != nil {
		s.logger.Error("control decode error", "error", err)
		return
	}

	switch ct {
	case protocol.ControlPing:
		if pp, ok := data.(*protocol.PingPong); ok {
			s.sendPong(pp.Timestamp)
		}

	case protocol.ControlPong:
		s.logger.Debug("received pong")

	case protocol.ControlResyncRequest:
		if rr, ok := data.(*protocol.ResyncRequest); ok {
			s.handleResyncRequest(rr.LastSeq)
		}

	case protocol.ControlClose:
		if cm, ok := data.(*protocol.CloseMessage); ok {
			s.logger.Info("client closing", "reason", cm.Reason.String(), "message", cm.Message)
		}
		// An explicit goodbye: nothing to resume, nothing to keep.
		s.discard.Store(true)
		s.Close()
	}
}

// handleAckFrame records the client's applied sequence.
func (s *Session) handleAckFrame(payload []byte) {
	ack, err := protocol.DecodeAck(payload)
	if err != nil {
		s.logger.Error("ack decode error", "error", err)
		return
	}

	s.ackSeq.Store(ack.LastSeq)
	s.logger.Debug("received ack", "seq", ack.LastSeq)
}

// handleResyncRequest replays missed frames from the history ring, or
// falls back to a full snapshot when the gap is no longer covered. Replay
// writes stored bytes and is safe here; the full snapshot reads the
// document, so it runs on the event loop.
func (s *Session) handleResyncRequest(lastSeq uint64) {
	cur := s.sendSeq.Load()
	s.logger.Info("resync requested", "last_seq", lastSeq, "current_seq", cur)

	if lastSeq >= cur {
		return // Client is already current
	}

	if frames := s.history.GetFrames(lastSeq, cur); frames != nil {
		if err := s.replayFrames(frames); err != nil {
			s.logger.Error("resync replay failed", "error", err)
		}
		return
	}

	err := s.Dispatch(func() {
		if err := s.sendResyncFull(); err != nil {
			s.logger.Error("full resync failed", "error", err)
		}
	})
	if err != nil {
		s.logger.Error("resync dispatch failed", "error", err)
	}
}

// WriteLoop sends periodic heartbeat pings until the session is closed.
func (s *Session) WriteLoop() {
	done := s.done
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.sendPing(); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// EventLoop is the session's single mutation goroutine: it processes
// queued events and dispatched functions in arrival order. Signal writes,
// portal relocations, and document mutations all happen here, which is
// what makes the run-to-completion model hold without locks around the
// document. On exit it saves the session snapshot.
func (s *Session) EventLoop() {
	done := s.done
	events := s.events
	dispatch := s.dispatchCh
	loopDone := s.loopDone

	s.eventLoopRunning.Store(true)
	defer func() {
		s.eventLoopRunning.Store(false)
		s.saveSnapshot()
		close(loopDone)
	}()

	for {
		select {
		case ev := <-events:
			s.handleEvent(ev)

		case fn := <-dispatch:
			s.executeDispatch(fn)

		case <-done:
			return
		}
	}
}

// Resume swaps in a fresh connection after a reconnect. If the loops have
// exited, the channels are reinitialized; check NeedsRestart afterwards and
// call Start when it reports true (otherwise only a ReadLoop for the new
// connection is needed). Returns false when the session has been destroyed
// and cannot be resumed.
func (s *Session) Resume(conn *websocket.Conn) bool {
	if s.destroyed.Load() {
		return false
	}

	s.mu.Lock()

	needsRestart := false
	select {
	case <-s.done:
		// The loops exited. Wait for the event loop to finish its exit
		// snapshot before rewiring; it reads the document, and the
		// restarted loop will mutate it. Waiting must not hold mu, the
		// snapshot path takes it.
		needsRestart = true
		loopDone := s.loopDone
		s.mu.Unlock()

		select {
		case <-loopDone:
		case <-time.After(5 * time.Second):
			s.logger.Warn("resume timed out waiting for event loop")
			return false
		}
		s.mu.Lock()
	default:
	}

	defer s.mu.Unlock()

	if s.destroyed.Load() {
		return false
	}

	oldConn := s.conn
	s.conn = conn
	if oldConn != nil {
		oldConn.Close()
	}
	s.LastActive = time.Now()

	if needsRestart {
		// Anything still queued on the old channels belonged to the dead
		// connection.
		s.done = make(chan struct{})
		s.loopDone = make(chan struct{})
		s.events = make(chan *protocol.Event, s.config.MaxEventQueue)
		s.dispatchCh = make(chan func(), s.config.MaxEventQueue)
	}
	s.closed.Store(false)

	s.logger.Info("session resumed", "needs_restart", needsRestart)
	return true
}

// NeedsRestart reports whether the session loops have exited and Start
// must be called again after Resume.
func (s *Session) NeedsRestart() bool {
	return !s.eventLoopRunning.Load()
}
