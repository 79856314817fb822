package server

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/portico-dev/portico/pkg/protocol"
	"github.com/portico-dev/portico/pkg/snapshot"
)

func getSessionEventually(t *testing.T, srv *Server, sessionID string) *Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess := srv.Session(sessionID); sess != nil {
			return sess
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for session %q to be registered", sessionID)
	return nil
}

func waitForClosed(t *testing.T, sess *Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.IsClosed() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for session to close")
}

func waitForCondition(t *testing.T, what string, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSession_ClickEvent_FlushesPatches(t *testing.T) {
	srv, ts := newTestServer(t, nil)

	conn, hello, mount := connect(t, ts)
	btnEID := createdEID(t, mount, "button")

	sendEvent(t, conn, protocol.NewClickEvent(1, btnEID))

	pf := readPatchesFrame(t, conn)
	if pf.Seq != 2 {
		t.Errorf("patch frame seq = %d, want 2", pf.Seq)
	}
	found := false
	for _, p := range pf.Patches {
		if p.Op == protocol.PatchSetText && p.Value == "count: 1" {
			found = true
		}
	}
	if !found {
		t.Errorf("no SetText patch with updated count in %d patches", len(pf.Patches))
	}

	sess := getSessionEventually(t, srv, hello.SessionID)
	waitForCondition(t, "event count", func() bool { return sess.EventCount() == 1 })
}

func TestSession_UnknownTarget_SendsErrorFrame(t *testing.T) {
	_, ts := newTestServer(t, nil)

	conn, _, _ := connect(t, ts)
	sendEvent(t, conn, protocol.NewClickEvent(1, "e999"))

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameError {
		t.Fatalf("frame type = %v, want %v", frame.Type, protocol.FrameError)
	}
	em, err := protocol.DecodeErrorMessage(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeErrorMessage failed: %v", err)
	}
	if em.Code != protocol.ErrTargetNotFound {
		t.Errorf("error code = %v, want %v", em.Code, protocol.ErrTargetNotFound)
	}
}

func TestSession_HandlerPanic_SendsErrorFrame(t *testing.T) {
	srv := New(nil)
	srv.SetHandler(HandlerFunc(func(s *Session) error {
		btn := s.Document().CreateElement("button")
		s.Document().Root().AppendChild(btn)
		s.HandleEvent(btn.EID(), protocol.EventClick, func(c Ctx) error {
			panic("handler exploded")
		})
		return nil
	}))
	ts := newServerForTest(t, srv)

	conn, _, mount := connect(t, ts)
	btnEID := createdEID(t, mount, "button")
	sendEvent(t, conn, protocol.NewClickEvent(1, btnEID))

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameError {
		t.Fatalf("frame type = %v, want %v", frame.Type, protocol.FrameError)
	}
	em, err := protocol.DecodeErrorMessage(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeErrorMessage failed: %v", err)
	}
	if em.Code != protocol.ErrHandlerPanic {
		t.Errorf("error code = %v, want %v", em.Code, protocol.ErrHandlerPanic)
	}
}

func TestSession_PingPong(t *testing.T) {
	_, ts := newTestServer(t, nil)

	conn, _, _ := connect(t, ts)

	ct, payload := protocol.NewPing(12345)
	sendControl(t, conn, ct, payload)

	gotType, gotPayload := readControl(t, conn)
	if gotType != protocol.ControlPong {
		t.Fatalf("control type = %v, want %v", gotType, protocol.ControlPong)
	}
	pong, ok := gotPayload.(*protocol.PingPong)
	if !ok {
		t.Fatalf("payload type = %T, want *protocol.PingPong", gotPayload)
	}
	if pong.Timestamp != 12345 {
		t.Errorf("pong timestamp = %d, want 12345", pong.Timestamp)
	}
}

func TestSession_Ack_UpdatesAckSeq(t *testing.T) {
	srv, ts := newTestServer(t, nil)

	conn, hello, _ := connect(t, ts)
	sess := getSessionEventually(t, srv, hello.SessionID)

	ack := protocol.NewAck(1, 32)
	frame := protocol.NewFrame(protocol.FrameAck, protocol.EncodeAck(ack))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		t.Fatalf("write ack failed: %v", err)
	}

	waitForCondition(t, "ack seq", func() bool { return sess.ackSeq.Load() == 1 })
}

func TestSession_ResyncRequest_ReplaysFromHistory(t *testing.T) {
	_, ts := newTestServer(t, nil)

	conn, _, mount := connect(t, ts)
	btnEID := createdEID(t, mount, "button")

	sendEvent(t, conn, protocol.NewClickEvent(1, btnEID))
	readPatchesFrame(t, conn) // seq 2

	ct, payload := protocol.NewResyncRequest(1)
	sendControl(t, conn, ct, payload)

	replay := readPatchesFrame(t, conn)
	if replay.Seq != 2 {
		t.Errorf("replayed frame seq = %d, want 2", replay.Seq)
	}
}

func TestSession_Resume_ReplaysMissedFrames(t *testing.T) {
	srv, ts := newTestServer(t, nil)

	conn, hello, mount := connect(t, ts)
	btnEID := createdEID(t, mount, "button")
	sess := getSessionEventually(t, srv, hello.SessionID)

	sendEvent(t, conn, protocol.NewClickEvent(1, btnEID))
	readPatchesFrame(t, conn) // seq 2

	conn.Close()
	waitForClosed(t, sess)

	// Reconnect claiming we only applied the mount frame.
	conn2 := dialWS(t, wsURL(t, ts.URL))
	resume := protocol.NewClientHello()
	resume.SessionID = hello.SessionID
	resume.LastSeq = 1
	writeClientHello(t, conn2, resume)

	hello2 := readServerHello(t, conn2)
	if hello2.Status != protocol.HandshakeOK {
		t.Fatalf("resume status = %v, want %v", hello2.Status, protocol.HandshakeOK)
	}
	if hello2.SessionID != hello.SessionID {
		t.Errorf("resumed session ID = %q, want %q", hello2.SessionID, hello.SessionID)
	}
	if hello2.NextSeq != 3 {
		t.Errorf("resumed NextSeq = %d, want 3", hello2.NextSeq)
	}

	replay := readPatchesFrame(t, conn2)
	if replay.Seq != 2 {
		t.Fatalf("replayed frame seq = %d, want 2", replay.Seq)
	}

	// The restarted loops must keep dispatching.
	sendEvent(t, conn2, protocol.NewClickEvent(2, btnEID))
	pf := readPatchesFrame(t, conn2)
	if pf.Seq != 3 {
		t.Errorf("post-resume frame seq = %d, want 3", pf.Seq)
	}
	found := false
	for _, p := range pf.Patches {
		if p.Op == protocol.PatchSetText && p.Value == "count: 2" {
			found = true
		}
	}
	if !found {
		t.Error("post-resume click did not update the count")
	}
}

func TestSession_Resume_GapFallsBackToFullResync(t *testing.T) {
	sessionConfig := DefaultSessionConfig()
	sessionConfig.MaxPatchHistory = 1
	srv, ts := newTestServer(t, DefaultConfig().WithSessionConfig(sessionConfig))

	conn, hello, mount := connect(t, ts)
	btnEID := createdEID(t, mount, "button")
	sess := getSessionEventually(t, srv, hello.SessionID)

	sendEvent(t, conn, protocol.NewClickEvent(1, btnEID))
	readPatchesFrame(t, conn) // seq 2, evicts seq 1 from history

	conn.Close()
	waitForClosed(t, sess)

	// LastSeq 0 needs seq 1, which the ring no longer holds.
	conn2 := dialWS(t, wsURL(t, ts.URL))
	resume := protocol.NewClientHello()
	resume.SessionID = hello.SessionID
	resume.LastSeq = 0
	writeClientHello(t, conn2, resume)

	hello2 := readServerHello(t, conn2)
	if hello2.Status != protocol.HandshakeOK {
		t.Fatalf("resume status = %v, want %v", hello2.Status, protocol.HandshakeOK)
	}

	ct, payload := readControl(t, conn2)
	if ct != protocol.ControlResyncFull {
		t.Fatalf("control type = %v, want %v", ct, protocol.ControlResyncFull)
	}
	resp, ok := payload.(*protocol.ResyncResponse)
	if !ok {
		t.Fatalf("payload type = %T, want *protocol.ResyncResponse", payload)
	}
	if !strings.Contains(resp.HTML, "count: 1") {
		t.Errorf("resync HTML missing current state: %q", resp.HTML)
	}
}

func TestSession_Restore_FromSnapshotStore(t *testing.T) {
	store := snapshot.NewMemoryStore()
	config := DefaultConfig().WithSnapshotStore(store)
	srv, ts := newTestServer(t, config)

	conn, hello, mount := connect(t, ts)
	btnEID := createdEID(t, mount, "button")
	sess := getSessionEventually(t, srv, hello.SessionID)

	sendEvent(t, conn, protocol.NewClickEvent(1, btnEID))
	readPatchesFrame(t, conn) // seq 2

	conn.Close()
	waitForClosed(t, sess)

	// The event loop writes the snapshot on its way out.
	waitForCondition(t, "snapshot save", func() bool {
		data, err := store.Load(context.Background(), hello.SessionID)
		return err == nil && data != nil
	})

	// Simulate a restart: the live session is gone, only the snapshot
	// survives.
	srv.removeSession(sess)
	sess.destroy()

	conn2 := dialWS(t, wsURL(t, ts.URL))
	resume := protocol.NewClientHello()
	resume.SessionID = hello.SessionID
	resume.LastSeq = 2
	writeClientHello(t, conn2, resume)

	hello2 := readServerHello(t, conn2)
	if hello2.Status != protocol.HandshakeOK {
		t.Fatalf("restore status = %v, want %v", hello2.Status, protocol.HandshakeOK)
	}
	if hello2.SessionID != hello.SessionID {
		t.Errorf("restored session ID = %q, want %q", hello2.SessionID, hello.SessionID)
	}
	if hello2.NextSeq != 3 {
		t.Errorf("restored NextSeq = %d, want 3", hello2.NextSeq)
	}

	ct, payload := readControl(t, conn2)
	if ct != protocol.ControlResyncFull {
		t.Fatalf("control type = %v, want %v", ct, protocol.ControlResyncFull)
	}
	resp := payload.(*protocol.ResyncResponse)
	if !strings.Contains(resp.HTML, "count: 1") {
		t.Errorf("restored HTML missing durable state: %q", resp.HTML)
	}

	sess2 := getSessionEventually(t, srv, hello.SessionID)
	if sess2 == sess {
		t.Fatal("expected a fresh session object after restore")
	}
	if !sess2.Restored() {
		t.Error("Restored() = false, want true")
	}

	// The restored handler picks up from the durable count.
	btn := sess2.Document().GetElementByID("inc")
	if btn == nil {
		t.Fatal("restored document has no button")
	}
	sendEvent(t, conn2, protocol.NewClickEvent(1, btn.EID()))
	pf := readPatchesFrame(t, conn2)
	if pf.Seq != 3 {
		t.Errorf("post-restore frame seq = %d, want 3", pf.Seq)
	}
	found := false
	for _, p := range pf.Patches {
		if p.Op == protocol.PatchSetText && p.Value == "count: 2" {
			found = true
		}
	}
	if !found {
		t.Error("post-restore click did not continue from the durable count")
	}
}

func TestSession_Restore_ExpiredSnapshot(t *testing.T) {
	store := snapshot.NewMemoryStore()
	config := DefaultConfig().WithSnapshotStore(store)
	config.ResumeWindow = 75 * time.Millisecond
	srv, ts := newTestServer(t, config)

	conn, hello, _ := connect(t, ts)
	sess := getSessionEventually(t, srv, hello.SessionID)

	conn.Close()
	waitForClosed(t, sess)
	waitForCondition(t, "snapshot save", func() bool {
		data, err := store.Load(context.Background(), hello.SessionID)
		return err == nil && data != nil
	})

	srv.removeSession(sess)
	sess.destroy()
	time.Sleep(150 * time.Millisecond)

	conn2 := dialWS(t, wsURL(t, ts.URL))
	resume := protocol.NewClientHello()
	resume.SessionID = hello.SessionID
	writeClientHello(t, conn2, resume)

	hello2 := readServerHello(t, conn2)
	if hello2.Status != protocol.HandshakeSessionExpired {
		t.Errorf("status = %v, want %v", hello2.Status, protocol.HandshakeSessionExpired)
	}
}

func TestSession_ClientClose_MarksDiscard(t *testing.T) {
	srv, ts := newTestServer(t, nil)

	conn, hello, _ := connect(t, ts)
	sess := getSessionEventually(t, srv, hello.SessionID)

	ct, payload := protocol.NewClose(protocol.CloseNormal, "done")
	sendControl(t, conn, ct, payload)

	waitForClosed(t, sess)
	waitForCondition(t, "discard flag", func() bool { return sess.discard.Load() })
}

func TestSession_Disconnect_KeepsSessionForResume(t *testing.T) {
	srv, ts := newTestServer(t, nil)

	conn, hello, _ := connect(t, ts)
	sess := getSessionEventually(t, srv, hello.SessionID)

	conn.Close()
	waitForClosed(t, sess)

	if sess.discard.Load() {
		t.Error("plain disconnect must not discard the session")
	}
	if srv.Session(hello.SessionID) == nil {
		t.Error("session evicted from registry on disconnect")
	}
}
