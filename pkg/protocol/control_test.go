package protocol

import "testing"

func TestPingPongRoundTrip(t *testing.T) {
	ct, payload := NewPing(1724572800123)
	decodedType, decodedPayload, err := DecodeControl(EncodeControl(ct, payload))
	if err != nil {
		t.Fatalf("DecodeControl() error = %v", err)
	}
	if decodedType != ControlPing {
		t.Errorf("type = %v, want Ping", decodedType)
	}
	pp, ok := decodedPayload.(*PingPong)
	if !ok || pp.Timestamp != 1724572800123 {
		t.Errorf("payload = %+v, want timestamp 1724572800123", decodedPayload)
	}

	ct, payload = NewPong(pp.Timestamp)
	decodedType, _, err = DecodeControl(EncodeControl(ct, payload))
	if err != nil || decodedType != ControlPong {
		t.Errorf("pong round trip: type %v err %v", decodedType, err)
	}
}

func TestResyncRequestRoundTrip(t *testing.T) {
	ct, payload := NewResyncRequest(55)
	decodedType, decodedPayload, err := DecodeControl(EncodeControl(ct, payload))
	if err != nil {
		t.Fatalf("DecodeControl() error = %v", err)
	}
	if decodedType != ControlResyncRequest {
		t.Errorf("type = %v, want ResyncRequest", decodedType)
	}
	rr, ok := decodedPayload.(*ResyncRequest)
	if !ok || rr.LastSeq != 55 {
		t.Errorf("payload = %+v, want LastSeq 55", decodedPayload)
	}
}

func TestResyncPatchesRoundTrip(t *testing.T) {
	patches := []Patch{
		NewMoveNodePatch("e4", "e2", 1),
		NewSetTextPatch("e9", "restored"),
	}
	ct, payload := NewResyncPatches(10, patches)
	decodedType, decodedPayload, err := DecodeControl(EncodeControl(ct, payload))
	if err != nil {
		t.Fatalf("DecodeControl() error = %v", err)
	}
	if decodedType != ControlResyncPatches {
		t.Errorf("type = %v, want ResyncPatches", decodedType)
	}
	rr, ok := decodedPayload.(*ResyncResponse)
	if !ok {
		t.Fatalf("payload type = %T", decodedPayload)
	}
	if rr.FromSeq != 10 || len(rr.Patches) != 2 {
		t.Errorf("got FromSeq %d with %d patches", rr.FromSeq, len(rr.Patches))
	}
	if rr.Patches[0].Op != PatchMoveNode || rr.Patches[0].EID != "e4" {
		t.Errorf("patch 0 = %+v", rr.Patches[0])
	}
}

func TestResyncFullRoundTrip(t *testing.T) {
	ct, payload := NewResyncFull("<body data-eid=\"e0\"></body>")
	decodedType, decodedPayload, err := DecodeControl(EncodeControl(ct, payload))
	if err != nil {
		t.Fatalf("DecodeControl() error = %v", err)
	}
	if decodedType != ControlResyncFull {
		t.Errorf("type = %v, want ResyncFull", decodedType)
	}
	rr, ok := decodedPayload.(*ResyncResponse)
	if !ok || rr.HTML != "<body data-eid=\"e0\"></body>" {
		t.Errorf("payload = %+v", decodedPayload)
	}
}

func TestCloseRoundTrip(t *testing.T) {
	ct, payload := NewClose(CloseServerShutdown, "draining")
	decodedType, decodedPayload, err := DecodeControl(EncodeControl(ct, payload))
	if err != nil {
		t.Fatalf("DecodeControl() error = %v", err)
	}
	if decodedType != ControlClose {
		t.Errorf("type = %v, want Close", decodedType)
	}
	cm, ok := decodedPayload.(*CloseMessage)
	if !ok || cm.Reason != CloseServerShutdown || cm.Message != "draining" {
		t.Errorf("payload = %+v", decodedPayload)
	}
}

func TestDecodeControlUnknownType(t *testing.T) {
	e := NewEncoder()
	e.WriteByte(0x66)
	ct, payload, err := DecodeControl(e.Bytes())
	if err != nil {
		t.Fatalf("DecodeControl() error = %v", err)
	}
	if ct != ControlType(0x66) || payload != nil {
		t.Errorf("got type %v payload %v, want raw type with nil payload", ct, payload)
	}
}
