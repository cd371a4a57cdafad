package signalclient

import (
	"testing"

	"github.com/castform/castform/internal/core"
)

func TestDecodePeerArrived(t *testing.T) {
	raw := []byte(`{"type":"peer-arrived","remoteConnectionId":"c2",` +
		`"participant":{"id":"u2","name":"mira","connectionId":"c2","isHost":true},` +
		`"isInitiator":true}`)
	evt, err := decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Type != core.EvtPeerArrived || evt.PeerArrived == nil {
		t.Fatalf("wrong event: %+v", evt)
	}
	pa := evt.PeerArrived
	if pa.RemoteConnectionID != "c2" || !pa.IsInitiator {
		t.Fatalf("fields mangled: %+v", pa)
	}
	if pa.Participant.UserID != "u2" || !pa.Participant.IsHost {
		t.Fatalf("participant mangled: %+v", pa.Participant)
	}
}

func TestDecodeSignalKeepsPayloadOpaque(t *testing.T) {
	raw := []byte(`{"type":"signal","from":"c1","payload":{"kind":"offer","sdp":"v=0","custom":42}}`)
	evt, err := decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Signal == nil || evt.Signal.From != "c1" {
		t.Fatalf("wrong event: %+v", evt)
	}
	if got := string(evt.Signal.Payload); got != `{"kind":"offer","sdp":"v=0","custom":42}` {
		t.Fatalf("payload not preserved verbatim: %s", got)
	}
}

func TestDecodePeerLeft(t *testing.T) {
	evt, err := decode([]byte(`{"type":"peer-left","remoteConnectionId":"c2","userId":"u2"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.PeerLeft == nil || evt.PeerLeft.RemoteConnectionID != "c2" || evt.PeerLeft.UserID != "u2" {
		t.Fatalf("fields mangled: %+v", evt.PeerLeft)
	}
}

func TestDecodeSessionEndedAndError(t *testing.T) {
	evt, err := decode([]byte(`{"type":"session-ended"}`))
	if err != nil || evt.SessionEnded == nil {
		t.Fatalf("session-ended: %+v, %v", evt, err)
	}

	evt, err = decode([]byte(`{"type":"error","message":"Session not found"}`))
	if err != nil || evt.Err == nil || evt.Err.Message != "Session not found" {
		t.Fatalf("error event: %+v, %v", evt, err)
	}
}

func TestDecodeRejectsUnknownAndMalformed(t *testing.T) {
	if _, err := decode([]byte(`{"type":"who-knows"}`)); err == nil {
		t.Fatal("unknown type accepted")
	}
	if _, err := decode([]byte(`not json`)); err == nil {
		t.Fatal("malformed frame accepted")
	}
}
