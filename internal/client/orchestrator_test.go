package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/castform/castform/internal/client/signalclient"
	"github.com/castform/castform/internal/core"
	"github.com/castform/castform/internal/domain"
)

type sentMsg struct {
	to      domain.ConnectionID
	payload negotiation
}

type fakeSignaler struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (f *fakeSignaler) Signal(to domain.ConnectionID, payload json.RawMessage) error {
	var msg negotiation
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentMsg{to: to, payload: msg})
	f.mu.Unlock()
	return nil
}

func (f *fakeSignaler) byKind(kind string) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMsg
	for _, m := range f.sent {
		if m.payload.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeSignaler) {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "castform")
	if err != nil {
		t.Fatalf("local track: %v", err)
	}
	sig := &fakeSignaler{}
	o := NewOrchestrator(sig, webrtc.Configuration{}, []webrtc.TrackLocal{track})
	t.Cleanup(o.CloseAll)
	return o, sig
}

func arrived(remote domain.ConnectionID, uid domain.UserID, initiator bool) signalclient.Event {
	return signalclient.Event{
		Type: core.EvtPeerArrived,
		PeerArrived: &core.PeerArrived{
			Type:               core.EvtPeerArrived,
			RemoteConnectionID: remote,
			Participant: domain.Participant{
				UserID: uid, DisplayName: string(uid), ConnectionID: remote,
			},
			IsInitiator: initiator,
		},
	}
}

func signalFrom(from domain.ConnectionID, msg negotiation) signalclient.Event {
	payload, _ := json.Marshal(msg)
	return signalclient.Event{
		Type:   core.EvtSignal,
		Signal: &core.SignalDeliver{Type: core.EvtSignal, From: from, Payload: payload},
	}
}

func TestInitiatorSendsOffer(t *testing.T) {
	o, sig := newTestOrchestrator(t)
	o.HandleEvent(context.Background(), arrived("b", "user-b", true))

	offers := sig.byKind("offer")
	if len(offers) != 1 {
		t.Fatalf("expected one offer, got %d", len(offers))
	}
	if offers[0].to != "b" || offers[0].payload.SDP == "" {
		t.Fatalf("offer malformed: %+v", offers[0])
	}
	if states := o.PeerStates(); states["b"] != LinkNegotiating {
		t.Fatalf("link state %v", states["b"])
	}
}

func TestNonInitiatorWaitsForOffer(t *testing.T) {
	o, sig := newTestOrchestrator(t)
	o.HandleEvent(context.Background(), arrived("b", "user-b", false))

	if len(sig.byKind("offer")) != 0 {
		t.Fatal("non-initiator must not send an offer")
	}
	if states := o.PeerStates(); states["b"] != LinkNegotiating {
		t.Fatalf("link state %v", states["b"])
	}
}

func TestDuplicatePeerArrivedIgnored(t *testing.T) {
	o, sig := newTestOrchestrator(t)
	ctx := context.Background()
	o.HandleEvent(ctx, arrived("b", "user-b", true))
	o.HandleEvent(ctx, arrived("b", "user-b", true))

	if n := len(sig.byKind("offer")); n != 1 {
		t.Fatalf("duplicate arrival renegotiated: %d offers", n)
	}
	if n := len(o.PeerStates()); n != 1 {
		t.Fatalf("duplicate arrival created a second link: %d", n)
	}
}

func TestResponderAnswersRealOffer(t *testing.T) {
	ctx := context.Background()
	initiator, initiatorSig := newTestOrchestrator(t)
	responder, responderSig := newTestOrchestrator(t)

	initiator.HandleEvent(ctx, arrived("b", "user-b", true))
	offers := initiatorSig.byKind("offer")
	if len(offers) != 1 {
		t.Fatalf("no offer produced: %d", len(offers))
	}

	responder.HandleEvent(ctx, arrived("a", "user-a", false))
	responder.HandleEvent(ctx, signalFrom("a", offers[0].payload))

	answers := responderSig.byKind("answer")
	if len(answers) != 1 {
		t.Fatalf("expected one answer, got %d", len(answers))
	}
	if answers[0].to != "a" || answers[0].payload.SDP == "" {
		t.Fatalf("answer malformed: %+v", answers[0])
	}

	// Completing the loop must not kill the initiator's link.
	initiator.HandleEvent(ctx, signalFrom("b", answers[0].payload))
	if states := initiator.PeerStates(); states["b"] == LinkClosed {
		t.Fatal("applying a valid answer closed the link")
	}
}

func TestCandidateBeforeRemoteDescriptionIsBuffered(t *testing.T) {
	o, sig := newTestOrchestrator(t)
	ctx := context.Background()
	o.HandleEvent(ctx, arrived("a", "user-a", false))

	o.HandleEvent(ctx, signalFrom("a", negotiation{
		Kind:      "candidate",
		Candidate: &webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 127.0.0.1 9 typ host"},
	}))

	if states := o.PeerStates(); states["a"] != LinkNegotiating {
		t.Fatalf("early candidate changed link state to %v", states["a"])
	}
	if len(sig.sent) != 0 {
		t.Fatalf("early candidate triggered sends: %+v", sig.sent)
	}
}

func TestNoAnswerWhenBufferedCandidateIsBad(t *testing.T) {
	ctx := context.Background()
	initiator, initiatorSig := newTestOrchestrator(t)
	responder, responderSig := newTestOrchestrator(t)

	initiator.HandleEvent(ctx, arrived("b", "user-b", true))
	offers := initiatorSig.byKind("offer")
	if len(offers) != 1 {
		t.Fatalf("no offer produced: %d", len(offers))
	}

	// A malformed candidate buffered before the offer makes the flush
	// fail once the remote description lands.
	responder.HandleEvent(ctx, arrived("a", "user-a", false))
	responder.HandleEvent(ctx, signalFrom("a", negotiation{
		Kind:      "candidate",
		Candidate: &webrtc.ICECandidateInit{Candidate: "not a candidate"},
	}))
	responder.HandleEvent(ctx, signalFrom("a", offers[0].payload))

	if n := len(responderSig.byKind("answer")); n != 0 {
		t.Fatalf("answer sent for an abandoned negotiation: %d", n)
	}
	if _, ok := responder.PeerStates()["a"]; ok {
		t.Fatal("failed flush must close the link")
	}
}

func TestSignalForUnknownPeerDropped(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.HandleEvent(context.Background(), signalFrom("ghost", negotiation{Kind: "offer", SDP: "v=0"}))
	if len(o.PeerStates()) != 0 {
		t.Fatal("signal for unknown peer created a link")
	}
}

func TestBadNegotiationPayloadIgnored(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	o.HandleEvent(ctx, arrived("a", "user-a", false))
	o.HandleEvent(ctx, signalclient.Event{
		Type:   core.EvtSignal,
		Signal: &core.SignalDeliver{Type: core.EvtSignal, From: "a", Payload: json.RawMessage(`not json`)},
	})
	if states := o.PeerStates(); states["a"] != LinkNegotiating {
		t.Fatalf("bad payload changed link state to %v", states["a"])
	}
}

func TestGarbageOfferClosesOnlyThatLink(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	o.HandleEvent(ctx, arrived("a", "user-a", false))
	o.HandleEvent(ctx, arrived("b", "user-b", true))

	o.HandleEvent(ctx, signalFrom("a", negotiation{Kind: "offer", SDP: "garbage"}))

	states := o.PeerStates()
	if _, ok := states["a"]; ok {
		t.Fatal("failed negotiation must remove the link")
	}
	if states["b"] == LinkClosed {
		t.Fatal("failure leaked to an unrelated link")
	}
}

func TestPeerLeftTearsDownLink(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	var leftUser domain.UserID
	o.OnPeerLeft = func(u domain.UserID) { leftUser = u }

	o.HandleEvent(ctx, arrived("b", "user-b", true))
	o.HandleEvent(ctx, signalclient.Event{
		Type:     core.EvtPeerLeft,
		PeerLeft: &core.PeerLeft{Type: core.EvtPeerLeft, RemoteConnectionID: "b", UserID: "user-b"},
	})

	if len(o.PeerStates()) != 0 {
		t.Fatal("link survived peer-left")
	}
	if leftUser != "user-b" {
		t.Fatalf("OnPeerLeft got %q", leftUser)
	}
}

func TestSessionEndedClosesEverything(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	ended := false
	o.OnSessionEnd = func() { ended = true }

	o.HandleEvent(ctx, arrived("a", "user-a", true))
	o.HandleEvent(ctx, arrived("b", "user-b", true))
	o.HandleEvent(ctx, signalclient.Event{Type: core.EvtSessionEnded, SessionEnded: &core.SessionEnded{}})

	if len(o.PeerStates()) != 0 {
		t.Fatal("links survived session-ended")
	}
	if !ended {
		t.Fatal("OnSessionEnd not fired")
	}
}

func TestClosePeerIdempotent(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.HandleEvent(context.Background(), arrived("b", "user-b", true))

	o.ClosePeer("b")
	o.ClosePeer("b")
	o.ClosePeer("never-existed")

	if len(o.PeerStates()) != 0 {
		t.Fatal("link survived close")
	}
}
