// Package client implements the studio client's peer-connection
// orchestration: one negotiated link per remote participant, driven by
// presence events and relayed negotiation messages.
package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/castform/castform/internal/client/rtc"
	"github.com/castform/castform/internal/client/signalclient"
	"github.com/castform/castform/internal/core"
	"github.com/castform/castform/internal/domain"
)

// Signaler is what the orchestrator needs from the signaling transport.
type Signaler interface {
	Signal(to domain.ConnectionID, payload json.RawMessage) error
}

// Orchestrator reacts to presence events by keeping exactly one PeerLink
// per remote connection. Pion callbacks arrive on their own goroutines, so
// the peer set and every link's state are guarded by one lock.
type Orchestrator struct {
	sig         Signaler
	cfg         webrtc.Configuration
	localTracks []webrtc.TrackLocal

	mu    sync.Mutex
	peers map[domain.ConnectionID]*PeerLink

	// OnRemoteTrack fires on the first (and any further) inbound media
	// from a peer, after the link is marked connected.
	OnRemoteTrack func(user domain.UserID, track *webrtc.TrackRemote)
	OnPeerJoined  func(p domain.Participant)
	OnPeerLeft    func(user domain.UserID)
	OnSessionEnd  func()
}

func NewOrchestrator(sig Signaler, cfg webrtc.Configuration, localTracks []webrtc.TrackLocal) *Orchestrator {
	return &Orchestrator{
		sig:         sig,
		cfg:         cfg,
		localTracks: localTracks,
		peers:       make(map[domain.ConnectionID]*PeerLink),
	}
}

// HandleEvent consumes one decoded signaling event. Callers feed events in
// arrival order; per-peer negotiation order is preserved by doing all
// application of messages here.
func (o *Orchestrator) HandleEvent(ctx context.Context, evt signalclient.Event) {
	switch evt.Type {
	case core.EvtPeerArrived:
		o.handlePeerArrived(ctx, evt.PeerArrived)
	case core.EvtSignal:
		o.handleSignal(evt.Signal)
	case core.EvtPeerLeft:
		o.handlePeerLeft(evt.PeerLeft)
	case core.EvtSessionEnded:
		o.CloseAll()
		if o.OnSessionEnd != nil {
			o.OnSessionEnd()
		}
	case core.EvtError:
		log.Warn().Str("module", "client").Str("message", evt.Err.Message).Msg("server error event")
	}
}

func (o *Orchestrator) handlePeerArrived(ctx context.Context, e *core.PeerArrived) {
	o.mu.Lock()
	defer o.mu.Unlock()

	// Duplicate notification (re-join race): one link per remote
	// connection id, never a second.
	if _, ok := o.peers[e.RemoteConnectionID]; ok {
		log.Debug().Str("module", "client").Str("remote", string(e.RemoteConnectionID)).
			Msg("peer already tracked, ignoring")
		return
	}

	conn, err := rtc.NewConnection(o.cfg, e.RemoteConnectionID)
	if err != nil {
		log.Error().Err(err).Str("module", "client").Str("remote", string(e.RemoteConnectionID)).
			Msg("peer connection create failed")
		return
	}

	link := &PeerLink{
		Remote:      e.RemoteConnectionID,
		Participant: e.Participant,
		Initiator:   e.IsInitiator,
		state:       LinkNegotiating,
		conn:        conn,
	}

	for _, track := range o.localTracks {
		if _, err := conn.AddLocalTrack(track); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("add local track")
		}
	}

	remote := e.RemoteConnectionID
	user := e.Participant.UserID

	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		o.sendNegotiation(remote, negotiation{Kind: "candidate", Candidate: &ci})
	})
	conn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		o.markConnected(remote)
		if o.OnRemoteTrack != nil {
			o.OnRemoteTrack(user, track)
		}
	})
	conn.OnClosed(func() {
		o.ClosePeer(remote)
	})
	conn.Start(ctx)

	o.peers[remote] = link

	if e.IsInitiator {
		offer, err := conn.CreateOffer()
		if err != nil {
			log.Error().Err(err).Str("module", "client").Str("remote", string(remote)).Msg("create offer")
			o.closeLocked(link)
			return
		}
		o.sendNegotiation(remote, negotiation{Kind: "offer", SDP: offer.SDP})
	}

	if o.OnPeerJoined != nil {
		o.OnPeerJoined(e.Participant)
	}
}

// handleSignal applies one relayed negotiation message to the link it
// belongs to. Messages for unknown peers are dropped; the remote may have
// left between send and delivery.
func (o *Orchestrator) handleSignal(e *core.SignalDeliver) {
	var msg negotiation
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("bad negotiation payload")
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	link, ok := o.peers[e.From]
	if !ok || link.state == LinkClosed {
		return
	}

	var err error
	switch msg.Kind {
	case "offer":
		var answer *webrtc.SessionDescription
		answer, err = link.conn.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer, SDP: msg.SDP,
		})
		if err == nil {
			err = o.flushCandidates(link)
		}
		// Answer only a negotiation this side is still in: a failed flush
		// closes the link below, and the remote must not keep going.
		if err == nil {
			o.sendNegotiation(link.Remote, negotiation{Kind: "answer", SDP: answer.SDP})
		}
	case "answer":
		err = link.conn.ApplyAnswer(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer, SDP: msg.SDP,
		})
		if err == nil {
			err = o.flushCandidates(link)
		}
	case "candidate":
		if msg.Candidate == nil {
			return
		}
		if !link.conn.HasRemoteDescription() {
			link.pending = append(link.pending, *msg.Candidate)
			return
		}
		err = link.conn.AddICECandidate(*msg.Candidate)
	default:
		log.Warn().Str("module", "client").Str("kind", msg.Kind).Msg("unknown negotiation kind")
		return
	}

	// Negotiation failures are isolated: only this link closes.
	if err != nil {
		log.Error().Err(err).Str("module", "client").Str("remote", string(link.Remote)).
			Str("kind", msg.Kind).Msg("negotiation failed")
		o.closeLocked(link)
	}
}

func (o *Orchestrator) flushCandidates(link *PeerLink) error {
	for _, ci := range link.pending {
		if err := link.conn.AddICECandidate(ci); err != nil {
			return err
		}
	}
	link.pending = nil
	return nil
}

func (o *Orchestrator) handlePeerLeft(e *core.PeerLeft) {
	o.ClosePeer(e.RemoteConnectionID)
	if o.OnPeerLeft != nil {
		o.OnPeerLeft(e.UserID)
	}
}

func (o *Orchestrator) markConnected(remote domain.ConnectionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if link, ok := o.peers[remote]; ok && link.state == LinkNegotiating {
		link.state = LinkConnected
	}
}

func (o *Orchestrator) sendNegotiation(to domain.ConnectionID, msg negotiation) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := o.sig.Signal(to, payload); err != nil {
		log.Debug().Err(err).Str("module", "client").Str("to", string(to)).Msg("signal send failed")
	}
}

// ClosePeer releases all local resources for one remote. Safe to call for
// peers that never reached connected, and for already-removed peers.
func (o *Orchestrator) ClosePeer(remote domain.ConnectionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if link, ok := o.peers[remote]; ok {
		o.closeLocked(link)
	}
}

func (o *Orchestrator) closeLocked(link *PeerLink) {
	if link.state == LinkClosed {
		return
	}
	link.state = LinkClosed
	link.conn.Close()
	delete(o.peers, link.Remote)
	log.Info().Str("module", "client").Str("remote", string(link.Remote)).Msg("peer link closed")
}

// CloseAll tears down every link unconditionally; used on leave and on
// session-ended.
func (o *Orchestrator) CloseAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, link := range o.peers {
		o.closeLocked(link)
	}
}

// PeerStates reports the current link state per remote connection.
func (o *Orchestrator) PeerStates() map[domain.ConnectionID]LinkState {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[domain.ConnectionID]LinkState, len(o.peers))
	for cid, link := range o.peers {
		out[cid] = link.state
	}
	return out
}
