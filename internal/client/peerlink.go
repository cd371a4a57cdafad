package client

import (
	"github.com/pion/webrtc/v4"

	"github.com/castform/castform/internal/client/rtc"
	"github.com/castform/castform/internal/domain"
)

// LinkState is the per-peer negotiation state.
type LinkState int32

const (
	LinkIdle LinkState = iota
	LinkNegotiating
	LinkConnected
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkIdle:
		return "idle"
	case LinkNegotiating:
		return "negotiating"
	case LinkConnected:
		return "connected"
	case LinkClosed:
		return "closed"
	}
	return "unknown"
}

// PeerLink is this client's local state for one negotiated media
// connection to one remote participant. Owned exclusively by the
// orchestrator; all mutation happens under the orchestrator's lock.
type PeerLink struct {
	Remote      domain.ConnectionID
	Participant domain.Participant
	Initiator   bool

	state LinkState
	conn  *rtc.Connection

	// Candidates that arrived before the remote description; applied in
	// arrival order once it lands.
	pending []webrtc.ICECandidateInit
}

func (l *PeerLink) State() LinkState { return l.state }

// negotiation is the opaque payload exchanged through the relay. Only
// clients produce and consume it; the relay sees raw bytes.
type negotiation struct {
	Kind      string                   `json:"kind"` // offer | answer | candidate
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}
