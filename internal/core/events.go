package core

import (
	"encoding/json"

	"github.com/castform/castform/internal/domain"
)

// Wire surface of the signaling channel. Every message is a flat JSON
// object with a "type" discriminator; adapters unmarshal the envelope
// first and then the concrete struct.
type EventType string

const (
	// client -> server
	EvtJoinSession  EventType = "join-session"
	EvtSignal       EventType = "signal"
	EvtLeaveSession EventType = "leave-session"
	EvtEndSession   EventType = "end-session"

	// server -> client
	EvtPeerArrived  EventType = "peer-arrived"
	EvtPeerLeft     EventType = "peer-left"
	EvtSessionEnded EventType = "session-ended"
	EvtError        EventType = "error"
)

// Envelope is the minimal view used for dispatch.
type Envelope struct {
	Type EventType `json:"type"`
}

type JoinSession struct {
	Type      EventType        `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	User      domain.User      `json:"user"`
}

// SignalSend carries an opaque negotiation payload from one connection to
// another. The relay never parses Payload.
type SignalSend struct {
	Type    EventType           `json:"type"`
	To      domain.ConnectionID `json:"to"`
	Payload json.RawMessage     `json:"payload"`
}

type PeerArrived struct {
	Type               EventType           `json:"type"`
	RemoteConnectionID domain.ConnectionID `json:"remoteConnectionId"`
	Participant        domain.Participant  `json:"participant"`
	IsInitiator        bool                `json:"isInitiator"`
}

type SignalDeliver struct {
	Type    EventType           `json:"type"`
	From    domain.ConnectionID `json:"from"`
	Payload json.RawMessage     `json:"payload"`
}

type PeerLeft struct {
	Type               EventType           `json:"type"`
	RemoteConnectionID domain.ConnectionID `json:"remoteConnectionId"`
	UserID             domain.UserID       `json:"userId"`
}

type SessionEnded struct {
	Type EventType `json:"type"`
}

type ErrorEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

// Encode marshals an event into a Frame. Marshal of these structs cannot
// fail; the error return keeps call sites honest anyway.
func Encode(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}

func NewPeerArrived(remote domain.ConnectionID, p domain.Participant, initiator bool) PeerArrived {
	return PeerArrived{Type: EvtPeerArrived, RemoteConnectionID: remote, Participant: p, IsInitiator: initiator}
}

func NewPeerLeft(remote domain.ConnectionID, user domain.UserID) PeerLeft {
	return PeerLeft{Type: EvtPeerLeft, RemoteConnectionID: remote, UserID: user}
}

func NewSessionEnded() SessionEnded { return SessionEnded{Type: EvtSessionEnded} }

func NewError(msg string) ErrorEvent { return ErrorEvent{Type: EvtError, Message: msg} }
