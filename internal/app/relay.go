package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/castform/castform/internal/core"
	"github.com/castform/castform/internal/domain"
	"github.com/castform/castform/internal/metrics"
	"github.com/castform/castform/internal/store"
)

// SessionLookup is the external collaborator that resolves a session id to
// its persisted row. The relay only needs reads.
type SessionLookup interface {
	SessionByID(ctx context.Context, id domain.SessionID) (*domain.Session, error)
}

// Relay is the session presence and signaling core. It owns no transport:
// adapters register connections with the Registry and dispatch decoded
// commands here; outbound events go back through each member's SignalConn.
// All operations are in-memory and non-blocking. A process restart loses
// all room state; clients re-join from scratch.
type Relay struct {
	Registry *Registry
	Rooms    *RoomTable
	Sessions SessionLookup
}

func NewRelay(reg *Registry, rooms *RoomTable, sessions SessionLookup) *Relay {
	return &Relay{Registry: reg, Rooms: rooms, Sessions: sessions}
}

// Join puts a registered connection into the room for sid. The session
// must exist in the store; host status is derived by comparing the user id
// to the stored host id and fixed for the participant's lifetime.
func (rl *Relay) Join(ctx context.Context, cid domain.ConnectionID, sid domain.SessionID, user domain.User) error {
	conn, ok := rl.Registry.Conn(cid)
	if !ok {
		return ErrNotConnected
	}

	// A connection can only be in one room; joining again moves it.
	if _, joined := rl.Registry.SessionOf(cid); joined {
		rl.Leave(cid)
	}

	sess, err := rl.Sessions.SessionByID(ctx, sid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	p := domain.NewParticipant(&user, cid, user.ID == sess.HostID)

	// A closed room can linger between end-session and table unlink;
	// retry lands on a fresh one.
	for {
		room := rl.Rooms.GetOrCreate(sid, sess.HostID)
		if room.AddParticipant(p, conn) {
			break
		}
	}
	rl.Registry.SetSession(cid, sid, p)
	metrics.JoinsTotal.Inc()
	return nil
}

// RelaySignal forwards an opaque negotiation payload to another connection
// in the sender's room. The payload is never parsed here; the relay is a
// dumb pipe. A gone target means the frame is dropped silently; the
// remote may have already disconnected, which is expected, not an error.
func (rl *Relay) RelaySignal(from, to domain.ConnectionID, payload json.RawMessage) bool {
	sid, ok := rl.Registry.SessionOf(from)
	if !ok {
		return false
	}
	room, ok := rl.Rooms.Get(sid)
	if !ok {
		return false
	}
	frame, _ := core.Encode(core.SignalDeliver{Type: core.EvtSignal, From: from, Payload: payload})
	if !room.SendTo(to, frame) {
		log.Debug().Str("module", "app.relay").Str("from", string(from)).
			Str("to", string(to)).Msg("signal dropped, target gone")
		return false
	}
	metrics.SignalsRelayed.Inc()
	return true
}

// Leave removes the connection from its room, notifies the remaining
// members and unlinks the room if it is now empty. Idempotent: calling it
// for a connection that is not in any room does nothing and broadcasts
// nothing.
func (rl *Relay) Leave(cid domain.ConnectionID) {
	sid, ok := rl.Registry.SessionOf(cid)
	if !ok {
		return
	}
	if room, ok := rl.Rooms.Get(sid); ok {
		if removed, _ := room.RemoveAndNotify(cid); removed != nil {
			metrics.LeavesTotal.Inc()
		}
		rl.Rooms.DeleteIfEmpty(sid)
	}
	rl.Registry.ClearSession(cid)
}

// EndSession terminates the caller's room for everyone. Authority is the
// room's own host flag for this connection, re-checked at call time.
func (rl *Relay) EndSession(cid domain.ConnectionID) error {
	sid, ok := rl.Registry.SessionOf(cid)
	if !ok {
		return ErrNotConnected
	}
	room, ok := rl.Rooms.Get(sid)
	if !ok {
		return ErrNotConnected
	}
	evicted, err := room.End(cid)
	if err != nil {
		return err
	}
	for _, member := range evicted {
		rl.Registry.ClearSession(member)
	}
	rl.Rooms.Delete(sid, room)
	return nil
}

// Disconnect handles transport teardown. Same room semantics as Leave,
// plus it is the single place responsible for registry cleanup, so no
// orphaned entries survive either the explicit-leave or abrupt-drop path.
func (rl *Relay) Disconnect(cid domain.ConnectionID) {
	rl.Leave(cid)
	rl.Registry.Remove(cid)
}
