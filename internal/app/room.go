package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/castform/castform/internal/core"
	"github.com/castform/castform/internal/domain"
	"github.com/castform/castform/internal/metrics"
)

type roomMember struct {
	p    *domain.Participant
	conn core.SignalConn
}

// Room is the live presence set for one session. All mutations and the
// notifications they imply run inside the room's critical section, so two
// concurrent joins can never observe each other half-applied and every
// newcomer sees a consistent snapshot of existing peers.
//
// Sends inside the lock are safe because SignalConn.TrySend never blocks.
type Room struct {
	id     domain.SessionID
	hostID domain.UserID

	mu      sync.Mutex
	closed  bool
	order   []domain.ConnectionID // join order
	members map[domain.ConnectionID]*roomMember
}

func newRoom(id domain.SessionID, hostID domain.UserID) *Room {
	return &Room{
		id:      id,
		hostID:  hostID,
		members: make(map[domain.ConnectionID]*roomMember),
	}
}

func (r *Room) ID() domain.SessionID { return r.id }

// AddParticipant runs the whole arrival protocol atomically:
// existing members are told about the newcomer (isInitiator=false for
// them), the newcomer is inserted, then the newcomer is told about each
// pre-existing member (isInitiator=true). The newcomer always initiates,
// so each unordered pair has exactly one initiator.
//
// Returns false if the room was already closed; the caller retries against
// a fresh room. A stale entry for the same user id is replaced, not
// duplicated.
func (r *Room) AddParticipant(p *domain.Participant, conn core.SignalConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}

	// Rejoin race: drop the old link's entry for this user first.
	for _, cid := range r.order {
		if m, ok := r.members[cid]; ok && m.p.UserID == p.UserID {
			r.removeLocked(cid)
			break
		}
	}

	arrived, _ := core.Encode(core.NewPeerArrived(p.ConnectionID, *p, false))
	for _, cid := range r.order {
		r.sendLocked(cid, arrived)
	}

	r.members[p.ConnectionID] = &roomMember{p: p, conn: conn}
	r.order = append(r.order, p.ConnectionID)

	for _, cid := range r.order {
		if cid == p.ConnectionID {
			continue
		}
		m := r.members[cid]
		frame, _ := core.Encode(core.NewPeerArrived(cid, *m.p, true))
		if err := conn.TrySend(frame); err != nil {
			metrics.DeliveriesDropped.Inc()
		}
	}

	log.Info().Str("module", "app.room").Str("session", string(r.id)).
		Str("cid", string(p.ConnectionID)).Str("user", string(p.UserID)).
		Bool("host", p.IsHost).Int("count", len(r.order)).Msg("participant joined")
	return true
}

// RemoveAndNotify takes the participant out and tells everyone left.
// Absent connection ids are a no-op with no broadcast, which is what makes
// leave/disconnect idempotent. Reports whether the room is now empty.
func (r *Room) RemoveAndNotify(cid domain.ConnectionID) (removed *domain.Participant, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[cid]
	if !ok {
		return nil, len(r.order) == 0
	}
	r.removeLocked(cid)

	left, _ := core.Encode(core.NewPeerLeft(cid, m.p.UserID))
	for _, rest := range r.order {
		r.sendLocked(rest, left)
	}

	log.Info().Str("module", "app.room").Str("session", string(r.id)).
		Str("cid", string(cid)).Int("count", len(r.order)).Msg("participant left")
	return m.p, len(r.order) == 0
}

// End terminates the room on behalf of cid. Host authority is re-verified
// from the room's own entry, never from client input. On success every
// member (host included) gets session-ended, the membership is cleared
// unconditionally and the room is marked closed. Returns the connection
// ids that were members so the caller can clear their registry state.
func (r *Room) End(cid domain.ConnectionID) ([]domain.ConnectionID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[cid]
	if !ok || !m.p.IsHost {
		return nil, ErrNotHost
	}

	ended, _ := core.Encode(core.NewSessionEnded())
	for _, member := range r.order {
		r.sendLocked(member, ended)
	}

	evicted := r.order
	r.order = nil
	r.members = make(map[domain.ConnectionID]*roomMember)
	r.closed = true

	log.Info().Str("module", "app.room").Str("session", string(r.id)).
		Str("cid", string(cid)).Int("evicted", len(evicted)).Msg("session ended by host")
	return evicted, nil
}

// SendTo delivers a frame to one member if it is still present.
func (r *Room) SendTo(cid domain.ConnectionID, frame core.Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[cid]
	if !ok {
		return false
	}
	if err := m.conn.TrySend(frame); err != nil {
		metrics.DeliveriesDropped.Inc()
		return false
	}
	return true
}

// Snapshot returns the participants in join order. Read-only copies.
func (r *Room) Snapshot() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Participant, 0, len(r.order))
	for _, cid := range r.order {
		out = append(out, *r.members[cid].p)
	}
	return out
}

func (r *Room) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func (r *Room) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// removeLocked deletes cid from both indices. Caller holds r.mu.
func (r *Room) removeLocked(cid domain.ConnectionID) {
	delete(r.members, cid)
	for i, c := range r.order {
		if c == cid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// sendLocked is fire-and-forget; a gone or slow member is just a dropped
// delivery, never an error. Caller holds r.mu.
func (r *Room) sendLocked(cid domain.ConnectionID, frame core.Frame) {
	m, ok := r.members[cid]
	if !ok {
		return
	}
	if err := m.conn.TrySend(frame); err != nil {
		metrics.DeliveriesDropped.Inc()
	}
}
