package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/castform/castform/internal/core"
	"github.com/castform/castform/internal/domain"
	"github.com/castform/castform/internal/metrics"
)

type connEntry struct {
	Conn        core.SignalConn
	Cancel      context.CancelFunc
	Session     domain.SessionID
	Participant *domain.Participant
}

// Registry maps transient connection ids to their transport endpoint and,
// once joined, to their participant identity and session. It is the single
// source of truth for "which session is this link in".
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnectionID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ConnectionID]*connEntry)}
}

// Register binds a fresh transport link. Called once per connection at
// upgrade time, before any join.
func (r *Registry) Register(cid domain.ConnectionID, conn core.SignalConn, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[cid] = &connEntry{Conn: conn, Cancel: cancel}
	metrics.ConnectedParticipants.Set(float64(len(r.conns)))
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("connection registered")
}

func (r *Registry) Conn(cid domain.ConnectionID) (core.SignalConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}

// SetSession records which session a connection has joined.
func (r *Registry) SetSession(cid domain.ConnectionID, sid domain.SessionID, p *domain.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[cid]; ok {
		e.Session = sid
		e.Participant = p
	}
}

// ClearSession drops the session association but keeps the link alive, so
// the same connection can join another session later.
func (r *Registry) ClearSession(cid domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[cid]; ok {
		e.Session = ""
		e.Participant = nil
	}
}

func (r *Registry) SessionOf(cid domain.ConnectionID) (domain.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok || e.Session == "" {
		return "", false
	}
	return e.Session, true
}

func (r *Registry) ParticipantOf(cid domain.ConnectionID) (*domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok || e.Participant == nil {
		return nil, false
	}
	return e.Participant, true
}

// Remove tears the entry down. This is the single cleanup point for the
// registry: both explicit leave and abrupt drop funnel through it, so no
// orphaned entries survive either path. Idempotent.
func (r *Registry) Remove(cid domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	delete(r.conns, cid)
	metrics.ConnectedParticipants.Set(float64(len(r.conns)))
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("connection removed")
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
