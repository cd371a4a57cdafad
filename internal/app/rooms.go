package app

import (
	"sync"

	"github.com/castform/castform/internal/domain"
	"github.com/castform/castform/internal/metrics"
)

// RoomTable maps session ids to live rooms. Created lazily on first join,
// removed as soon as the last participant is gone. The table lock only
// guards the map; room state is guarded by each room's own lock, so joins
// to different rooms never serialize against each other.
//
// Lock order is always table then room.
type RoomTable struct {
	mu    sync.RWMutex
	rooms map[domain.SessionID]*Room
}

func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: make(map[domain.SessionID]*Room)}
}

// GetOrCreate returns the live room for sid, replacing any room that was
// closed but not yet unlinked (end-session marks closed under the room
// lock before the table entry goes away).
func (t *RoomTable) GetOrCreate(sid domain.SessionID, hostID domain.UserID) *Room {
	t.mu.RLock()
	room, ok := t.rooms[sid]
	t.mu.RUnlock()
	if ok && !room.isClosed() {
		return room
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if room, ok = t.rooms[sid]; ok && !room.isClosed() {
		return room
	}
	room = newRoom(sid, hostID)
	t.rooms[sid] = room
	metrics.OpenRooms.Set(float64(len(t.rooms)))
	return room
}

func (t *RoomTable) Get(sid domain.SessionID) (*Room, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	room, ok := t.rooms[sid]
	return room, ok
}

// DeleteIfEmpty unlinks the room when no participants remain. Checked
// under both locks so a join racing with the last leave either lands
// before the check or retries against a fresh room.
func (t *RoomTable) DeleteIfEmpty(sid domain.SessionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	room, ok := t.rooms[sid]
	if !ok {
		return
	}
	room.mu.Lock()
	if len(room.order) == 0 {
		room.closed = true
		delete(t.rooms, sid)
	}
	room.mu.Unlock()
	metrics.OpenRooms.Set(float64(len(t.rooms)))
}

// Delete unlinks the given room after a host terminated it. The identity
// check under the table lock protects a fresh room that a racing join
// created after the old one was marked closed: only the ended room is
// ever removed.
func (t *RoomTable) Delete(sid domain.SessionID, room *Room) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rooms[sid] != room {
		return
	}
	delete(t.rooms, sid)
	metrics.OpenRooms.Set(float64(len(t.rooms)))
}

func (t *RoomTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}
