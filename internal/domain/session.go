package domain

import "time"

type SessionID string

// Session is a named multi-party meeting. Persisted by the store; the live
// presence set for it lives in app.RoomTable.
type Session struct {
	ID        SessionID `json:"id"`
	Name      string    `json:"name"`
	HostID    UserID    `json:"hostId"`
	JoinCode  string    `json:"joinCode"`
	CreatedAt time.Time `json:"createdAt"`
}
