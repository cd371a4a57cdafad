package domain

// ConnectionID identifies one transport-level link. Assigned at connect
// time, never reused, never persisted.
type ConnectionID string

// Participant represents one user's presence inside one session.
// No transport or lifecycle logic here.
type Participant struct {
	UserID       UserID       `json:"id"`
	DisplayName  string       `json:"name"`
	ConnectionID ConnectionID `json:"connectionId"`
	IsHost       bool         `json:"isHost"`
	AudioEnabled bool         `json:"audioEnabled"`
	VideoEnabled bool         `json:"videoEnabled"`
	IsConnected  bool         `json:"isConnected"`
}

// NewParticipant avoids raw literals in adapters and keeps construction
// obvious. Audio and video start enabled, matching what clients assume.
func NewParticipant(user *User, conn ConnectionID, isHost bool) *Participant {
	return &Participant{
		UserID:       user.ID,
		DisplayName:  user.Name,
		ConnectionID: conn,
		IsHost:       isHost,
		AudioEnabled: true,
		VideoEnabled: true,
		IsConnected:  true,
	}
}
