package domain

import "time"

// RecordingType distinguishes what a stored artifact contains.
type RecordingType string

const (
	RecordingAudio RecordingType = "audio"
	RecordingVideo RecordingType = "video"
)

// Recording is the persisted metadata row for one uploaded artifact.
// The bytes themselves live behind a storage.Provider path.
type Recording struct {
	ID          string        `json:"id"`
	SessionID   SessionID     `json:"sessionId"`
	Type        RecordingType `json:"type"`
	StoragePath string        `json:"storagePath"`
	Metadata    string        `json:"metadata,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}
