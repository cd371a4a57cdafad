package app

import "errors"

var (
	// ErrSessionNotFound means join was attempted against a session id the
	// store does not know. Terminal for that join attempt.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotHost means end-session came from a connection whose room entry
	// is not flagged as host. The check runs against the room's own record,
	// never against client input.
	ErrNotHost = errors.New("not the session host")

	// ErrNotConnected means an operation referenced a connection id the
	// registry has no entry for.
	ErrNotConnected = errors.New("connection not registered")
)
