package core

// Frame is a raw encoded payload going over a signaling transport.
type Frame []byte

// SignalConn abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
// TrySend never blocks: a full send buffer returns an error and the
// frame is dropped (delivery is best-effort by design).
type SignalConn interface {
	TrySend(Frame) error
	Close()
}
