// Package record implements the local recording controller: capture
// device acquisition, segment buffering and finalization into an
// uploadable artifact.
package record

import (
	"errors"
	"time"
)

// ErrDeviceUnavailable means capture could not be acquired: no devices,
// permission denied, or the capture binary missing. Surfaced to the
// caller; never retried automatically.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// SegmentInterval is how often buffered capture data is cut into a
// segment. Segmenting bounds the damage of a crash mid-recording compared
// to one unbounded buffer; partial segments are only assembled on a clean
// stop.
const SegmentInterval = time.Second

// Segment is one interval's worth of encoded capture data.
type Segment struct {
	Data []byte
	At   time.Time
}

// Device abstracts the local capture hardware.
//
// Acquire starts capture and makes Segments live; it fails with
// ErrDeviceUnavailable when the hardware cannot be opened. Release stops
// capture and closes the segment channel. The enable toggles mute the
// corresponding track without stopping capture and never change the
// controller's state machine.
type Device interface {
	Acquire() error
	Segments() <-chan Segment
	SetAudioEnabled(bool)
	SetVideoEnabled(bool)
	Release()
}
