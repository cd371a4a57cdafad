package record

import (
	"strings"
	"testing"
	"time"
)

func TestPumpExitsWhenCollectorGone(t *testing.T) {
	d := NewFFmpegDevice("", "")

	// Nobody drains out and its only slot is already taken, the state a
	// release can leave behind after the collection loop has stopped.
	out := make(chan Segment, 1)
	out <- Segment{Data: []byte("stale"), At: time.Now()}
	done := make(chan struct{})
	close(done)

	finished := make(chan struct{})
	go func() {
		d.pump(strings.NewReader("captured bytes"), out, done)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("pump wedged on a full segment channel")
	}
}
