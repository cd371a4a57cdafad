package record

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeDevice struct {
	mu          sync.Mutex
	failAcquire bool
	acquired    int
	released    int
	audioOn     bool
	videoOn     bool
	segs        chan Segment
}

func (d *fakeDevice) Acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAcquire {
		return ErrDeviceUnavailable
	}
	d.acquired++
	d.segs = make(chan Segment)
	return nil
}

func (d *fakeDevice) Segments() <-chan Segment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.segs
}

func (d *fakeDevice) SetAudioEnabled(on bool) { d.mu.Lock(); d.audioOn = on; d.mu.Unlock() }
func (d *fakeDevice) SetVideoEnabled(on bool) { d.mu.Lock(); d.videoOn = on; d.mu.Unlock() }

func (d *fakeDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released++
}

func (d *fakeDevice) push(data string) {
	d.mu.Lock()
	ch := d.segs
	d.mu.Unlock()
	ch <- Segment{Data: []byte(data), At: time.Now()}
}

// settle gives the collection goroutine time to drain a pushed segment.
func settle() { time.Sleep(50 * time.Millisecond) }

func TestStopWithoutStartIsBenign(t *testing.T) {
	c := NewController(&fakeDevice{})
	art, err := c.Stop()
	if err != nil {
		t.Fatalf("stop without start: %v", err)
	}
	if !art.Empty() {
		t.Fatalf("expected empty artifact, got %+v", art)
	}
	if c.State() != StateIdle {
		t.Fatalf("state moved to %s", c.State())
	}
}

func TestStartCollectAndFinalize(t *testing.T) {
	dev := &fakeDevice{}
	c := NewController(dev)

	start := time.Now()
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.State() != StateCapturing {
		t.Fatalf("state %s after start", c.State())
	}

	dev.push("aaa")
	dev.push("bbb")
	settle()

	art, err := c.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if art.Empty() {
		t.Fatal("expected a sealed artifact")
	}
	if got := string(art.Data); got != "aaabbb" {
		t.Fatalf("segments not assembled in order: %q", got)
	}
	elapsed := time.Since(start)
	if art.Duration <= 0 || art.Duration > elapsed+time.Second {
		t.Fatalf("duration %v out of range (elapsed %v)", art.Duration, elapsed)
	}
	if c.State() != StateFinalized {
		t.Fatalf("state %s after stop", c.State())
	}
	if dev.released != 1 {
		t.Fatalf("device released %d times", dev.released)
	}

	// Finalized means sealed: stopping again is benign and empty.
	art2, err := c.Stop()
	if err != nil || !art2.Empty() {
		t.Fatalf("second stop: %+v, %v", art2, err)
	}
}

func TestStartIsIdempotentWhileActive(t *testing.T) {
	dev := &fakeDevice{}
	c := NewController(dev)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	c.Pause()
	if err := c.Start(); err != nil {
		t.Fatalf("start while paused: %v", err)
	}
	if dev.acquired != 1 {
		t.Fatalf("device acquired %d times", dev.acquired)
	}
	if c.State() != StatePaused {
		t.Fatalf("start while paused must not resume, state %s", c.State())
	}
}

func TestPauseDropsSegmentsResumeKeepsSession(t *testing.T) {
	dev := &fakeDevice{}
	c := NewController(dev)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	dev.push("keep1")
	settle()
	c.Pause()
	if c.State() != StatePaused {
		t.Fatalf("state %s after pause", c.State())
	}

	dev.push("dropped")
	settle()
	time.Sleep(60 * time.Millisecond)

	c.Resume()
	if c.State() != StateCapturing {
		t.Fatalf("state %s after resume", c.State())
	}
	dev.push("keep2")
	settle()

	art, err := c.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if got := string(art.Data); got != "keep1keep2" {
		t.Fatalf("paused segments leaked into artifact: %q", got)
	}
	if art.PausedTotal < 50*time.Millisecond {
		t.Fatalf("paused total %v too small", art.PausedTotal)
	}
	if art.Duration < art.PausedTotal {
		t.Fatalf("wall-clock duration %v below paused total %v", art.Duration, art.PausedTotal)
	}
}

func TestPauseResumeOutsideValidStatesAreNoops(t *testing.T) {
	dev := &fakeDevice{}
	c := NewController(dev)

	c.Pause()
	c.Resume()
	if c.State() != StateIdle {
		t.Fatalf("state %s, want idle", c.State())
	}

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	c.Resume() // capturing, not paused
	if c.State() != StateCapturing {
		t.Fatalf("resume while capturing moved state to %s", c.State())
	}
	if _, err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	c.Pause()
	c.Resume()
	if c.State() != StateFinalized {
		t.Fatalf("finalized state must be terminal, got %s", c.State())
	}
}

func TestStopWhilePausedCountsTrailingPause(t *testing.T) {
	dev := &fakeDevice{}
	c := NewController(dev)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	dev.push("x")
	settle()
	c.Pause()
	time.Sleep(60 * time.Millisecond)

	art, err := c.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if art.PausedTotal < 50*time.Millisecond {
		t.Fatalf("trailing pause not counted: %v", art.PausedTotal)
	}
}

func TestStartDeviceUnavailable(t *testing.T) {
	dev := &fakeDevice{failAcquire: true}
	c := NewController(dev)
	err := c.Start()
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if c.State() != StateIdle {
		t.Fatalf("failed start moved state to %s", c.State())
	}
}

func TestTrackTogglesBypassStateMachine(t *testing.T) {
	dev := &fakeDevice{audioOn: true, videoOn: true}
	c := NewController(dev)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	c.SetAudioEnabled(false)
	c.SetVideoEnabled(false)
	if c.State() != StateCapturing {
		t.Fatalf("toggles changed state to %s", c.State())
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.audioOn || dev.videoOn {
		t.Fatal("toggles not forwarded to the device")
	}
}

func TestAbandonDiscardsSession(t *testing.T) {
	dev := &fakeDevice{}
	c := NewController(dev)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	dev.push("data")
	settle()

	c.Abandon()
	if c.State() != StateIdle {
		t.Fatalf("state %s after abandon", c.State())
	}
	if dev.released != 1 {
		t.Fatalf("device released %d times", dev.released)
	}

	// A fresh recording starts clean.
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	dev.push("fresh")
	settle()
	art, err := c.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if got := string(art.Data); got != "fresh" {
		t.Fatalf("abandoned data leaked: %q", got)
	}
}
