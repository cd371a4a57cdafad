package record

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// State is the recording controller's state machine:
// idle -> capturing <-> paused -> finalized.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StatePaused
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StatePaused:
		return "paused"
	case StateFinalized:
		return "finalized"
	}
	return "unknown"
}

// Artifact is one finalized recording, sealed and immutable. Duration is
// wall clock from start to finalize; PausedTotal is tracked separately for
// metadata.
type Artifact struct {
	ID          string
	Data        []byte
	MimeType    string
	StartedAt   time.Time
	FinalizedAt time.Time
	Duration    time.Duration
	PausedTotal time.Duration
}

// Empty reports whether this is the benign result of stopping with no
// active recording.
func (a Artifact) Empty() bool { return a.ID == "" }

type recordingSession struct {
	startedAt   time.Time
	segments    [][]byte
	pausedTotal time.Duration
	pauseStart  time.Time
}

// Controller buffers capture segments and finalizes them into one
// artifact. It is driven by user intent (start/pause/resume/stop) and by
// session lifecycle events (host termination triggers an implicit stop).
type Controller struct {
	dev Device

	mu      sync.Mutex
	state   State
	sess    *recordingSession
	collect chan struct{} // closed to stop the collection loop
}

func NewController(dev Device) *Controller {
	return &Controller{dev: dev, state: StateIdle}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start acquires the capture device and opens a new recording session.
// Idempotent while capturing or paused. Fails with ErrDeviceUnavailable
// when the device cannot be opened; the caller decides whether to retry.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.state == StateCapturing || c.state == StatePaused {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// Acquire outside the lock: device startup can be slow.
	if err := c.dev.Acquire(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess = &recordingSession{startedAt: time.Now()}
	c.state = StateCapturing
	c.collect = make(chan struct{})
	go c.collectLoop(c.dev.Segments(), c.collect)
	log.Info().Str("module", "record").Msg("recording started")
	return nil
}

// collectLoop appends segments while capturing. Paused intervals drop
// their segments but keep everything buffered so far.
func (c *Controller) collectLoop(segments <-chan Segment, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case seg, ok := <-segments:
			if !ok {
				return
			}
			c.mu.Lock()
			if c.state == StateCapturing && c.sess != nil {
				c.sess.segments = append(c.sess.segments, seg.Data)
			}
			c.mu.Unlock()
		}
	}
}

// Pause stops segment collection; a no-op from any state but capturing.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCapturing {
		return
	}
	c.state = StatePaused
	c.sess.pauseStart = time.Now()
	log.Info().Str("module", "record").Msg("recording paused")
}

// Resume restarts collection into the same session; a no-op unless paused.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return
	}
	c.sess.pausedTotal += time.Since(c.sess.pauseStart)
	c.sess.pauseStart = time.Time{}
	c.state = StateCapturing
	log.Info().Str("module", "record").Msg("recording resumed")
}

// Stop assembles all buffered segments into one sealed artifact and
// releases the device. Stopping with no active session is a benign no-op
// returning an empty artifact, because teardown paths call it
// defensively.
func (c *Controller) Stop() (Artifact, error) {
	c.mu.Lock()
	if c.state != StateCapturing && c.state != StatePaused {
		c.mu.Unlock()
		return Artifact{}, nil
	}

	sess := c.sess
	if c.state == StatePaused {
		sess.pausedTotal += time.Since(sess.pauseStart)
	}
	c.state = StateFinalized
	c.sess = nil
	close(c.collect)
	c.collect = nil
	c.mu.Unlock()

	c.dev.Release()

	var buf bytes.Buffer
	for _, seg := range sess.segments {
		buf.Write(seg)
	}
	now := time.Now()
	art := Artifact{
		ID:          uuid.NewString(),
		Data:        buf.Bytes(),
		MimeType:    "video/webm",
		StartedAt:   sess.startedAt,
		FinalizedAt: now,
		Duration:    now.Sub(sess.startedAt),
		PausedTotal: sess.pausedTotal,
	}
	log.Info().Str("module", "record").Str("id", art.ID).
		Dur("duration", art.Duration).Int("bytes", len(art.Data)).Msg("recording finalized")
	return art, nil
}

// SetAudioEnabled mutes or unmutes the audio track without touching the
// state machine.
func (c *Controller) SetAudioEnabled(on bool) { c.dev.SetAudioEnabled(on) }

// SetVideoEnabled mutes or unmutes the video track without touching the
// state machine.
func (c *Controller) SetVideoEnabled(on bool) { c.dev.SetVideoEnabled(on) }

// Abandon discards any in-flight session without producing an artifact;
// used when tearing down without a clean stop.
func (c *Controller) Abandon() {
	c.mu.Lock()
	active := c.state == StateCapturing || c.state == StatePaused
	c.sess = nil
	if active {
		close(c.collect)
		c.collect = nil
		c.state = StateIdle
	}
	c.mu.Unlock()
	if active {
		c.dev.Release()
	}
}
