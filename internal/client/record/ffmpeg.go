package record

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FFmpegDevice captures audio/video by shelling out to ffmpeg and reading
// the muxed container from its stdout. Stream toggles are applied when the
// process is (re)built; a pipe cannot mute a track mid-flight, so toggling
// while capturing only takes effect on the next Acquire.
type FFmpegDevice struct {
	Bin        string // defaults to "ffmpeg"
	VideoInput string // e.g. "/dev/video0" (v4l2); empty disables video
	AudioInput string // e.g. "default" (alsa); empty disables audio

	mu      sync.Mutex
	cmd     *exec.Cmd
	out     chan Segment
	done    chan struct{}
	audioOn bool
	videoOn bool
}

func NewFFmpegDevice(videoInput, audioInput string) *FFmpegDevice {
	return &FFmpegDevice{
		Bin:        "ffmpeg",
		VideoInput: videoInput,
		AudioInput: audioInput,
		audioOn:    true,
		videoOn:    true,
	}
}

func (d *FFmpegDevice) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if d.videoOn && d.VideoInput != "" {
		args = append(args, "-f", "v4l2", "-framerate", "30", "-i", d.VideoInput)
	}
	if d.audioOn && d.AudioInput != "" {
		args = append(args, "-f", "alsa", "-i", d.AudioInput)
	}
	args = append(args,
		"-c:v", "libvpx-vp9", "-deadline", "realtime",
		"-c:a", "libopus",
		"-f", "webm", "pipe:1",
	)
	return args
}

func (d *FFmpegDevice) Acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return nil // already capturing
	}
	if d.VideoInput == "" && d.AudioInput == "" {
		return ErrDeviceUnavailable
	}

	bin := d.Bin
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.Command(bin, d.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	d.cmd = cmd
	d.out = make(chan Segment, 8)
	d.done = make(chan struct{})
	go d.pump(stdout, d.out, d.done)
	log.Info().Str("module", "record.ffmpeg").Str("video", d.VideoInput).
		Str("audio", d.AudioInput).Msg("capture started")
	return nil
}

// pump reads raw container bytes and cuts them into segments once per
// SegmentInterval.
func (d *FFmpegDevice) pump(r io.Reader, out chan<- Segment, done <-chan struct{}) {
	defer close(out)

	var (
		mu  sync.Mutex
		buf []byte
	)
	readErr := make(chan struct{})
	go func() {
		defer close(readErr)
		chunk := make([]byte, 32*1024)
		for {
			n, err := r.Read(chunk)
			if n > 0 {
				mu.Lock()
				buf = append(buf, chunk[:n]...)
				mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(SegmentInterval)
	defer ticker.Stop()
	flush := func() {
		mu.Lock()
		data := buf
		buf = nil
		mu.Unlock()
		if len(data) == 0 {
			return
		}
		// Never block: with the collector gone and the buffer full the
		// segment is dropped instead of wedging this goroutine.
		select {
		case out <- Segment{Data: data, At: time.Now()}:
		default:
		}
	}
	for {
		select {
		case <-ticker.C:
			flush()
		case <-readErr:
			flush()
			return
		case <-done:
			flush()
			return
		}
	}
}

func (d *FFmpegDevice) Segments() <-chan Segment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out
}

func (d *FFmpegDevice) SetAudioEnabled(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.audioOn = on
}

func (d *FFmpegDevice) SetVideoEnabled(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.videoOn = on
}

func (d *FFmpegDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd == nil {
		return
	}
	close(d.done)
	_ = d.cmd.Process.Kill()
	_ = d.cmd.Wait()
	d.cmd = nil
	d.out = nil
	log.Info().Str("module", "record.ffmpeg").Msg("capture released")
}
