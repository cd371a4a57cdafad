// Headless studio client: joins a session, negotiates a media link to
// every other participant, records locally via ffmpeg and uploads the
// finalized artifact when the recording stops.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/castform/castform/internal/client"
	"github.com/castform/castform/internal/client/record"
	"github.com/castform/castform/internal/client/rtc"
	"github.com/castform/castform/internal/client/signalclient"
	"github.com/castform/castform/internal/core"
	"github.com/castform/castform/internal/domain"
)

func main() {
	var (
		server   = flag.String("server", "http://localhost:8080", "studio server base URL")
		session  = flag.String("session", "", "session id to join")
		joinCode = flag.String("join-code", "", "short join code (alternative to --session)")
		name     = flag.String("name", "guest", "display name")
		email    = flag.String("email", "", "email for login")
		video    = flag.String("video", "", "video capture input (v4l2 device)")
		audio    = flag.String("audio", "default", "audio capture input (alsa device)")
		rec      = flag.Bool("record", true, "record locally and upload on stop")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	api := newAPIClient(*server)
	token, user, err := api.login(ctx, *name, *email)
	if err != nil {
		log.Fatal().Err(err).Msg("login failed")
	}

	sessionID := domain.SessionID(*session)
	if sessionID == "" && *joinCode != "" {
		sess, err := api.joinByCode(ctx, token, *joinCode)
		if err != nil {
			log.Fatal().Err(err).Msg("join code lookup failed")
		}
		sessionID = sess.ID
	}
	if sessionID == "" {
		log.Fatal().Msg("either --session or --join-code is required")
	}

	sig, err := signalclient.Dial(ctx, *server, token)
	if err != nil {
		log.Fatal().Err(err).Msg("signaling dial failed")
	}
	defer sig.Close()

	recorder := record.NewController(record.NewFFmpegDevice(*video, *audio))
	uploader := record.NewUploader(*server, token)

	// stopAndUpload finalizes the local recording and ships it. The upload
	// runs on its own context so teardown does not cancel it; a failure at
	// that point is only logged.
	stopAndUpload := func() {
		art, err := recorder.Stop()
		if err != nil || art.Empty() {
			return
		}
		if _, err := uploader.Upload(context.Background(), sessionID, domain.RecordingVideo, art); err != nil {
			log.Error().Err(err).Msg("artifact upload failed")
			return
		}
		log.Info().Str("artifact", art.ID).Msg("artifact uploaded")
	}

	orch := client.NewOrchestrator(sig, rtc.ConfigWithSTUN(nil), nil)
	orch.OnRemoteTrack = func(userID domain.UserID, track *webrtc.TrackRemote) {
		log.Info().Str("user", string(userID)).Str("kind", track.Kind().String()).Msg("remote media flowing")
	}
	orch.OnPeerJoined = func(p domain.Participant) {
		log.Info().Str("user", string(p.UserID)).Str("name", p.DisplayName).Msg("peer joined")
	}
	orch.OnPeerLeft = func(u domain.UserID) {
		log.Info().Str("user", string(u)).Msg("peer left")
	}
	orch.OnSessionEnd = func() {
		log.Info().Msg("session ended by host")
		stopAndUpload()
		cancel()
	}

	if err := sig.Join(sessionID, *user); err != nil {
		log.Fatal().Err(err).Msg("join failed")
	}
	log.Info().Str("session", string(sessionID)).Str("user", string(user.ID)).Msg("joined session")

	if *rec {
		if err := recorder.Start(); err != nil {
			log.Error().Err(err).Msg("recording unavailable, continuing without capture")
		}
	}

	events := sig.Events()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case evt, ok := <-events:
			if !ok {
				log.Warn().Msg("signaling connection lost")
				break loop
			}
			if evt.Type == core.EvtError {
				log.Error().Str("message", evt.Err.Message).Msg("server error")
			}
			orch.HandleEvent(ctx, evt)
		}
	}

	// Leaving releases every peer link and the capture device even if a
	// negotiation is still in flight.
	stopAndUpload()
	orch.CloseAll()
	_ = sig.Leave()
	log.Info().Msg("left session")
}
