package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/castform/castform/internal/app"
	"github.com/castform/castform/internal/core"
	"github.com/castform/castform/internal/domain"
)

func (ctl *Controller) dispatch(ctx context.Context, cid domain.ConnectionID, identity *domain.User, c *WsConn, data core.Frame) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendEvent(c, core.NewError("bad payload"))
		return
	}

	switch env.Type {
	case core.EvtJoinSession:
		ctl.handleJoin(ctx, cid, identity, c, data)
	case core.EvtSignal:
		ctl.handleSignal(cid, data)
	case core.EvtLeaveSession:
		ctl.handleLeave(cid)
	case core.EvtEndSession:
		ctl.handleEnd(cid, c)
	default:
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown event")
	}
}

func (ctl *Controller) handleJoin(ctx context.Context, cid domain.ConnectionID, identity *domain.User, c *WsConn, data core.Frame) {
	var p core.JoinSession
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendEvent(c, core.NewError("bad payload"))
		return
	}

	user := p.User
	if identity != nil {
		user = *identity
	}
	if user.ID == "" || user.Name == "" {
		ctl.sendEvent(c, core.NewError("missing user identity"))
		return
	}

	log.Info().Str("module", "signal").Str("cid", string(cid)).
		Str("session", string(p.SessionID)).Str("user", string(user.ID)).Msg("join-session")

	if err := ctl.Relay.Join(ctx, cid, p.SessionID, user); err != nil {
		if errors.Is(err, app.ErrSessionNotFound) {
			ctl.sendEvent(c, core.NewError("Session not found"))
			return
		}
		log.Error().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("join failed")
		ctl.sendEvent(c, core.NewError("Failed to join session"))
	}
}

func (ctl *Controller) handleSignal(cid domain.ConnectionID, data core.Frame) {
	var p core.SignalSend
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad signal payload")
		return
	}
	// Dropped deliveries are expected (target already gone), so no error
	// goes back to the sender.
	ctl.Relay.RelaySignal(cid, p.To, p.Payload)
}

func (ctl *Controller) handleLeave(cid domain.ConnectionID) {
	log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("leave-session")
	ctl.Relay.Leave(cid)
}

func (ctl *Controller) handleEnd(cid domain.ConnectionID, c *WsConn) {
	log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("end-session")
	if err := ctl.Relay.EndSession(cid); err != nil {
		if errors.Is(err, app.ErrNotHost) {
			ctl.sendEvent(c, core.NewError("only the host can end the session"))
			return
		}
		log.Debug().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("end-session ignored")
	}
}
