package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"huddle/internal/core"
	"huddle/internal/domain"
)

func (ctl *Controller) handleJoin(ctx context.Context, connID core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type        string `json:"type"`
		RoomID      string `json:"roomId"`
		Participant struct {
			ID           string `json:"id"`
			UserName     string `json:"userName"`
			VideoEnabled bool   `json:"isVideoEnabled"`
			AudioEnabled bool   `json:"isAudioEnabled"`
			Email        string `json:"email"`
		} `json:"participant"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(c, "bad payload")
		return
	}
	if p.RoomID == "" {
		ctl.sendError(c, "roomId required")
		return
	}

	participant, err := domain.NewParticipant(domain.ParticipantID(p.Participant.ID), p.Participant.UserName)
	if err != nil {
		ctl.sendError(c, err.Error())
		return
	}
	participant.VideoEnabled = p.Participant.VideoEnabled
	participant.AudioEnabled = p.Participant.AudioEnabled
	participant.Email = p.Participant.Email

	// Errors are already reported to this socket as room-error events.
	if err := ctl.Lifecycle.Join(ctx, connID, c, domain.RoomID(p.RoomID), *participant); err != nil {
		log.Warn().Err(err).Str("module", "signal").
			Str("conn", string(connID)).Str("room", p.RoomID).Msg("join rejected")
	}
}

func (ctl *Controller) handleLeave(connID core.ConnectionID, c *wsConn) {
	ctl.Lifecycle.Leave(connID)
	ctl.sendJSON(c, map[string]string{"type": "left"})
}

func (ctl *Controller) handleToggleMedia(connID core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type    string `json:"type"`
		Field   string `json:"field"`
		Enabled bool   `json:"enabled"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad toggle-media payload")
		ctl.sendError(c, "bad payload")
		return
	}
	if err := ctl.Lifecycle.ToggleMedia(connID, domain.MediaField(p.Field), p.Enabled); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("toggle-media ignored")
	}
}

func (ctl *Controller) handleSendMessage(ctx context.Context, connID core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad send-message payload")
		ctl.sendError(c, "bad payload")
		return
	}
	if p.Content == "" {
		ctl.sendError(c, "empty message")
		return
	}
	if err := ctl.Lifecycle.PostMessage(ctx, connID, p.Content); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("send-message failed")
	}
}
