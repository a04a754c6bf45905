package signal

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"huddle/internal/core"
	"huddle/internal/domain"
)

// SDP negotiation happens between peers; the relay only forwards the
// envelopes 1:1 to the target participant, with a "from" field added.
// The payload shapes are webrtc.SessionDescription and
// webrtc.ICECandidateInit themselves, so the wire contract is whatever
// pion's JSON tags say it is.

func (ctl *Controller) forwardDescription(connID core.ConnectionID, c *wsConn, kind string, data []byte) {
	var p struct {
		webrtc.SessionDescription
		Target string `json:"target"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad description payload")
		ctl.sendError(c, "bad payload")
		return
	}
	// The envelope was dispatched on kind already; keep the forwarded
	// type in line with it even if the payload disagrees.
	p.Type = webrtc.NewSDPType(kind)

	from, target, ok := ctl.peerSender(connID, c, domain.ParticipantID(p.Target))
	if !ok {
		return
	}
	forward := struct {
		webrtc.SessionDescription
		From domain.ParticipantID `json:"from"`
	}{p.SessionDescription, from}
	ctl.forward(c, target, forward)
}

func (ctl *Controller) forwardCandidate(connID core.ConnectionID, c *wsConn, data []byte) {
	var p struct {
		webrtc.ICECandidateInit
		Target string `json:"target"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad candidate payload")
		ctl.sendError(c, "bad payload")
		return
	}

	from, target, ok := ctl.peerSender(connID, c, domain.ParticipantID(p.Target))
	if !ok {
		return
	}
	forward := struct {
		Type string               `json:"type"`
		From domain.ParticipantID `json:"from"`
		webrtc.ICECandidateInit
	}{"candidate", from, p.ICECandidateInit}
	ctl.forward(c, target, forward)
}

// peerSender resolves the sender's identity and the target's live
// endpoint within the same room.
func (ctl *Controller) peerSender(connID core.ConnectionID, c *wsConn, target domain.ParticipantID) (domain.ParticipantID, core.EventSender, bool) {
	roomID, p, err := ctl.Presence.Lookup(connID)
	if err != nil {
		ctl.sendError(c, "not in a room")
		return "", nil, false
	}
	sender, ok := ctl.Presence.SenderOf(roomID, target)
	if !ok {
		ctl.sendError(c, "peer not in room")
		return "", nil, false
	}
	return p.ID, sender, true
}

func (ctl *Controller) forward(c *wsConn, target core.EventSender, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal forward")
		return
	}
	if err := target.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("signal forward dropped")
		ctl.sendError(c, "peer unreachable")
	}
}
