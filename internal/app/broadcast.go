package app

import (
	"github.com/rs/zerolog/log"

	"huddle/internal/core"
	"huddle/internal/domain"
)

// FanoutResult reports delivery stats per broadcast.
type FanoutResult struct {
	Sent    int
	Dropped []core.ConnectionID
}

// Broadcaster fans typed events out to the connections of a room. The
// envelope is encoded once; delivery per destination is non-blocking
// fire-and-forget over each connection's bounded queue, so one slow or
// closed socket never delays the rest. Per-actor ordering holds because
// each source submits sequentially and every destination queue is FIFO.
type Broadcaster struct {
	Presence *PresenceRegistry
}

func NewBroadcaster(presence *PresenceRegistry) *Broadcaster {
	return &Broadcaster{Presence: presence}
}

// BroadcastToRoom delivers ev to every connection currently registered
// to the room, except exclude (pass "" to include everyone). Failures
// are logged, never propagated.
func (b *Broadcaster) BroadcastToRoom(roomID domain.RoomID, ev core.Event, exclude core.ConnectionID) FanoutResult {
	frame, err := core.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcast").
			Str("room", string(roomID)).Str("event", string(ev.Type())).
			Msg("encode event")
		return FanoutResult{}
	}

	res := FanoutResult{}
	for _, cs := range b.Presence.Senders(roomID) {
		if cs.ID == exclude {
			continue
		}
		if err := cs.Sender.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, cs.ID)
			continue
		}
		res.Sent++
	}
	if len(res.Dropped) > 0 {
		log.Warn().Str("module", "app.broadcast").
			Str("room", string(roomID)).Str("event", string(ev.Type())).
			Int("sent", res.Sent).Int("dropped", len(res.Dropped)).
			Msg("fan-out dropped slow or closed connections")
	}
	return res
}

// SendTo unicasts ev to one connection; used for roster and backlog
// replies to a freshly joined socket.
func (b *Broadcaster) SendTo(sender core.EventSender, ev core.Event) error {
	frame, err := core.Encode(ev)
	if err != nil {
		return err
	}
	return sender.TrySend(frame)
}
