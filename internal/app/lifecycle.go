package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"huddle/internal/core"
	"huddle/internal/domain"
)

// DefaultJoinTimeout bounds how long a join may wait on the room store.
const DefaultJoinTimeout = 5 * time.Second

// ErrAlreadyJoined rejects a second join on a connection that has not
// left yet.
var ErrAlreadyJoined = errors.New("connection already joined")

type connState int

const (
	stateJoining connState = iota + 1
	stateJoined
)

// Lifecycle orchestrates the per-connection state machine: join, leave,
// media toggles, chat, abrupt disconnect. It combines the store, the
// availability policy, the presence registry and the broadcaster.
// Presence is the authoritative low-latency path; store writes beyond
// the join lookup are best-effort and never roll presence back.
type Lifecycle struct {
	Store       core.RoomStore
	Presence    *PresenceRegistry
	Policy      AvailabilityPolicy
	Events      *Broadcaster
	JoinTimeout time.Duration

	// Now is swappable in tests; nil means time.Now.
	Now func() time.Time

	mu     sync.Mutex
	states map[core.ConnectionID]connState
}

func NewLifecycle(store core.RoomStore, presence *PresenceRegistry, policy AvailabilityPolicy, events *Broadcaster, joinTimeout time.Duration) *Lifecycle {
	if joinTimeout <= 0 {
		joinTimeout = DefaultJoinTimeout
	}
	return &Lifecycle{
		Store:       store,
		Presence:    presence,
		Policy:      policy,
		Events:      events,
		JoinTimeout: joinTimeout,
		states:      make(map[core.ConnectionID]connState),
	}
}

func (l *Lifecycle) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Join runs the full join transition for a connection. Store or policy
// failures are reported to the joining socket only, as a room-error,
// and leave no state behind.
func (l *Lifecycle) Join(ctx context.Context, connID core.ConnectionID, sender core.EventSender, roomID domain.RoomID, p domain.Participant) error {
	l.mu.Lock()
	if _, ok := l.states[connID]; ok {
		l.mu.Unlock()
		l.sendError(sender, roomID, "already joined")
		return ErrAlreadyJoined
	}
	l.states[connID] = stateJoining
	l.mu.Unlock()

	lookupCtx, cancel := context.WithTimeout(ctx, l.JoinTimeout)
	room, err := l.Store.FindByRoomID(lookupCtx, roomID)
	cancel()
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		l.abortJoin(connID, sender, roomID, "room not found")
		return domain.ErrRoomNotFound
	case err != nil:
		log.Error().Err(err).Str("module", "app.lifecycle").
			Str("room", string(roomID)).Msg("room lookup failed")
		l.abortJoin(connID, sender, roomID, "room lookup failed")
		return err
	case !l.Policy.Available(room, l.now()):
		l.abortJoin(connID, sender, roomID, "room not available")
		return domain.ErrRoomUnavailable
	}

	roster := l.Presence.Register(roomID, p, connID, sender)

	// A disconnect may have raced the store lookup. Its teardown found
	// nothing to unregister, so undo the registration here, silently.
	l.mu.Lock()
	if _, ok := l.states[connID]; !ok {
		l.mu.Unlock()
		_, _, _ = l.Presence.Unregister(connID)
		return core.ErrUnknownConnection
	}
	l.mu.Unlock()

	if err := l.Events.SendTo(sender, core.RosterSnapshot{RoomID: roomID, Participants: roster}); err != nil {
		log.Warn().Err(err).Str("module", "app.lifecycle").
			Str("conn", string(connID)).Msg("roster snapshot not delivered")
	}
	l.sendBacklog(ctx, connID, sender, roomID)
	l.Events.BroadcastToRoom(roomID, core.ParticipantJoined{RoomID: roomID, Participant: p}, connID)

	// Promote to joined only if no disconnect landed while the
	// announcements went out. If one did, its teardown stayed silent
	// (the state was still joining), so the matching participant-left
	// is emitted here, after the joined broadcast above.
	l.mu.Lock()
	_, alive := l.states[connID]
	if alive {
		l.states[connID] = stateJoined
	}
	l.mu.Unlock()
	if !alive {
		l.Events.BroadcastToRoom(roomID, core.ParticipantLeft{RoomID: roomID, ParticipantID: p.ID}, "")
		return core.ErrUnknownConnection
	}

	go l.mirror(roomID, p)

	log.Info().Str("module", "app.lifecycle").
		Str("room", string(roomID)).Str("participant", string(p.ID)).
		Str("conn", string(connID)).Msg("joined")
	return nil
}

// sendBacklog fetches stored messages for the room and unicasts them to
// the new connection. A store hiccup here degrades the backlog only,
// never the join.
func (l *Lifecycle) sendBacklog(ctx context.Context, connID core.ConnectionID, sender core.EventSender, roomID domain.RoomID) {
	msgCtx, cancel := context.WithTimeout(ctx, l.JoinTimeout)
	defer cancel()
	messages, err := l.Store.GetMessages(msgCtx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.lifecycle").
			Str("room", string(roomID)).Msg("message backlog unavailable")
		return
	}
	if err := l.Events.SendTo(sender, core.MessageBacklog{RoomID: roomID, Messages: messages}); err != nil {
		log.Warn().Err(err).Str("module", "app.lifecycle").
			Str("conn", string(connID)).Msg("message backlog not delivered")
	}
}

func (l *Lifecycle) abortJoin(connID core.ConnectionID, sender core.EventSender, roomID domain.RoomID, reason string) {
	l.mu.Lock()
	delete(l.states, connID)
	l.mu.Unlock()
	l.sendError(sender, roomID, reason)
}

func (l *Lifecycle) sendError(sender core.EventSender, roomID domain.RoomID, reason string) {
	if err := l.Events.SendTo(sender, core.RoomError{RoomID: roomID, Error: reason}); err != nil {
		log.Warn().Err(err).Str("module", "app.lifecycle").Str("reason", reason).Msg("room error not delivered")
	}
}

// Leave is the explicit counterpart of Disconnect; both funnel into the
// same teardown, which is idempotent per connection.
func (l *Lifecycle) Leave(connID core.ConnectionID) {
	l.teardown(connID)
}

// Disconnect handles a transport-detected close from any state. A
// connection that never fully joined tears down silently.
func (l *Lifecycle) Disconnect(connID core.ConnectionID) {
	l.teardown(connID)
}

func (l *Lifecycle) teardown(connID core.ConnectionID) {
	l.mu.Lock()
	st := l.states[connID]
	delete(l.states, connID)
	l.mu.Unlock()

	roomID, pid, err := l.Presence.Unregister(connID)
	if err != nil {
		// Never bound, or already torn down.
		return
	}
	// A connection still in the joining state never announced itself;
	// Join notices the missing state and emits the participant-left for
	// it, keeping joined/left paired for every observer.
	if st == stateJoined {
		l.Events.BroadcastToRoom(roomID, core.ParticipantLeft{RoomID: roomID, ParticipantID: pid}, "")
	}

	go l.mirrorRemoval(roomID, pid)

	log.Info().Str("module", "app.lifecycle").
		Str("room", string(roomID)).Str("participant", string(pid)).
		Str("conn", string(connID)).Msg("left")
}

// ToggleMedia updates one media flag and tells the whole room. The
// sender is not excluded; the state is idempotent on its side.
func (l *Lifecycle) ToggleMedia(connID core.ConnectionID, field domain.MediaField, enabled bool) error {
	roomID, pid, err := l.Presence.UpdateMedia(connID, field, enabled)
	if err != nil {
		return err
	}
	l.Events.BroadcastToRoom(roomID, core.MediaChanged{
		RoomID:        roomID,
		ParticipantID: pid,
		Field:         field,
		Enabled:       enabled,
	}, "")
	return nil
}

// PostMessage persists the chat line first, then echoes it to the whole
// room including the sender, so every client renders the same stored
// record.
func (l *Lifecycle) PostMessage(ctx context.Context, connID core.ConnectionID, content string) error {
	roomID, p, err := l.Presence.Lookup(connID)
	if err != nil {
		return err
	}
	saveCtx, cancel := context.WithTimeout(ctx, l.JoinTimeout)
	msg, err := l.Store.SaveMessage(saveCtx, roomID, string(p.ID), p.UserName, content)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("module", "app.lifecycle").
			Str("room", string(roomID)).Msg("message not saved")
		if sender, ok := l.Presence.SenderOf(roomID, p.ID); ok {
			l.sendError(sender, roomID, "message not saved")
		}
		return err
	}
	l.Events.BroadcastToRoom(roomID, core.MessagePosted{RoomID: roomID, Message: *msg}, "")
	return nil
}

func (l *Lifecycle) mirror(roomID domain.RoomID, p domain.Participant) {
	ctx, cancel := context.WithTimeout(context.Background(), l.JoinTimeout)
	defer cancel()
	if err := l.Store.MirrorParticipant(ctx, roomID, p); err != nil {
		log.Warn().Err(err).Str("module", "app.lifecycle").
			Str("room", string(roomID)).Msg("participant mirror failed")
	}
}

func (l *Lifecycle) mirrorRemoval(roomID domain.RoomID, pid domain.ParticipantID) {
	ctx, cancel := context.WithTimeout(context.Background(), l.JoinTimeout)
	defer cancel()
	if err := l.Store.MirrorParticipantRemoval(ctx, roomID, pid); err != nil {
		log.Warn().Err(err).Str("module", "app.lifecycle").
			Str("room", string(roomID)).Msg("participant removal mirror failed")
	}
}
