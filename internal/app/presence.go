// Package app holds the in-memory presence core: the registry, the
// availability policy, the event broadcaster and the connection
// lifecycle that ties them to the room store.
package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"huddle/internal/core"
	"huddle/internal/domain"
)

type binding struct {
	RoomID        domain.RoomID
	ParticipantID domain.ParticipantID
}

type member struct {
	participant domain.Participant
	connID      core.ConnectionID
	sender      core.EventSender
}

// roomPresence has its own lock so mutations on one room never wait on
// another room's traffic. dead is set under mu when the room is pruned
// from the registry; a register that raced the prune sees it and retries
// against a fresh entry instead of committing into the orphan.
type roomPresence struct {
	mu      sync.Mutex
	dead    bool
	order   []domain.ParticipantID
	members map[domain.ParticipantID]*member
}

func newRoomPresence() *roomPresence {
	return &roomPresence{members: make(map[domain.ParticipantID]*member)}
}

func (rp *roomPresence) rosterLocked() []domain.Participant {
	out := make([]domain.Participant, 0, len(rp.order))
	for _, pid := range rp.order {
		if m, ok := rp.members[pid]; ok {
			out = append(out, m.participant)
		}
	}
	return out
}

// ConnSender pairs a connection with its outbound endpoint for fan-out.
type ConnSender struct {
	ID     core.ConnectionID
	Sender core.EventSender
}

// PresenceRegistry is the single source of truth for who is live right
// now. The outer lock guards only the two maps; per-room state is
// guarded by the room's own lock, so registering into one room never
// serializes with another. No lock is ever held across I/O.
type PresenceRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomPresence
	conns map[core.ConnectionID]binding
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		rooms: make(map[domain.RoomID]*roomPresence),
		conns: make(map[core.ConnectionID]binding),
	}
}

// Register binds a connection to a participant within a room and
// returns the roster in join order. A second register with the same
// participant id is a reconnect: it supersedes the stored connection and
// merges the media flags instead of duplicating the entry.
func (r *PresenceRegistry) Register(roomID domain.RoomID, p domain.Participant, connID core.ConnectionID, sender core.EventSender) []domain.Participant {
	var (
		roster []domain.Participant
		stale  core.ConnectionID
	)
	for {
		r.mu.Lock()
		rp, ok := r.rooms[roomID]
		if !ok {
			rp = newRoomPresence()
			r.rooms[roomID] = rp
		}
		r.mu.Unlock()

		rp.mu.Lock()
		if rp.dead {
			// Pruned between the map lookup and here; the entry we hold
			// is an orphan. Go back for the live one.
			rp.mu.Unlock()
			continue
		}
		if old, ok := rp.members[p.ID]; ok {
			stale = old.connID
			old.participant.UserName = p.UserName
			old.participant.VideoEnabled = p.VideoEnabled
			old.participant.AudioEnabled = p.AudioEnabled
			old.connID = connID
			old.sender = sender
		} else {
			rp.members[p.ID] = &member{participant: p, connID: connID, sender: sender}
			rp.order = append(rp.order, p.ID)
		}
		roster = rp.rosterLocked()
		rp.mu.Unlock()
		break
	}

	r.mu.Lock()
	if stale != "" {
		delete(r.conns, stale)
	}
	r.conns[connID] = binding{RoomID: roomID, ParticipantID: p.ID}
	r.mu.Unlock()

	log.Debug().Str("module", "app.presence").
		Str("room", string(roomID)).Str("participant", string(p.ID)).
		Str("conn", string(connID)).Bool("reconnect", stale != "").
		Msg("registered")
	return roster
}

// Unregister removes the binding for a connection. It is idempotent: a
// connection with no binding reports core.ErrUnknownConnection and
// mutates nothing.
func (r *PresenceRegistry) Unregister(connID core.ConnectionID) (domain.RoomID, domain.ParticipantID, error) {
	r.mu.Lock()
	b, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return "", "", core.ErrUnknownConnection
	}
	delete(r.conns, connID)
	rp := r.rooms[b.RoomID]
	r.mu.Unlock()

	empty := false
	if rp != nil {
		rp.mu.Lock()
		if m, ok := rp.members[b.ParticipantID]; ok && m.connID == connID {
			delete(rp.members, b.ParticipantID)
			for i, pid := range rp.order {
				if pid == b.ParticipantID {
					rp.order = append(rp.order[:i], rp.order[i+1:]...)
					break
				}
			}
		}
		empty = len(rp.members) == 0
		rp.mu.Unlock()
	}
	if empty {
		r.pruneRoom(b.RoomID, rp)
	}

	log.Debug().Str("module", "app.presence").
		Str("room", string(b.RoomID)).Str("participant", string(b.ParticipantID)).
		Str("conn", string(connID)).Msg("unregistered")
	return b.RoomID, b.ParticipantID, nil
}

// pruneRoom drops the room entry only if it is still the mapped one and
// still empty; a racing register wins. The dead flag is flipped under
// the room lock in the same critical section as the map delete, so a
// register holding a reference to the pruned entry cannot commit into
// it afterwards.
func (r *PresenceRegistry) pruneRoom(roomID domain.RoomID, rp *roomPresence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rooms[roomID]
	if !ok || cur != rp {
		return
	}
	rp.mu.Lock()
	if len(rp.members) == 0 {
		rp.dead = true
		delete(r.rooms, roomID)
	}
	rp.mu.Unlock()
}

// UpdateMedia mutates one media flag without touching membership.
func (r *PresenceRegistry) UpdateMedia(connID core.ConnectionID, field domain.MediaField, enabled bool) (domain.RoomID, domain.ParticipantID, error) {
	rp, b, err := r.presenceOf(connID)
	if err != nil {
		return "", "", err
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	m, ok := rp.members[b.ParticipantID]
	if !ok || m.connID != connID {
		return "", "", core.ErrUnknownConnection
	}
	if !m.participant.SetMedia(field, enabled) {
		return "", "", core.ErrUnknownConnection
	}
	return b.RoomID, b.ParticipantID, nil
}

// Roster is a snapshot read, ordered by join order for determinism.
func (r *PresenceRegistry) Roster(roomID domain.RoomID) []domain.Participant {
	r.mu.RLock()
	rp := r.rooms[roomID]
	r.mu.RUnlock()
	if rp == nil {
		return nil
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.rosterLocked()
}

// Senders snapshots the outbound endpoints of every connection in a
// room, in join order. The broadcaster fans out over the copy so no
// registry lock is held while frames are queued.
func (r *PresenceRegistry) Senders(roomID domain.RoomID) []ConnSender {
	r.mu.RLock()
	rp := r.rooms[roomID]
	r.mu.RUnlock()
	if rp == nil {
		return nil
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	out := make([]ConnSender, 0, len(rp.order))
	for _, pid := range rp.order {
		if m, ok := rp.members[pid]; ok {
			out = append(out, ConnSender{ID: m.connID, Sender: m.sender})
		}
	}
	return out
}

// Lookup resolves a connection to its room and current participant
// record.
func (r *PresenceRegistry) Lookup(connID core.ConnectionID) (domain.RoomID, domain.Participant, error) {
	rp, b, err := r.presenceOf(connID)
	if err != nil {
		return "", domain.Participant{}, err
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	m, ok := rp.members[b.ParticipantID]
	if !ok || m.connID != connID {
		return "", domain.Participant{}, core.ErrUnknownConnection
	}
	return b.RoomID, m.participant, nil
}

// SenderOf resolves a participant's live outbound endpoint within a
// room; used for the 1:1 signaling pass-through.
func (r *PresenceRegistry) SenderOf(roomID domain.RoomID, participantID domain.ParticipantID) (core.EventSender, bool) {
	r.mu.RLock()
	rp := r.rooms[roomID]
	r.mu.RUnlock()
	if rp == nil {
		return nil, false
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	m, ok := rp.members[participantID]
	if !ok {
		return nil, false
	}
	return m.sender, true
}

func (r *PresenceRegistry) presenceOf(connID core.ConnectionID) (*roomPresence, binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.conns[connID]
	if !ok {
		return nil, binding{}, core.ErrUnknownConnection
	}
	rp, ok := r.rooms[b.RoomID]
	if !ok {
		return nil, binding{}, core.ErrUnknownConnection
	}
	return rp, b, nil
}
