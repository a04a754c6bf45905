// Package memory holds a map-backed RoomStore. It backs tests and the
// no-database mode, mirroring the service's behavior without durability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"huddle/internal/core"
	"huddle/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*domain.Room
	messages map[domain.RoomID][]*domain.Message
}

func NewStore() *Store {
	return &Store{
		rooms:    make(map[domain.RoomID]*domain.Room),
		messages: make(map[domain.RoomID][]*domain.Message),
	}
}

var _ core.RoomStore = (*Store)(nil)

func (s *Store) CreateRoom(_ context.Context, params core.CreateRoomParams) (*domain.Room, error) {
	start := params.StartTime
	if start.IsZero() {
		start = time.Now().UTC()
	}
	room, err := domain.NewRoom(params.HostID, start, params.EndTime)
	if err != nil {
		return nil, err
	}
	room.Schedule = params.Schedule
	now := time.Now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now

	s.mu.Lock()
	s.rooms[room.RoomID] = room
	s.mu.Unlock()
	return cloneRoom(room), nil
}

func (s *Store) FindByRoomID(_ context.Context, roomID domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (s *Store) ListRooms(_ context.Context) ([]*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, cloneRoom(room))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) EndRoom(_ context.Context, roomID domain.RoomID) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	room.IsActive = false
	room.UpdatedAt = time.Now().UTC()
	return cloneRoom(room), nil
}

func (s *Store) SaveMessage(_ context.Context, roomID domain.RoomID, userID, userName, content string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return nil, domain.ErrRoomNotFound
	}
	msg := &domain.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		UserName:  userName,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	return msg, nil
}

func (s *Store) GetMessages(_ context.Context, roomID domain.RoomID) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.messages[roomID]
	out := make([]*domain.Message, len(stored))
	copy(out, stored)
	// Stable keeps insertion order for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) MirrorParticipant(_ context.Context, roomID domain.RoomID, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	for i := range room.Participants {
		if room.Participants[i].ID == p.ID {
			room.Participants[i] = p
			room.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	room.Participants = append(room.Participants, p)
	room.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) MirrorParticipantRemoval(_ context.Context, roomID domain.RoomID, participantID domain.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	kept := room.Participants[:0]
	for _, p := range room.Participants {
		if p.ID != participantID {
			kept = append(kept, p)
		}
	}
	room.Participants = kept
	room.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneRoom(room *domain.Room) *domain.Room {
	out := *room
	out.Participants = make([]domain.Participant, len(room.Participants))
	copy(out.Participants, room.Participants)
	if room.Schedule != nil {
		sched := *room.Schedule
		sched.InvitedUsers = append([]string(nil), room.Schedule.InvitedUsers...)
		out.Schedule = &sched
	}
	return &out
}
