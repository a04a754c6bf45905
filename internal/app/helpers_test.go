package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"huddle/internal/core"
	"huddle/internal/domain"
)

var errQueueFull = errors.New("queue full")

// fakeSender records every frame it accepts; capacity < 0 accepts all.
// onFirstSend, when set, runs once before the first frame is recorded,
// for interleaving the lifecycle mid-delivery.
type fakeSender struct {
	mu       sync.Mutex
	frames   []core.Frame
	capacity int
	closed   bool

	first       sync.Once
	onFirstSend func()
}

func newFakeSender() *fakeSender { return &fakeSender{capacity: -1} }

func (s *fakeSender) TrySend(f core.Frame) error {
	if s.onFirstSend != nil {
		s.first.Do(s.onFirstSend)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("closed")
	}
	if s.capacity >= 0 && len(s.frames) >= s.capacity {
		return errQueueFull
	}
	cp := make(core.Frame, len(f))
	copy(cp, f)
	s.frames = append(s.frames, cp)
	return nil
}

func (s *fakeSender) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// envelopes decodes every recorded frame into a generic map.
func (s *fakeSender) envelopes(t *testing.T) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.frames))
	for _, f := range s.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("bad frame %q: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (s *fakeSender) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, env := range s.envelopes(t) {
		out = append(out, env["type"].(string))
	}
	return out
}

// fakeStore is an in-memory RoomStore double with error injection.
type fakeStore struct {
	mu       sync.Mutex
	rooms    map[domain.RoomID]*domain.Room
	messages map[domain.RoomID][]*domain.Message

	findErr    error
	saveErr    error
	backlogErr error
	blocking   bool // FindByRoomID waits for ctx cancellation

	mirrored        []domain.ParticipantID
	mirrorRemovals  []domain.ParticipantID
	mirrorCallsDone chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:    make(map[domain.RoomID]*domain.Room),
		messages: make(map[domain.RoomID][]*domain.Message),
	}
}

func (s *fakeStore) addRoom(room *domain.Room) {
	s.mu.Lock()
	s.rooms[room.RoomID] = room
	s.mu.Unlock()
}

func (s *fakeStore) CreateRoom(context.Context, core.CreateRoomParams) (*domain.Room, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) FindByRoomID(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	if s.blocking {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.findErr != nil {
		return nil, s.findErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *fakeStore) ListRooms(context.Context) ([]*domain.Room, error) { return nil, nil }

func (s *fakeStore) EndRoom(context.Context, domain.RoomID) (*domain.Room, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) SaveMessage(_ context.Context, roomID domain.RoomID, userID, userName, content string) (*domain.Message, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := &domain.Message{
		ID:        userID + "-" + content,
		RoomID:    roomID,
		UserID:    userID,
		UserName:  userName,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	return msg, nil
}

func (s *fakeStore) GetMessages(_ context.Context, roomID domain.RoomID) ([]*domain.Message, error) {
	if s.backlogErr != nil {
		return nil, s.backlogErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Message(nil), s.messages[roomID]...), nil
}

func (s *fakeStore) MirrorParticipant(_ context.Context, _ domain.RoomID, p domain.Participant) error {
	s.mu.Lock()
	s.mirrored = append(s.mirrored, p.ID)
	s.mu.Unlock()
	if s.mirrorCallsDone != nil {
		s.mirrorCallsDone <- struct{}{}
	}
	return nil
}

func (s *fakeStore) MirrorParticipantRemoval(_ context.Context, _ domain.RoomID, pid domain.ParticipantID) error {
	s.mu.Lock()
	s.mirrorRemovals = append(s.mirrorRemovals, pid)
	s.mu.Unlock()
	if s.mirrorCallsDone != nil {
		s.mirrorCallsDone <- struct{}{}
	}
	return nil
}

func activeRoom(roomID domain.RoomID, startOffset, endOffset time.Duration) *domain.Room {
	now := time.Now().UTC()
	room := &domain.Room{
		RoomID:    roomID,
		HostID:    "host-1",
		StartTime: now.Add(startOffset),
		IsActive:  true,
	}
	if endOffset != 0 {
		room.EndTime = now.Add(endOffset)
	}
	return room
}

func participant(id, name string) domain.Participant {
	return domain.Participant{ID: domain.ParticipantID(id), UserName: name}
}
