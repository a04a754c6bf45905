package core

import (
	"context"
	"time"

	"huddle/internal/domain"
)

// CreateRoomParams carries the fields a room is created with. A zero
// StartTime means "now"; a zero EndTime leaves the room open-ended.
type CreateRoomParams struct {
	HostID    string
	StartTime time.Time
	EndTime   time.Time
	Schedule  *domain.ScheduleInfo
}

// RoomStore is the durable side of the system. The presence registry,
// not the store, is authoritative for who is live; the participant
// mirror calls are best-effort support data.
type RoomStore interface {
	CreateRoom(ctx context.Context, params CreateRoomParams) (*domain.Room, error)
	FindByRoomID(ctx context.Context, roomID domain.RoomID) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]*domain.Room, error)
	EndRoom(ctx context.Context, roomID domain.RoomID) (*domain.Room, error)

	SaveMessage(ctx context.Context, roomID domain.RoomID, userID, userName, content string) (*domain.Message, error)
	GetMessages(ctx context.Context, roomID domain.RoomID) ([]*domain.Message, error)

	MirrorParticipant(ctx context.Context, roomID domain.RoomID, p domain.Participant) error
	MirrorParticipantRemoval(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID) error
}
