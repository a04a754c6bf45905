// Package domain contains entities without logic, just meta-data
// and the small constructors that validate it.
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomUnavailable = errors.New("room not available")
	ErrMissingHost     = errors.New("host id required")
	ErrInvalidWindow   = errors.New("end time must be after start time")
)

type RoomID string

// ScheduleInfo is informational only; the core never enforces the
// invited-user list.
type ScheduleInfo struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Owner        string   `json:"owner"`
	InvitedUsers []string `json:"scheduleUsers"`
}

type Room struct {
	RoomID       RoomID        `json:"roomId"`
	HostID       string        `json:"hostId"`
	Participants []Participant `json:"participants"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime,omitzero"`
	IsActive     bool          `json:"isActive"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Schedule     *ScheduleInfo `json:"scheduleInfo,omitempty"`
}

// NewRoom validates the lifecycle fields. A zero endTime means the room
// stays open until explicitly ended.
func NewRoom(hostID string, startTime, endTime time.Time) (*Room, error) {
	if hostID == "" {
		return nil, ErrMissingHost
	}
	if !endTime.IsZero() && !endTime.After(startTime) {
		return nil, ErrInvalidWindow
	}
	return &Room{
		RoomID:       NewRoomID(),
		HostID:       hostID,
		Participants: []Participant{},
		StartTime:    startTime,
		EndTime:      endTime,
		IsActive:     true,
	}, nil
}

// NewRoomID generates a room id in the xxx-xxxx-xxx form, lowercase,
// carved out of a uuid with the dashes stripped.
func NewRoomID() RoomID {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return RoomID(strings.ToLower(id[0:3] + "-" + id[3:7] + "-" + id[7:10]))
}
