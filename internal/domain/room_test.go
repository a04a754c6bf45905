package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-f]{3}-[0-9a-f]{4}-[0-9a-f]{3}$`)
	seen := make(map[RoomID]bool)
	for i := 0; i < 100; i++ {
		id := NewRoomID()
		assert.Regexp(t, pattern, string(id))
		assert.False(t, seen[id], "duplicate room id %s", id)
		seen[id] = true
	}
}

func TestNewRoomValidation(t *testing.T) {
	start := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	_, err := NewRoom("", start, time.Time{})
	assert.ErrorIs(t, err, ErrMissingHost)

	_, err = NewRoom("host-1", start, start.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewRoom("host-1", start, start)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	room, err := NewRoom("host-1", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, room.IsActive)
	assert.NotEmpty(t, room.RoomID)
	assert.Empty(t, room.Participants)
}

func TestNewRoomOpenEnded(t *testing.T) {
	room, err := NewRoom("host-1", time.Now(), time.Time{})
	require.NoError(t, err)
	assert.True(t, room.EndTime.IsZero())
}

func TestNewParticipant(t *testing.T) {
	_, err := NewParticipant("u1", "")
	assert.ErrorIs(t, err, ErrUserNameEmpty)

	long := make([]byte, MaxUserNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = NewParticipant("u1", string(long))
	assert.ErrorIs(t, err, ErrUserNameTooLong)

	p, err := NewParticipant("", "Ana")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID, "participant id is generated when absent")

	p, err = NewParticipant("u1", "Ana")
	require.NoError(t, err)
	assert.Equal(t, ParticipantID("u1"), p.ID)
}

func TestSetMedia(t *testing.T) {
	p := Participant{ID: "u1", UserName: "Ana"}

	require.True(t, p.SetMedia(MediaVideo, true))
	assert.True(t, p.VideoEnabled)

	require.True(t, p.SetMedia(MediaAudio, true))
	assert.True(t, p.AudioEnabled)

	assert.False(t, p.SetMedia("screen", true))
}
