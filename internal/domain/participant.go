package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxUserNameLen = 64

var (
	ErrUserNameEmpty   = errors.New("user name empty")
	ErrUserNameTooLong = errors.New("user name too long")
)

type ParticipantID string

// MediaField names one of the toggleable media flags.
type MediaField string

const (
	MediaVideo MediaField = "video"
	MediaAudio MediaField = "audio"
)

// Participant is a user's live presence inside a room. The id is stable
// across reconnects; the transport connection id is tracked by the
// presence registry, not here.
type Participant struct {
	ID           ParticipantID `json:"id"`
	UserName     string        `json:"userName"`
	VideoEnabled bool          `json:"isVideoEnabled"`
	AudioEnabled bool          `json:"isAudioEnabled"`
	Email        string        `json:"email,omitempty"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(id ParticipantID, userName string) (*Participant, error) {
	if userName == "" {
		return nil, ErrUserNameEmpty
	}
	if len(userName) > MaxUserNameLen {
		return nil, ErrUserNameTooLong
	}
	if id == "" {
		id = ParticipantID(uuid.NewString())
	}
	return &Participant{ID: id, UserName: userName}, nil
}

// SetMedia flips one of the media flags; unknown fields are rejected.
func (p *Participant) SetMedia(field MediaField, enabled bool) bool {
	switch field {
	case MediaVideo:
		p.VideoEnabled = enabled
	case MediaAudio:
		p.AudioEnabled = enabled
	default:
		return false
	}
	return true
}
