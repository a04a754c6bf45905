package core

import (
	"encoding/json"

	"huddle/internal/domain"
)

type EventType string

const (
	EventParticipantJoined EventType = "participant-joined"
	EventParticipantLeft   EventType = "participant-left"
	EventMediaChanged      EventType = "participant-media-changed"
	EventRosterSnapshot    EventType = "roster-snapshot"
	EventMessagePosted     EventType = "message-posted"
	EventMessageBacklog    EventType = "message-backlog"
	EventRoomError         EventType = "room-error"
)

// Event is the closed set of payloads the relay emits. The unexported
// marker keeps the variant set sealed so every consumer can switch
// exhaustively over the kinds below.
type Event interface {
	Type() EventType
	isEvent()
}

type ParticipantJoined struct {
	RoomID      domain.RoomID      `json:"roomId"`
	Participant domain.Participant `json:"participant"`
}

type ParticipantLeft struct {
	RoomID        domain.RoomID        `json:"roomId"`
	ParticipantID domain.ParticipantID `json:"participantId"`
}

type MediaChanged struct {
	RoomID        domain.RoomID        `json:"roomId"`
	ParticipantID domain.ParticipantID `json:"participantId"`
	Field         domain.MediaField    `json:"field"`
	Enabled       bool                 `json:"enabled"`
}

type RosterSnapshot struct {
	RoomID       domain.RoomID        `json:"roomId"`
	Participants []domain.Participant `json:"participants"`
}

type MessagePosted struct {
	RoomID  domain.RoomID  `json:"roomId"`
	Message domain.Message `json:"message"`
}

type MessageBacklog struct {
	RoomID   domain.RoomID     `json:"roomId"`
	Messages []*domain.Message `json:"messages"`
}

type RoomError struct {
	RoomID domain.RoomID `json:"roomId,omitempty"`
	Error  string        `json:"error"`
}

func (ParticipantJoined) Type() EventType { return EventParticipantJoined }
func (ParticipantLeft) Type() EventType   { return EventParticipantLeft }
func (MediaChanged) Type() EventType      { return EventMediaChanged }
func (RosterSnapshot) Type() EventType    { return EventRosterSnapshot }
func (MessagePosted) Type() EventType     { return EventMessagePosted }
func (MessageBacklog) Type() EventType    { return EventMessageBacklog }
func (RoomError) Type() EventType         { return EventRoomError }

func (ParticipantJoined) isEvent() {}
func (ParticipantLeft) isEvent()   {}
func (MediaChanged) isEvent()      {}
func (RosterSnapshot) isEvent()    {}
func (MessagePosted) isEvent()     {}
func (MessageBacklog) isEvent()    {}
func (RoomError) isEvent()         {}

// Encode renders the wire envelope: the payload fields with a leading
// "type" tag spliced in. Field names are part of the client contract and
// must stay stable.
func Encode(ev Event) (Frame, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	head, err := json.Marshal(struct {
		Type EventType `json:"type"`
	}{ev.Type()})
	if err != nil {
		return nil, err
	}
	if len(payload) <= 2 { // empty object
		return head, nil
	}
	buf := make([]byte, 0, len(head)+len(payload))
	buf = append(buf, head[:len(head)-1]...)
	buf = append(buf, ',')
	buf = append(buf, payload[1:]...)
	return buf, nil
}
