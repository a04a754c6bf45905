package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"huddle/internal/app"
	"huddle/internal/core"
	"huddle/internal/domain"
)

// RoomController serves the REST room lifecycle. All times on the wire
// are RFC3339 instants; locale-formatted date strings are rejected by
// the JSON time decoding, on purpose.
type RoomController struct {
	Store  core.RoomStore
	Policy app.AvailabilityPolicy
}

type createRoomRequest struct {
	HostID    string    `json:"hostId" binding:"required"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type scheduleRoomRequest struct {
	HostID       string    `json:"hostId" binding:"required"`
	StartTime    time.Time `json:"startTime" binding:"required"`
	EndTime      time.Time `json:"endTime"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Owner        string    `json:"owner" binding:"required"`
	InvitedUsers []string  `json:"scheduleUsers"`
}

// CreateRoom creates an ad-hoc room; a missing startTime means "now".
func (ctl *RoomController) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	room, err := ctl.Store.CreateRoom(c.Request.Context(), core.CreateRoomParams{
		HostID:    req.HostID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// ScheduleRoom creates a room with schedule metadata. Future windows
// are honored verbatim; joins before the grace period are rejected at
// join time by the availability policy.
func (ctl *RoomController) ScheduleRoom(c *gin.Context) {
	var req scheduleRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	room, err := ctl.Store.CreateRoom(c.Request.Context(), core.CreateRoomParams{
		HostID:    req.HostID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Schedule: &domain.ScheduleInfo{
			Title:        req.Title,
			Description:  req.Description,
			Owner:        req.Owner,
			InvitedUsers: req.InvitedUsers,
		},
	})
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (ctl *RoomController) ListRooms(c *gin.Context) {
	rooms, err := ctl.Store.ListRooms(c.Request.Context())
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (ctl *RoomController) GetRoom(c *gin.Context) {
	room, err := ctl.Store.FindByRoomID(c.Request.Context(), domain.RoomID(c.Param("roomId")))
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (ctl *RoomController) EndRoom(c *gin.Context) {
	room, err := ctl.Store.EndRoom(c.Request.Context(), domain.RoomID(c.Param("roomId")))
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type joinRoomRequest struct {
	ID           string `json:"id"`
	UserName     string `json:"userName" binding:"required"`
	VideoEnabled bool   `json:"isVideoEnabled"`
	AudioEnabled bool   `json:"isAudioEnabled"`
	Email        string `json:"email"`
}

// JoinRoom records a participant on the stored room. The live relay
// keeps its own presence over the socket; this is the REST-side mirror
// the room listing exposes. Availability is gated the same way the
// socket join is.
func (ctl *RoomController) JoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	roomID := domain.RoomID(c.Param("roomId"))
	room, err := ctl.Store.FindByRoomID(c.Request.Context(), roomID)
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	if !ctl.Policy.Available(room, time.Now()) {
		ctl.writeError(c, domain.ErrRoomUnavailable)
		return
	}
	p, err := domain.NewParticipant(domain.ParticipantID(req.ID), req.UserName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p.VideoEnabled = req.VideoEnabled
	p.AudioEnabled = req.AudioEnabled
	p.Email = req.Email
	if err := ctl.Store.MirrorParticipant(c.Request.Context(), roomID, *p); err != nil {
		ctl.writeError(c, err)
		return
	}
	room, err = ctl.Store.FindByRoomID(c.Request.Context(), roomID)
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type leaveRoomRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

func (ctl *RoomController) LeaveRoom(c *gin.Context) {
	var req leaveRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	roomID := domain.RoomID(c.Param("roomId"))
	if _, err := ctl.Store.FindByRoomID(c.Request.Context(), roomID); err != nil {
		ctl.writeError(c, err)
		return
	}
	if err := ctl.Store.MirrorParticipantRemoval(c.Request.Context(), roomID, domain.ParticipantID(req.ParticipantID)); err != nil {
		ctl.writeError(c, err)
		return
	}
	room, err := ctl.Store.FindByRoomID(c.Request.Context(), roomID)
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (ctl *RoomController) GetMessages(c *gin.Context) {
	messages, err := ctl.Store.GetMessages(c.Request.Context(), domain.RoomID(c.Param("roomId")))
	if err != nil {
		ctl.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (ctl *RoomController) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case errors.Is(err, domain.ErrRoomUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "room not available"})
	case errors.Is(err, domain.ErrMissingHost), errors.Is(err, domain.ErrInvalidWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg("room store error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
