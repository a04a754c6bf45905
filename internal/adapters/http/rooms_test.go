package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/app"
	"huddle/internal/core"
	"huddle/internal/domain"
	"huddle/internal/store/memory"
)

func newTestRouter() (*gin.Engine, *memory.Store) {
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	rooms := &RoomController{Store: store, Policy: app.NewAvailabilityPolicy(5 * time.Minute)}

	r := gin.New()
	api := r.Group("/api")
	api.POST("/rooms", rooms.CreateRoom)
	api.POST("/rooms/schedule", rooms.ScheduleRoom)
	api.GET("/rooms", rooms.ListRooms)
	api.GET("/rooms/:roomId", rooms.GetRoom)
	api.POST("/rooms/:roomId/join", rooms.JoinRoom)
	api.POST("/rooms/:roomId/leave", rooms.LeaveRoom)
	api.POST("/rooms/:roomId/end", rooms.EndRoom)
	api.GET("/rooms/:roomId/messages", rooms.GetMessages)
	return r, store
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateRoom(t *testing.T) {
	r, _ := newTestRouter()

	w := doJSON(r, http.MethodPost, "/api/rooms", gin.H{
		"hostId":    "host-1",
		"startTime": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var room domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.NotEmpty(t, room.RoomID)
	assert.True(t, room.IsActive)
}

func TestCreateRoomMissingHost(t *testing.T) {
	r, _ := newTestRouter()
	w := doJSON(r, http.MethodPost, "/api/rooms", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRoomRejectsLocaleDates(t *testing.T) {
	r, _ := newTestRouter()
	// Only RFC3339 instants cross the boundary; DD/MM/YYYY must not parse.
	w := doJSON(r, http.MethodPost, "/api/rooms", gin.H{
		"hostId":    "host-1",
		"startTime": "14/03/2026 15:00",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRoomInvalidWindow(t *testing.T) {
	r, _ := newTestRouter()
	start := time.Now().UTC()
	w := doJSON(r, http.MethodPost, "/api/rooms", gin.H{
		"hostId":    "host-1",
		"startTime": start.Format(time.RFC3339),
		"endTime":   start.Add(-time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleRoomHonorsFutureWindow(t *testing.T) {
	r, _ := newTestRouter()
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)

	w := doJSON(r, http.MethodPost, "/api/rooms/schedule", gin.H{
		"hostId":        "host-1",
		"owner":         "ana@example.com",
		"title":         "planning",
		"startTime":     start.Format(time.RFC3339),
		"endTime":       start.Add(time.Hour).Format(time.RFC3339),
		"scheduleUsers": []string{"bruno@example.com"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var room domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	// The requested window survives verbatim; nothing snaps it to "now".
	assert.True(t, room.StartTime.Equal(start))
	require.NotNil(t, room.Schedule)
	assert.Equal(t, "planning", room.Schedule.Title)
	assert.Equal(t, []string{"bruno@example.com"}, room.Schedule.InvitedUsers)
}

func TestGetRoomNotFound(t *testing.T) {
	r, _ := newTestRouter()
	w := doJSON(r, http.MethodGet, "/api/rooms/zzz-0000-zzz", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinAndLeaveRoom(t *testing.T) {
	r, store := newTestRouter()
	room, err := store.CreateRoom(context.Background(), core.CreateRoomParams{HostID: "host-1"})
	require.NoError(t, err)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/api/rooms/%s/join", room.RoomID), gin.H{
		"id":             "u1",
		"userName":       "Ana",
		"isVideoEnabled": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var joined domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &joined))
	require.Len(t, joined.Participants, 1)
	assert.Equal(t, domain.ParticipantID("u1"), joined.Participants[0].ID)
	assert.True(t, joined.Participants[0].VideoEnabled)

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/api/rooms/%s/leave", room.RoomID), gin.H{
		"participantId": "u1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var left domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &left))
	assert.Empty(t, left.Participants)
}

func TestJoinRoomMissingUserName(t *testing.T) {
	r, store := newTestRouter()
	room, err := store.CreateRoom(context.Background(), core.CreateRoomParams{HostID: "host-1"})
	require.NoError(t, err)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/api/rooms/%s/join", room.RoomID), gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJoinRoomBeforeWindow(t *testing.T) {
	r, store := newTestRouter()
	// Starts in an hour; the five-minute grace does not reach it.
	start := time.Now().UTC().Add(time.Hour)
	room, err := store.CreateRoom(context.Background(), core.CreateRoomParams{
		HostID:    "host-1",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	})
	require.NoError(t, err)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/api/rooms/%s/join", room.RoomID), gin.H{
		"userName": "Ana",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestJoinUnknownRoom(t *testing.T) {
	r, _ := newTestRouter()
	w := doJSON(r, http.MethodPost, "/api/rooms/zzz-0000-zzz/join", gin.H{"userName": "Ana"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEndRoomFlow(t *testing.T) {
	r, store := newTestRouter()
	room, err := store.CreateRoom(context.Background(), core.CreateRoomParams{HostID: "host-1"})
	require.NoError(t, err)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/api/rooms/%s/end", room.RoomID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var ended domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ended))
	assert.False(t, ended.IsActive)
}

func TestListAndMessages(t *testing.T) {
	r, store := newTestRouter()
	room, err := store.CreateRoom(context.Background(), core.CreateRoomParams{HostID: "host-1"})
	require.NoError(t, err)
	_, err = store.SaveMessage(context.Background(), room.RoomID, "u1", "Ana", "hi")
	require.NoError(t, err)

	w := doJSON(r, http.MethodGet, "/api/rooms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rooms []domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rooms))
	assert.Len(t, rooms, 1)

	w = doJSON(r, http.MethodGet, fmt.Sprintf("/api/rooms/%s/messages", room.RoomID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []domain.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}
