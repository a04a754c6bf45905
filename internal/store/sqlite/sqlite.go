// Package sqlite implements the durable RoomStore on modernc.org/sqlite
// (pure Go driver, blank-imported). Timestamps are stored as RFC3339
// UTC strings; message order ties are broken by the autoincrement seq.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"huddle/internal/core"
	"huddle/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	room_id    TEXT PRIMARY KEY,
	host_id    TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time   TEXT,
	is_active  INTEGER NOT NULL DEFAULT 1,
	schedule   TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS room_participants (
	room_id        TEXT NOT NULL,
	participant_id TEXT NOT NULL,
	user_name      TEXT NOT NULL,
	video_enabled  INTEGER NOT NULL DEFAULT 0,
	audio_enabled  INTEGER NOT NULL DEFAULT 0,
	email          TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (room_id, participant_id)
);
CREATE TABLE IF NOT EXISTS messages (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL UNIQUE,
	room_id   TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	user_name TEXT NOT NULL,
	content   TEXT NOT NULL,
	timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room_time ON messages(room_id, timestamp, seq);
`

type Store struct {
	db *sql.DB
}

var _ core.RoomStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The driver serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent mirror writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateRoom(ctx context.Context, params core.CreateRoomParams) (*domain.Room, error) {
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

	var schedule any
	if room.Schedule != nil {
		raw, err := json.Marshal(room.Schedule)
		if err != nil {
			return nil, fmt.Errorf("encode schedule: %w", err)
		}
		schedule = string(raw)
	}
	var end any
	if !room.EndTime.IsZero() {
		end = room.EndTime.UTC().Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rooms (room_id, host_id, start_time, end_time, is_active, schedule, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)`,
		room.RoomID,
		room.HostID,
		room.StartTime.UTC().Format(time.RFC3339Nano),
		end,
		schedule,
		room.CreatedAt.Format(time.RFC3339Nano),
		room.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return room, nil
}

func (s *Store) FindByRoomID(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT room_id, host_id, start_time, end_time, is_active, schedule, created_at, updated_at
		FROM rooms WHERE room_id = ?`, roomID)
	room, err := scanRoom(row)
	if err != nil {
		return nil, err
	}
	room.Participants, err = s.participants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Store) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, host_id, start_time, end_time, is_active, schedule, created_at, updated_at
		FROM rooms ORDER BY created_at, room_id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []*domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (s *Store) EndRoom(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rooms SET is_active = 0, updated_at = ? WHERE room_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), roomID)
	if err != nil {
		return nil, fmt.Errorf("end room: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.ErrRoomNotFound
	}
	return s.FindByRoomID(ctx, roomID)
}

func (s *Store) SaveMessage(ctx context.Context, roomID domain.RoomID, userID, userName, content string) (*domain.Message, error) {
	if _, err := s.FindByRoomID(ctx, roomID); err != nil {
		return nil, err
	}
	msg := &domain.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		UserName:  userName,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, user_id, user_name, content, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.RoomID, msg.UserID, msg.UserName, msg.Content,
		msg.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *Store) GetMessages(ctx context.Context, roomID domain.RoomID) ([]*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, user_id, user_name, content, timestamp
		FROM messages WHERE room_id = ? ORDER BY timestamp, seq`, roomID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	out := []*domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var ts string
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.UserName, &msg.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if msg.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse message timestamp: %w", err)
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

func (s *Store) MirrorParticipant(ctx context.Context, roomID domain.RoomID, p domain.Participant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_participants (room_id, participant_id, user_name, video_enabled, audio_enabled, email)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (room_id, participant_id) DO UPDATE SET
			user_name = excluded.user_name,
			video_enabled = excluded.video_enabled,
			audio_enabled = excluded.audio_enabled,
			email = excluded.email`,
		roomID, p.ID, p.UserName, boolToInt(p.VideoEnabled), boolToInt(p.AudioEnabled), p.Email)
	if err != nil {
		return fmt.Errorf("mirror participant: %w", err)
	}
	return nil
}

func (s *Store) MirrorParticipantRemoval(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM room_participants WHERE room_id = ? AND participant_id = ?`,
		roomID, participantID)
	if err != nil {
		return fmt.Errorf("mirror participant removal: %w", err)
	}
	return nil
}

func (s *Store) participants(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT participant_id, user_name, video_enabled, audio_enabled, email
		FROM room_participants WHERE room_id = ? ORDER BY participant_id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()

	out := []domain.Participant{}
	for rows.Next() {
		var p domain.Participant
		var video, audio int
		if err := rows.Scan(&p.ID, &p.UserName, &video, &audio, &p.Email); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.VideoEnabled = video != 0
		p.AudioEnabled = audio != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*domain.Room, error) {
	var room domain.Room
	var start, created, updated string
	var end, schedule sql.NullString
	var active int
	err := row.Scan(&room.RoomID, &room.HostID, &start, &end, &active, &schedule, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan room: %w", err)
	}
	room.IsActive = active != 0
	if room.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
		return nil, fmt.Errorf("parse start time: %w", err)
	}
	if end.Valid {
		if room.EndTime, err = time.Parse(time.RFC3339Nano, end.String); err != nil {
			return nil, fmt.Errorf("parse end time: %w", err)
		}
	}
	if room.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created at: %w", err)
	}
	if room.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parse updated at: %w", err)
	}
	if schedule.Valid && schedule.String != "" {
		var sched domain.ScheduleInfo
		if err := json.Unmarshal([]byte(schedule.String), &sched); err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
		room.Schedule = &sched
	}
	room.Participants = []domain.Participant{}
	return &room, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
