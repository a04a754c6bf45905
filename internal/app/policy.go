package app

import (
	"time"

	"huddle/internal/domain"
)

// DefaultJoinGrace is how early a room accepts joins before its start.
const DefaultJoinGrace = 5 * time.Minute

// AvailabilityPolicy decides whether a room accepts joins at a given
// instant. Pure: no clocks, no I/O — callers pass `now` so the rule is
// trivially testable and never touches locale-dependent time handling.
type AvailabilityPolicy struct {
	JoinGrace time.Duration
}

func NewAvailabilityPolicy(grace time.Duration) AvailabilityPolicy {
	if grace <= 0 {
		grace = DefaultJoinGrace
	}
	return AvailabilityPolicy{JoinGrace: grace}
}

// Available reports whether the room is inside its window: active, at
// most JoinGrace before start, and not past the end (a zero end means
// open-ended).
func (p AvailabilityPolicy) Available(room *domain.Room, now time.Time) bool {
	if room == nil || !room.IsActive {
		return false
	}
	if now.Before(room.StartTime.Add(-p.JoinGrace)) {
		return false
	}
	if !room.EndTime.IsZero() && now.After(room.EndTime) {
		return false
	}
	return true
}
