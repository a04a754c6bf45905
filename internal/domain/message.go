package domain

import "time"

// Message is immutable once stored. Ordering is by Timestamp ascending;
// the store breaks ties by insertion order.
type Message struct {
	ID        string    `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
