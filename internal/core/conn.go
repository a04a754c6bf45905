// Package core defines the contracts between the presence core and its
// collaborators: the storage layer, the transport endpoints, and the
// closed set of events the relay emits.
package core

import "errors"

// ErrUnknownConnection marks operations against a connection that has no
// presence binding. Callers treat it as a benign no-op.
var ErrUnknownConnection = errors.New("unknown connection")

// ConnectionID identifies one transport-level connection. It changes on
// every (re)connect, unlike the participant id.
type ConnectionID string

// Frame is an already-encoded outbound payload.
type Frame []byte

// EventSender is the outbound half of a connection.
// Owned by the adapter; the adapter must Close() it.
type EventSender interface {
	// TrySend enqueues without blocking; it fails when the send queue is
	// full or the connection is closed.
	TrySend(Frame) error
	Close()
}
