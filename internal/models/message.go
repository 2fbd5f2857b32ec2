package models

import (
	"errors"
	"time"
)

// ErrIllegalTransition is returned when a status change would move a message
// out of a terminal status.
var ErrIllegalTransition = errors.New("illegal status transition")

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status is the delivery state of a message.
type Status string

const (
	StatusDelivered      Status = "delivered"
	StatusPendingOffline Status = "pending_offline"
	StatusFailed         Status = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDelivered, StatusPendingOffline, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a message may move from one status to another.
// Only pending_offline -> delivered and pending_offline -> failed are allowed.
func CanTransition(from, to Status) bool {
	return from == StatusPendingOffline && to.Terminal()
}

// Message is one turn in a conversation.
type Message struct {
	ID              string    `json:"id"` // ULID
	Role            Role      `json:"role"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
	Language        string    `json:"language"`
	Status          Status    `json:"status"`
	Confidence      *float64  `json:"confidence,omitempty"`       // assistant replies only
	ServerTimestamp string    `json:"server_timestamp,omitempty"` // as reported by the endpoint
}

// Before reports whether m sorts before other: by creation time, ties broken by id.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
