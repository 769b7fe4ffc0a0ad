// Package command contains the command review queue: commands captured from
// upstream responses wait for an operator verdict before dispatch.
package command

import (
	"context"
	"errors"
	"time"
)

// Status is a command's position in the review workflow:
// unverified -> verified|rejected -> sent|failed.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusVerified   Status = "verified"
	StatusRejected   Status = "rejected"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusUnverified, StatusVerified, StatusRejected, StatusSent, StatusFailed:
		return true
	}
	return false
}

// ErrNotFound is returned when a command id does not exist.
var ErrNotFound = errors.New("command not found")

// Command is one queued command payload under review.
type Command struct {
	ID          int64      `json:"id"`
	CommandJSON string     `json:"command_json"`
	Status      Status     `json:"status"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// Store is the persistence port for the review queue.
type Store interface {
	ListAll(ctx context.Context) ([]Command, error)
	ListByStatus(ctx context.Context, s Status) ([]Command, error)
	FindByID(ctx context.Context, id int64) (*Command, error)
	// Insert enqueues a payload as unverified and returns its id.
	Insert(ctx context.Context, commandJSON string) (int64, error)
	// UpdateStatus advances the workflow and stamps processed_at.
	UpdateStatus(ctx context.Context, id int64, s Status, notes string) error
	// ClearVerified deletes all verified commands, returning the count.
	ClearVerified(ctx context.Context) (int, error)
}
