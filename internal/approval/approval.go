// Package approval implements the human-in-the-loop gate for tool
// execution. A tool call that is not auto-approved suspends the agent turn
// and parks here until a human resolves it.
//
// Status transitions are strict:
//
//	pending → approved → executed
//	pending → rejected
//
// Resolve is an atomic compare-and-set: when two operators race on the same
// call, exactly one transition wins and the loser gets ErrNotPending.
package approval

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a pending tool call.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
)

var (
	// ErrNotFound indicates no pending tool call exists for the given id.
	ErrNotFound = errors.New("pending call not found")

	// ErrDuplicateID indicates a call with the same id already exists.
	ErrDuplicateID = errors.New("duplicate approval id")

	// ErrNotPending indicates the call is not in the expected status for
	// the requested transition (e.g. it was already resolved by a racer).
	ErrNotPending = errors.New("call not in expected status")

	// ErrInvalidTransition indicates the requested transition is not one of
	// the allowed lifecycle edges.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// PendingToolCall is one gated tool invocation.
type PendingToolCall struct {
	ID        uuid.UUID      `json:"id"`
	ToolName  string         `json:"toolName"`
	Input     map[string]any `json:"input"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Gate is the approval store contract. Both the Postgres store and the
// in-memory store implement it.
type Gate interface {
	// Create registers a new call in StatusPending.
	// Returns ErrDuplicateID if the id is already taken.
	Create(ctx context.Context, call PendingToolCall) error

	// Get returns the call with the given id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (PendingToolCall, error)

	// Resolve atomically moves the call from status `from` to status `to`.
	// Returns ErrNotFound if the id does not exist, ErrInvalidTransition if
	// the edge is not allowed, and ErrNotPending if the call is no longer
	// in status `from`.
	Resolve(ctx context.Context, id uuid.UUID, from, to Status) error
}

// validTransition reports whether from→to is an allowed lifecycle edge.
func validTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusExecuted
	default:
		return false
	}
}
