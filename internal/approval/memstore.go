package approval

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory Gate for single-process deployments and tests.
// All operations are guarded by one mutex, which makes Resolve a true
// compare-and-set within the process.
type MemStore struct {
	mu    sync.Mutex
	calls map[uuid.UUID]PendingToolCall
}

// NewMemStore creates an empty in-memory gate.
func NewMemStore() *MemStore {
	return &MemStore{calls: make(map[uuid.UUID]PendingToolCall)}
}

// Create registers a new pending call.
func (s *MemStore) Create(_ context.Context, call PendingToolCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.calls[call.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, call.ID)
	}

	call.Status = StatusPending
	call.Input = maps.Clone(call.Input)
	s.calls[call.ID] = call
	return nil
}

// Get returns the call with the given id.
func (s *MemStore) Get(_ context.Context, id uuid.UUID) (PendingToolCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok {
		return PendingToolCall{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	call.Input = maps.Clone(call.Input)
	return call, nil
}

// Resolve atomically transitions the call from `from` to `to`.
func (s *MemStore) Resolve(_ context.Context, id uuid.UUID, from, to Status) error {
	if !validTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if call.Status != from {
		return fmt.Errorf("%w: status is %s, expected %s", ErrNotPending, call.Status, from)
	}

	call.Status = to
	s.calls[id] = call
	return nil
}
