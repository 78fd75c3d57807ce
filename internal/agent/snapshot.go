package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSnapshotNotFound indicates no suspended turn exists for an approval id.
var ErrSnapshotNotFound = errors.New("suspended turn not found")

// StateStore persists suspended turn state across the approval gap, keyed
// by the approval id the turn is waiting on.
type StateStore interface {
	Save(ctx context.Context, approvalID uuid.UUID, st *State) error
	Load(ctx context.Context, approvalID uuid.UUID) (*State, error)
	Delete(ctx context.Context, approvalID uuid.UUID) error
}

// MemStateStore keeps snapshots in process memory. Pairs with the
// in-memory approval gate for single-process deployments and tests.
type MemStateStore struct {
	mu     sync.Mutex
	states map[uuid.UUID][]byte
}

// NewMemStateStore creates an empty in-memory snapshot store.
func NewMemStateStore() *MemStateStore {
	return &MemStateStore{states: make(map[uuid.UUID][]byte)}
}

// Save stores a deep copy of the state via its JSON form.
func (s *MemStateStore) Save(_ context.Context, approvalID uuid.UUID, st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[approvalID] = raw
	return nil
}

// Load returns the suspended state for an approval id.
func (s *MemStateStore) Load(_ context.Context, approvalID uuid.UUID) (*State, error) {
	s.mu.Lock()
	raw, ok := s.states[approvalID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, approvalID)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decoding state snapshot: %w", err)
	}
	return &st, nil
}

// Delete drops the snapshot; no-op when absent.
func (s *MemStateStore) Delete(_ context.Context, approvalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, approvalID)
	return nil
}

// snapshotQuerier is the subset of pgxpool.Pool the Postgres store needs.
type snapshotQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStateStore is the Postgres snapshot store. Suspended turns survive
// restarts and can be resumed by any replica.
type PGStateStore struct {
	q      snapshotQuerier
	logger *slog.Logger
}

// NewPGStateStore creates a Postgres snapshot store.
func NewPGStateStore(q snapshotQuerier, logger *slog.Logger) (*PGStateStore, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStateStore{q: q, logger: logger}, nil
}

// Save upserts the snapshot for an approval id.
func (s *PGStateStore) Save(ctx context.Context, approvalID uuid.UUID, st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state snapshot: %w", err)
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO agent_states (approval_id, state)
		VALUES ($1, $2)
		ON CONFLICT (approval_id) DO UPDATE SET state = EXCLUDED.state`,
		approvalID, raw)
	if err != nil {
		return fmt.Errorf("saving state snapshot: %w", err)
	}
	return nil
}

// Load returns the suspended state for an approval id.
func (s *PGStateStore) Load(ctx context.Context, approvalID uuid.UUID) (*State, error) {
	var raw []byte
	err := s.q.QueryRow(ctx, `
		SELECT state FROM agent_states WHERE approval_id = $1`,
		approvalID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, approvalID)
		}
		return nil, fmt.Errorf("loading state snapshot: %w", err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decoding state snapshot: %w", err)
	}
	return &st, nil
}

// Delete drops the snapshot; no-op when absent.
func (s *PGStateStore) Delete(ctx context.Context, approvalID uuid.UUID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM agent_states WHERE approval_id = $1`, approvalID); err != nil {
		return fmt.Errorf("deleting state snapshot: %w", err)
	}
	return nil
}
