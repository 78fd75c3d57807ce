package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres-backed Gate. The compare-and-set in Resolve is a
// single UPDATE guarded by the current status, so it stays correct across
// restarts and multiple replicas.
type Store struct {
	q      Querier
	logger *slog.Logger
}

// NewStore creates a Postgres gate.
func NewStore(q Querier, logger *slog.Logger) (*Store, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{q: q, logger: logger}, nil
}

// Create inserts a new pending call.
func (s *Store) Create(ctx context.Context, call PendingToolCall) error {
	input, err := json.Marshal(call.Input)
	if err != nil {
		return fmt.Errorf("encoding tool input: %w", err)
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO tool_approvals (id, tool_name, input, status)
		VALUES ($1, $2, $3, $4)`,
		call.ID, call.ToolName, input, StatusPending)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateID, call.ID)
		}
		return fmt.Errorf("inserting pending call: %w", err)
	}

	s.logger.Debug("pending tool call created", "id", call.ID, "tool", call.ToolName)
	return nil
}

// Get returns the call with the given id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (PendingToolCall, error) {
	var (
		call  PendingToolCall
		input []byte
	)
	err := s.q.QueryRow(ctx, `
		SELECT id, tool_name, input, status, created_at
		FROM tool_approvals
		WHERE id = $1`,
		id).Scan(&call.ID, &call.ToolName, &input, &call.Status, &call.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingToolCall{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return PendingToolCall{}, fmt.Errorf("fetching pending call: %w", err)
	}

	if err := json.Unmarshal(input, &call.Input); err != nil {
		return PendingToolCall{}, fmt.Errorf("decoding tool input: %w", err)
	}
	return call, nil
}

// Resolve atomically transitions the call from `from` to `to`.
// The WHERE status = $from clause is the compare-and-set: a concurrent
// resolver that already moved the row leaves zero rows affected here.
func (s *Store) Resolve(ctx context.Context, id uuid.UUID, from, to Status) error {
	if !validTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	tag, err := s.q.Exec(ctx, `
		UPDATE tool_approvals
		SET status = $1, resolved_at = now()
		WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("resolving pending call: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a lost race.
		var current Status
		err := s.q.QueryRow(ctx, `SELECT status FROM tool_approvals WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("checking call status: %w", err)
		}
		return fmt.Errorf("%w: status is %s, expected %s", ErrNotPending, current, from)
	}

	s.logger.Debug("tool call resolved", "id", id, "from", from, "to", to)
	return nil
}
