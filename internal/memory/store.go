// Package memory persists conversations, their messages, and long-lived
// user facts extracted after each answered turn.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConversationNotFound indicates no conversation exists for the id.
var ErrConversationNotFound = errors.New("conversation not found")

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conversation is one chat thread owned by a user.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one turn in a conversation. Role is "user" or "assistant".
type Message struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Fact is an extracted piece of long-term memory about a user.
// FactType is one of preference, context, entity, summary.
type Fact struct {
	ID             int64     `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	FactType       string    `json:"factType"`
	Content        string    `json:"content"`
	Importance     float64   `json:"importance"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store is the Postgres-backed memory store.
type Store struct {
	q      Querier
	logger *slog.Logger
}

// NewStore creates a memory Store.
func NewStore(q Querier, logger *slog.Logger) (*Store, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{q: q, logger: logger}, nil
}

// CreateConversation starts a new conversation for the user.
func (s *Store) CreateConversation(ctx context.Context, userID uuid.UUID) (Conversation, error) {
	conv := Conversation{ID: uuid.New(), UserID: userID}
	err := s.q.QueryRow(ctx, `
		INSERT INTO conversations (id, user_id)
		VALUES ($1, $2)
		RETURNING title, created_at, updated_at`,
		conv.ID, userID).Scan(&conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	var conv Conversation
	err := s.q.QueryRow(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1`,
		id).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
		}
		return Conversation{}, fmt.Errorf("fetching conversation: %w", err)
	}
	return conv, nil
}

// Conversations lists the user's conversations, most recently updated first.
func (s *Store) Conversations(ctx context.Context, userID uuid.UUID, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	out := []Conversation{}
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading conversations: %w", err)
	}
	return out, nil
}

// UpdateConversationTitle sets the conversation title.
func (s *Store) UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE conversations SET title = $1, updated_at = now() WHERE id = $2`,
		title, id)
	if err != nil {
		return fmt.Errorf("updating conversation title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return nil
}

// AddMessage appends a message to a conversation and bumps its updated_at.
func (s *Store) AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO conversation_messages (conversation_id, role, content)
		VALUES ($1, $2, $3)`,
		conversationID, role, content)
	if err != nil {
		return fmt.Errorf("adding message: %w", err)
	}

	if _, err := s.q.Exec(ctx, `
		UPDATE conversations SET updated_at = now() WHERE id = $1`,
		conversationID); err != nil {
		s.logger.Warn("bumping conversation timestamp", "error", err, "conversation_id", conversationID)
	}
	return nil
}

// Messages returns the most recent messages in chronological order.
func (s *Store) Messages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.q.Query(ctx, `
		SELECT id, role, content, created_at FROM (
			SELECT id, role, content, created_at
			FROM conversation_messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}
	return out, nil
}

// CreateFact stores an extracted fact for later planner context.
func (s *Store) CreateFact(ctx context.Context, fact Fact) error {
	if fact.Importance == 0 {
		fact.Importance = 0.5
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO memory_facts (conversation_id, user_id, fact_type, content, importance)
		VALUES ($1, $2, $3, $4, $5)`,
		fact.ConversationID, fact.UserID, fact.FactType, fact.Content, fact.Importance)
	if err != nil {
		return fmt.Errorf("creating fact: %w", err)
	}
	return nil
}

// UserFacts returns the user's facts ordered by importance, then recency.
func (s *Store) UserFacts(ctx context.Context, userID uuid.UUID, limit int) ([]Fact, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.q.Query(ctx, `
		SELECT id, COALESCE(conversation_id, '00000000-0000-0000-0000-000000000000'::uuid),
		       user_id, fact_type, content, importance, created_at
		FROM memory_facts
		WHERE user_id = $1
		ORDER BY importance DESC, created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching user facts: %w", err)
	}
	defer rows.Close()

	out := []Fact{}
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.ConversationID, &f.UserID, &f.FactType, &f.Content, &f.Importance, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading facts: %w", err)
	}
	return out, nil
}
