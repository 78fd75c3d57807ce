// Package user manages anonymous user identities and per-user preferences,
// including the auto-approve tool policy consulted by the agent executor.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUserNotFound indicates no user exists for the given id or code.
var ErrUserNotFound = errors.New("user not found")

// Default preference values for newly created users.
const (
	DefaultLanguage = "th"
	DefaultTone     = "friendly"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// User is an anonymous identity keyed by an opaque user code.
type User struct {
	ID         uuid.UUID `json:"id"`
	UserCode   string    `json:"userCode"`
	Name       *string   `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// Preferences holds per-user response and approval settings.
type Preferences struct {
	UserID             uuid.UUID `json:"userId"`
	Language           string    `json:"language"`
	ResponseTone       string    `json:"responseTone"`
	AutoApproveTools   []string  `json:"autoApproveTools"`
	CustomInstructions string    `json:"customInstructions"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// UpdatePreferencesInput carries optional preference changes; nil fields
// keep the stored value.
type UpdatePreferencesInput struct {
	Language           *string
	ResponseTone       *string
	AutoApproveTools   []string
	CustomInstructions *string
}

// Store is the Postgres-backed user store.
type Store struct {
	q         Querier
	safeTools []string
	logger    *slog.Logger
}

// NewStore creates a user Store. safeTools are tool names approved for every
// user without consulting preferences; read-only tools only.
func NewStore(q Querier, safeTools []string, logger *slog.Logger) (*Store, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{q: q, safeTools: slices.Clone(safeTools), logger: logger}, nil
}

// GetOrCreate resolves a user by code, creating one (with default
// preferences) when the code is unknown or empty.
func (s *Store) GetOrCreate(ctx context.Context, userCode string) (User, error) {
	if userCode != "" {
		var u User
		err := s.q.QueryRow(ctx, `
			UPDATE users SET last_seen_at = now()
			WHERE user_code = $1
			RETURNING id, user_code, name, created_at, last_seen_at`,
			userCode).Scan(&u.ID, &u.UserCode, &u.Name, &u.CreatedAt, &u.LastSeenAt)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("looking up user: %w", err)
		}
	}

	id := uuid.New()
	code := userCode
	if code == "" {
		code = "user_" + id.String()[:8]
	}

	var u User
	err := s.q.QueryRow(ctx, `
		INSERT INTO users (id, user_code)
		VALUES ($1, $2)
		RETURNING id, user_code, name, created_at, last_seen_at`,
		id, code).Scan(&u.ID, &u.UserCode, &u.Name, &u.CreatedAt, &u.LastSeenAt)
	if err != nil {
		return User{}, fmt.Errorf("creating user: %w", err)
	}

	if _, err := s.q.Exec(ctx, `
		INSERT INTO user_preferences (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`,
		u.ID); err != nil {
		return User{}, fmt.Errorf("creating default preferences: %w", err)
	}

	s.logger.Debug("user created", "user_id", u.ID, "user_code", u.UserCode)
	return u, nil
}

// Preferences returns the user's preferences, falling back to defaults when
// no row exists.
func (s *Store) Preferences(ctx context.Context, userID uuid.UUID) (Preferences, error) {
	var (
		p      Preferences
		custom *string
	)
	err := s.q.QueryRow(ctx, `
		SELECT user_id, language, response_tone, auto_approve_tools, custom_instructions, updated_at
		FROM user_preferences
		WHERE user_id = $1`,
		userID).Scan(&p.UserID, &p.Language, &p.ResponseTone, &p.AutoApproveTools, &custom, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Preferences{
				UserID:       userID,
				Language:     DefaultLanguage,
				ResponseTone: DefaultTone,
			}, nil
		}
		return Preferences{}, fmt.Errorf("fetching preferences: %w", err)
	}
	if custom != nil {
		p.CustomInstructions = *custom
	}
	return p, nil
}

// UpdatePreferences applies the non-nil fields of input.
func (s *Store) UpdatePreferences(ctx context.Context, userID uuid.UUID, input UpdatePreferencesInput) (Preferences, error) {
	_, err := s.q.Exec(ctx, `
		UPDATE user_preferences SET
			language = COALESCE($2, language),
			response_tone = COALESCE($3, response_tone),
			auto_approve_tools = COALESCE($4, auto_approve_tools),
			custom_instructions = COALESCE($5, custom_instructions),
			updated_at = now()
		WHERE user_id = $1`,
		userID, input.Language, input.ResponseTone, input.AutoApproveTools, input.CustomInstructions)
	if err != nil {
		return Preferences{}, fmt.Errorf("updating preferences: %w", err)
	}
	return s.Preferences(ctx, userID)
}

// AutoApprove reports whether a tool runs without human approval for the
// given user. Globally safe tools always pass; otherwise the user's
// auto-approve list decides.
func (s *Store) AutoApprove(ctx context.Context, userID uuid.UUID, toolName string) (bool, error) {
	if slices.Contains(s.safeTools, toolName) {
		return true, nil
	}

	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(prefs.AutoApproveTools, toolName), nil
}
