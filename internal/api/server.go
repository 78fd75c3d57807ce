package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tawan/askai/internal/agent"
	"github.com/tawan/askai/internal/approval"
	"github.com/tawan/askai/internal/memory"
	"github.com/tawan/askai/internal/user"
)

const (
	defaultRateRPS      = 10
	conversationsLimit  = 50
	messagesLimit       = 200
	maxQueryRunes       = 4000
	maxRequestBodyBytes = 64 << 10
)

// Runner executes and resumes agent turns. Satisfied by agent.Executor.
type Runner interface {
	Run(ctx context.Context, userCode string, conversationID *uuid.UUID, query string, emit agent.EmitFunc) error
	Resume(ctx context.Context, approvalID uuid.UUID, approved bool, emit agent.EmitFunc) error
}

// ConversationStore serves conversation history. Satisfied by memory.Store.
type ConversationStore interface {
	Conversations(ctx context.Context, userID uuid.UUID, limit int) ([]memory.Conversation, error)
	Messages(ctx context.Context, conversationID uuid.UUID, limit int) ([]memory.Message, error)
}

// UserStore resolves identities and preferences. Satisfied by user.Store.
type UserStore interface {
	GetOrCreate(ctx context.Context, userCode string) (user.User, error)
	Preferences(ctx context.Context, userID uuid.UUID) (user.Preferences, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, input user.UpdatePreferencesInput) (user.Preferences, error)
}

// Pinger reports backing-store health for the readiness probe. Satisfied by
// pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config tunes the HTTP layer.
type Config struct {
	// TurnTimeout bounds a single agent turn, including resumed ones.
	TurnTimeout time.Duration

	CORSOrigins []string
	TrustProxy  bool
	RateRPS     float64
	RateBurst   int
}

// Server is the HTTP API server.
type Server struct {
	cfg    Config
	runner Runner
	gate   approval.Gate
	convs  ConversationStore
	users  UserStore
	db     Pinger
	logger *slog.Logger
	limit  *rateLimiter
}

// NewServer creates the API server.
func NewServer(cfg Config, runner Runner, gate approval.Gate, convs ConversationStore, users UserStore, db Pinger, logger *slog.Logger) (*Server, error) {
	switch {
	case runner == nil:
		return nil, fmt.Errorf("runner is required")
	case gate == nil:
		return nil, fmt.Errorf("approval gate is required")
	case convs == nil:
		return nil, fmt.Errorf("conversation store is required")
	case users == nil:
		return nil, fmt.Errorf("user store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 90 * time.Second
	}
	if cfg.RateRPS <= 0 {
		cfg.RateRPS = defaultRateRPS
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}

	return &Server{
		cfg:    cfg,
		runner: runner,
		gate:   gate,
		convs:  convs,
		users:  users,
		db:     db,
		logger: logger,
		limit:  newRateLimiter(cfg.RateRPS, cfg.RateBurst, cfg.TrustProxy),
	}, nil
}

// Handler builds the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/ask", s.handleAsk)
	mux.HandleFunc("POST /api/v1/approvals/{id}/approve", s.approvalHandler(true))
	mux.HandleFunc("POST /api/v1/approvals/{id}/reject", s.approvalHandler(false))
	mux.HandleFunc("GET /api/v1/conversations", s.handleConversations)
	mux.HandleFunc("GET /api/v1/conversations/{id}/messages", s.handleMessages)
	mux.HandleFunc("GET /api/v1/preferences", s.handleGetPreferences)
	mux.HandleFunc("PUT /api/v1/preferences", s.handleUpdatePreferences)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	var h http.Handler = mux
	h = s.limit.middleware(h)
	h = corsMiddleware(s.cfg.CORSOrigins)(h)
	h = loggingMiddleware(s.logger)(h)
	h = requestIDMiddleware(h)
	h = recoveryMiddleware(s.logger)(h)
	return h
}
