package agent

import (
	"context"

	"github.com/google/uuid"

	"github.com/tawan/askai/internal/memory"
	"github.com/tawan/askai/internal/retrieval"
	"github.com/tawan/askai/internal/user"
)

// Generator produces one text completion. Satisfied by llm.Client and by
// the test mock.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Memory is the conversation/fact persistence the loop depends on.
// Satisfied by memory.Store.
type Memory interface {
	CreateConversation(ctx context.Context, userID uuid.UUID) (memory.Conversation, error)
	Messages(ctx context.Context, conversationID uuid.UUID, limit int) ([]memory.Message, error)
	AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string) error
	UpdateConversationTitle(ctx context.Context, conversationID uuid.UUID, title string) error
	CreateFact(ctx context.Context, fact memory.Fact) error
	UserFacts(ctx context.Context, userID uuid.UUID, limit int) ([]memory.Fact, error)
}

// Users resolves identities and approval preferences. Satisfied by
// user.Store.
type Users interface {
	GetOrCreate(ctx context.Context, userCode string) (user.User, error)
	Preferences(ctx context.Context, userID uuid.UUID) (user.Preferences, error)
	AutoApprove(ctx context.Context, userID uuid.UUID, toolName string) (bool, error)
}

// Retriever runs vector search for planner context. Satisfied by
// retrieval.Store.
type Retriever interface {
	Docs(ctx context.Context, query string, topK int) ([]retrieval.DocChunk, error)
	Dictionary(ctx context.Context, query string, topK int) ([]retrieval.DictEntry, error)
}

// Reranker scores retrieved texts against the query. Satisfied by
// retrieval.Reranker; implementations must degrade to zero scores rather
// than fail.
type Reranker interface {
	Scores(ctx context.Context, query string, texts []string) []float64
}
