// Package app wires the application together: config, logging, database,
// model access, stores, tools and the agent executor.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tawan/askai/internal/agent"
	"github.com/tawan/askai/internal/api"
	"github.com/tawan/askai/internal/approval"
	"github.com/tawan/askai/internal/config"
	"github.com/tawan/askai/internal/database"
	"github.com/tawan/askai/internal/llm"
	"github.com/tawan/askai/internal/log"
	"github.com/tawan/askai/internal/memory"
	"github.com/tawan/askai/internal/retrieval"
	"github.com/tawan/askai/internal/tools"
	"github.com/tawan/askai/internal/user"
)

// App is the application container. Everything the serve command needs
// hangs off it.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Memory   *memory.Store
	Users    *user.Store
	Gate     *approval.Store
	Registry *tools.Registry
	Executor *agent.Executor
}

// Setup builds the full dependency graph. The returned App must be closed.
func Setup(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := log.New(log.Config{
		Level: parseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)

	// The Google AI plugin reads the key from the environment.
	if cfg.GeminiAPIKey != "" {
		if err := os.Setenv("GEMINI_API_KEY", cfg.GeminiAPIKey); err != nil {
			return nil, fmt.Errorf("setting API key: %w", err)
		}
	}

	g, err := llm.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing model runtime: %w", err)
	}
	embedder := llm.NewEmbedder(g, cfg.EmbedderModel)

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Genkit:   g,
		Embedder: embedder,
		Pool:     pool,
	}
	if err := a.buildComponents(); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildComponents() error {
	cfg, logger, pool := a.Config, a.Logger, a.Pool

	gen, err := llm.NewClient(a.Genkit, cfg.Model, logger.With("component", "llm"))
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	mem, err := memory.NewStore(pool, logger.With("component", "memory"))
	if err != nil {
		return fmt.Errorf("creating memory store: %w", err)
	}
	users, err := user.NewStore(pool, cfg.AutoApproveTools, logger.With("component", "user"))
	if err != nil {
		return fmt.Errorf("creating user store: %w", err)
	}
	gate, err := approval.NewStore(pool, logger.With("component", "approval"))
	if err != nil {
		return fmt.Errorf("creating approval gate: %w", err)
	}
	states, err := agent.NewPGStateStore(pool, logger.With("component", "snapshots"))
	if err != nil {
		return fmt.Errorf("creating state store: %w", err)
	}
	retriever, err := retrieval.NewStore(pool, a.Embedder, logger.With("component", "retrieval"))
	if err != nil {
		return fmt.Errorf("creating retrieval store: %w", err)
	}
	reranker := retrieval.NewReranker(cfg.RerankURL, logger.With("component", "rerank"))

	registry, err := tools.NewRegistry(
		tools.NewSalesSummary(pool, logger.With("tool", "getSalesSummary")),
		tools.NewOrderStatusCounts(pool, logger.With("tool", "getOrderStatusCounts")),
		tools.NewOrders(pool, logger.With("tool", "getOrders")),
	)
	if err != nil {
		return fmt.Errorf("building tool registry: %w", err)
	}

	planner, err := agent.NewPlanner(gen, registry, logger.With("component", "planner"))
	if err != nil {
		return fmt.Errorf("creating planner: %w", err)
	}
	router, err := agent.NewRouter(gen, logger.With("component", "router"))
	if err != nil {
		return fmt.Errorf("creating router: %w", err)
	}
	reflector, err := agent.NewReflector(gen, logger.With("component", "reflector"))
	if err != nil {
		return fmt.Errorf("creating reflector: %w", err)
	}
	contexts, err := agent.NewContextBuilder(retriever, reranker, mem, users, logger.With("component", "context"))
	if err != nil {
		return fmt.Errorf("creating context builder: %w", err)
	}

	executor, err := agent.NewExecutor(
		agent.Config{MaxIterations: cfg.MaxIterations, MultiAgent: cfg.MultiAgent},
		agent.Deps{
			Planner:   planner,
			Router:    router,
			Reflector: reflector,
			Registry:  registry,
			Gate:      gate,
			Memory:    mem,
			Users:     users,
			States:    states,
			Contexts:  contexts,
			Logger:    logger.With("component", "executor"),
		})
	if err != nil {
		return fmt.Errorf("creating executor: %w", err)
	}

	a.Memory = mem
	a.Users = users
	a.Gate = gate
	a.Registry = registry
	a.Executor = executor
	return nil
}

// NewAPIServer builds the HTTP server on top of the container.
func (a *App) NewAPIServer() (*api.Server, error) {
	return api.NewServer(api.Config{
		TurnTimeout: a.Config.TurnTimeout,
		CORSOrigins: a.Config.CORSOrigins,
		TrustProxy:  a.Config.TrustProxy,
		RateBurst:   a.Config.RateBurst,
	}, a.Executor, a.Gate, a.Memory, a.Users, a.Pool, a.Logger.With("component", "api"))
}

// Close releases the container's resources.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
