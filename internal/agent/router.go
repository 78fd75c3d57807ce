package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const routerSystemPrompt = `You are an LLM router for an agentic AI web chat.
Choose the single best expert for the user's query.

Experts:
- docs: questions about product docs, architecture, how-to, explanations grounded in documentation.
- sql: questions about databases, schemas, analytics, data dictionary, queries, KPIs.
- ops: questions about running/debugging/building/deploying the system, Docker, environment variables, file/code operations.
- security: questions about governance, RBAC, permissions, audit logs, privacy, threat modeling, safe tool use.
- review: code review requests, PR review, architecture review, bug-finding, refactor suggestions.

Rules:
- Return STRICT JSON only.
- Output shape: {"expertId": "docs|sql|ops|security|review", "rationale": "..."}
- Keep rationale under 2 sentences.`

// RouteResult is the router's expert selection.
type RouteResult struct {
	ExpertID  string `json:"expertId"`
	Rationale string `json:"rationale"`
}

// Router picks the expert persona for a query with a single model call.
type Router struct {
	gen    Generator
	logger *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(gen Generator, logger *slog.Logger) (*Router, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{gen: gen, logger: logger}, nil
}

type routeInput struct {
	Query string     `json:"query"`
	Hints routeHints `json:"hints"`
}

type routeHints struct {
	HasDocsContext bool `json:"hasDocsContext"`
	HasDictContext bool `json:"hasDictContext"`
}

// Route selects the best expert for the query. Any parse failure or an
// expert id outside the routable set falls back to the docs expert, so
// routing never fails a turn.
func (r *Router) Route(ctx context.Context, query, docsContext, dictContext string) RouteResult {
	fallback := RouteResult{ExpertID: DefaultExpertID, Rationale: "Fallback to docs expert."}

	payload, err := json.Marshal(routeInput{
		Query: query,
		Hints: routeHints{
			HasDocsContext: hasContext(docsContext),
			HasDictContext: hasContext(dictContext),
		},
	})
	if err != nil {
		r.logger.Warn("encoding route input", "error", err)
		return fallback
	}

	text, err := r.gen.Generate(ctx, routerSystemPrompt, string(payload))
	if err != nil {
		r.logger.Warn("routing model call failed, using docs expert", "error", err)
		return fallback
	}

	var result RouteResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		r.logger.Debug("route response not parseable", "error", err)
		return fallback
	}
	if !IsRoutable(result.ExpertID) {
		r.logger.Debug("router chose unknown expert", "expert_id", result.ExpertID)
		return fallback
	}
	return result
}

func hasContext(s string) bool {
	trimmed := strings.TrimSpace(s)
	return trimmed != "" && trimmed != "(ไม่มี)"
}
