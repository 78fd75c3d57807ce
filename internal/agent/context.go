package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tawan/askai/internal/memory"
	"github.com/tawan/askai/internal/retrieval"
	"github.com/tawan/askai/internal/user"
)

const (
	docsCandidates = 12
	docsInContext  = 4
	dictCandidates = 8
	dictInContext  = 4
	factsInContext = 10
	docTruncRunes  = 500
)

// ContextBuilder gathers retrieval results, user facts and preferences into
// the planner context. Docs, dictionary, facts and preferences are fetched
// concurrently; they are independent reads.
type ContextBuilder struct {
	retriever Retriever
	reranker  Reranker
	memory    Memory
	users     Users
	logger    *slog.Logger
}

// NewContextBuilder creates a ContextBuilder.
func NewContextBuilder(retriever Retriever, reranker Reranker, mem Memory, users Users, logger *slog.Logger) (*ContextBuilder, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if reranker == nil {
		return nil, fmt.Errorf("reranker is required")
	}
	if mem == nil {
		return nil, fmt.Errorf("memory is required")
	}
	if users == nil {
		return nil, fmt.Errorf("users is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextBuilder{
		retriever: retriever,
		reranker:  reranker,
		memory:    mem,
		users:     users,
		logger:    logger,
	}, nil
}

// Build assembles the planner context for the current state.
func (c *ContextBuilder) Build(ctx context.Context, st *State) (PlannerContext, error) {
	var (
		docs  []retrieval.DocChunk
		dict  []retrieval.DictEntry
		facts []memory.Fact
		prefs user.Preferences
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = c.retriever.Docs(gctx, st.Query, docsCandidates)
		if err != nil {
			return fmt.Errorf("retrieving docs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		dict, err = c.retriever.Dictionary(gctx, st.Query, dictCandidates)
		if err != nil {
			return fmt.Errorf("retrieving dictionary: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		facts, err = c.memory.UserFacts(gctx, st.UserID, factsInContext)
		if err != nil {
			return fmt.Errorf("fetching user facts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		prefs, err = c.users.Preferences(gctx, st.UserID)
		if err != nil {
			return fmt.Errorf("fetching preferences: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return PlannerContext{}, err
	}

	topDocs := c.rerankDocs(ctx, st.Query, docs)

	pctx := PlannerContext{
		Query:        st.Query,
		DocsContext:  formatDocs(topDocs),
		DictContext:  formatDict(dict),
		FactsContext: formatFacts(facts),
		Prefs: PromptPreferences{
			Language:           valueOr(prefs.Language, user.DefaultLanguage),
			ResponseTone:       valueOr(prefs.ResponseTone, user.DefaultTone),
			CustomInstructions: prefs.CustomInstructions,
		},
	}

	for _, m := range st.Messages {
		pctx.Recent = append(pctx.Recent, RecentMessage{Role: m.Role, Content: m.Content})
	}

	if st.Expert != "" {
		if expert, ok := ExpertByID(st.Expert); ok {
			pctx.Expert = &expert
		}
	}

	return pctx, nil
}

// rerankDocs reorders retrieval candidates by reranker score and keeps the
// top slice. Zero scores (reranker down) preserve the retrieval order
// because the sort is stable.
func (c *ContextBuilder) rerankDocs(ctx context.Context, query string, docs []retrieval.DocChunk) []retrieval.DocChunk {
	if len(docs) == 0 {
		return docs
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	scores := c.reranker.Scores(ctx, query, texts)

	type scored struct {
		doc   retrieval.DocChunk
		score float64
	}
	ranked := make([]scored, len(docs))
	for i, d := range docs {
		ranked[i] = scored{doc: d, score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	n := min(docsInContext, len(ranked))
	out := make([]retrieval.DocChunk, n)
	for i := range n {
		out[i] = ranked[i].doc
	}
	return out
}

func formatDocs(docs []retrieval.DocChunk) string {
	parts := make([]string, 0, len(docs))
	for i, d := range docs {
		parts = append(parts, fmt.Sprintf("DOC%d: %s\n%s", i+1, d.Title, truncateRunes(d.Content, docTruncRunes)))
	}
	return strings.Join(parts, "\n---\n")
}

func formatDict(entries []retrieval.DictEntry) string {
	n := min(dictInContext, len(entries))
	lines := make([]string, 0, n)
	for i := range n {
		e := entries[i]
		column := e.ColumnName
		if column == "" {
			column = "*"
		}
		lines = append(lines, fmt.Sprintf("DB%d: %s.%s.%s", i+1, e.SchemaName, e.TableName, column))
	}
	return strings.Join(lines, "\n")
}

func formatFacts(facts []memory.Fact) string {
	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, fmt.Sprintf("[%s] %s", f.FactType, f.Content))
	}
	return strings.Join(lines, "\n")
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
