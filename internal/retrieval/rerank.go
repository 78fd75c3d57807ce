package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const rerankTimeout = 5 * time.Second

// Reranker calls a TEI-style /rerank endpoint to score candidate texts
// against a query. Reranking is best-effort: any failure degrades to zero
// scores so retrieval order is preserved and the turn never fails here.
type Reranker struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewReranker creates a reranker client. An empty baseURL disables
// reranking (all scores zero).
func NewReranker(baseURL string, logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: rerankTimeout},
		logger:  logger,
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Scores returns one relevance score per input text, index-aligned.
// On any transport or decoding failure it returns all zeros.
func (r *Reranker) Scores(ctx context.Context, query string, texts []string) []float64 {
	scores := make([]float64, len(texts))
	if r.baseURL == "" || len(texts) == 0 {
		return scores
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		r.logger.Warn("encoding rerank request", "error", err)
		return scores
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		r.logger.Warn("building rerank request", "error", err)
		return scores
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("rerank service unavailable, keeping retrieval order", "error", err)
		return scores
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("rerank service error, keeping retrieval order",
			"status", resp.StatusCode)
		return scores
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		r.logger.Warn("decoding rerank response", "error", err)
		return scores
	}

	for _, res := range decoded.Results {
		if res.Index >= 0 && res.Index < len(scores) {
			scores[res.Index] = res.Score
		}
	}
	return scores
}

// String implements fmt.Stringer for debug logging.
func (r *Reranker) String() string {
	if r.baseURL == "" {
		return "reranker(disabled)"
	}
	return fmt.Sprintf("reranker(%s)", r.baseURL)
}
