// Package retrieval provides vector search over documentation chunks and
// the database dictionary, plus a reranker client for result ordering.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// VectorDimension is the embedding size stored in the vector columns.
const VectorDimension int32 = 768

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DocChunk is one retrieved documentation fragment.
type DocChunk struct {
	ID      int64   `json:"id"`
	DocID   string  `json:"docId"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Heading string  `json:"heading"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// DictEntry is one retrieved data-dictionary entry.
type DictEntry struct {
	ID         int64   `json:"id"`
	SchemaName string  `json:"schemaName"`
	TableName  string  `json:"tableName"`
	ColumnName string  `json:"columnName"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// Store runs cosine-similarity search against the pgvector tables.
type Store struct {
	q        Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a retrieval Store.
func NewStore(q Querier, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{q: q, embedder: embedder, logger: logger}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Docs returns the topK documentation chunks nearest to the query.
func (s *Store) Docs(ctx context.Context, query string, topK int) ([]DocChunk, error) {
	if topK <= 0 {
		topK = 12
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.Query(ctx, `
		SELECT id, doc_id, title, url, heading, content,
		       1 - (embedding <=> $1) AS score
		FROM docs_chunks
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching docs: %w", err)
	}
	defer rows.Close()

	out := []DocChunk{}
	for rows.Next() {
		var c DocChunk
		if err := rows.Scan(&c.ID, &c.DocID, &c.Title, &c.URL, &c.Heading, &c.Content, &c.Score); err != nil {
			return nil, fmt.Errorf("scanning doc chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading doc chunks: %w", err)
	}
	return out, nil
}

// Dictionary returns the topK dictionary entries nearest to the query.
func (s *Store) Dictionary(ctx context.Context, query string, topK int) ([]DictEntry, error) {
	if topK <= 0 {
		topK = 8
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.Query(ctx, `
		SELECT id, schema_name, table_name, COALESCE(column_name, ''), title, content,
		       1 - (embedding <=> $1) AS score
		FROM dict_entries
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching dictionary: %w", err)
	}
	defer rows.Close()

	out := []DictEntry{}
	for rows.Next() {
		var e DictEntry
		if err := rows.Scan(&e.ID, &e.SchemaName, &e.TableName, &e.ColumnName, &e.Title, &e.Content, &e.Score); err != nil {
			return nil, fmt.Errorf("scanning dictionary entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading dictionary entries: %w", err)
	}
	return out, nil
}
