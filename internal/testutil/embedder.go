package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/firebase/genkit/go/ai"

	"github.com/tawan/askai/internal/retrieval"
)

// FakeEmbedder produces deterministic unit-length vectors derived from the
// input text, so similarity queries behave consistently without a model:
// identical texts embed identically.
type FakeEmbedder struct{}

// Name implements ai.Embedder.
func (FakeEmbedder) Name() string { return "testutil/fake-embedder" }

// Embed implements ai.Embedder.
func (FakeEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: deterministicVector(text, int(retrieval.VectorDimension)),
		})
	}
	return resp, nil
}

// deterministicVector expands a text hash into a normalized vector of the
// given dimension.
func deterministicVector(text string, dim int) []float32 {
	out := make([]float32, dim)
	seed := sha256.Sum256([]byte(text))

	var sumSquares float64
	buf := seed[:]
	for i := 0; i < dim; i += 8 {
		buf = hashNext(buf)
		for j := 0; j < 8 && i+j < dim; j++ {
			bits := binary.BigEndian.Uint32(buf[j*4 : j*4+4])
			v := float32(bits%2000)/1000 - 1
			out[i+j] = v
			sumSquares += float64(v) * float64(v)
		}
	}

	norm := float32(math.Sqrt(sumSquares))
	if norm == 0 {
		out[0] = 1
		return out
	}
	for i := range out {
		out[i] /= norm
	}
	return out
}

func hashNext(prev []byte) []byte {
	h := sha256.Sum256(prev)
	return h[:]
}
