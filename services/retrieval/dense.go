package retrieval

import (
	"context"
	"fmt"
)

// Embedder turns query text into a vector. Implemented by the Ollama
// embeddings client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher runs a filtered similarity search over the vector index.
// Implemented by the Qdrant client.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, pred Predicate, topK int) ([]SearchHit, error)
}

// DenseRetriever embeds the query and searches the vector index. The
// predicate travels into the index query itself, so out-of-scope documents
// are never scored.
type DenseRetriever struct {
	embedder Embedder
	store    VectorSearcher
}

// NewDenseRetriever creates a new dense retriever
func NewDenseRetriever(embedder Embedder, store VectorSearcher) *DenseRetriever {
	return &DenseRetriever{embedder: embedder, store: store}
}

// Type returns the retriever identifier used in fusion and logging
func (r *DenseRetriever) Type() string { return "dense" }

// Search embeds the query and returns up to topK hits from the vector index.
func (r *DenseRetriever) Search(ctx context.Context, query string, pred Predicate, topK int) ([]SearchHit, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	hits, err := r.store.Search(ctx, vector, pred, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return hits, nil
}
