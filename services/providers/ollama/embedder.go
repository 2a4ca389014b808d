package ollama

import (
	"context"

	"github.com/upb/secure-rag/services"
)

// Embedder produces dense vectors through Ollama's embeddings endpoint.
type Embedder struct {
	client *Client
	model  string
}

// NewEmbedder creates an embedder bound to a model.
func NewEmbedder(client *Client, model string) *Embedder {
	if model == "" {
		model = "nomic-embed-text"
	}
	return &Embedder{client: client, model: model}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	err := e.client.postJSON(ctx, "/api/embeddings", embedRequest{Model: e.model, Prompt: text}, &resp)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeRetrieval, "embedding request failed", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, services.ErrEmbeddingFailed.WithDetail("model", e.model)
	}
	return resp.Embedding, nil
}
