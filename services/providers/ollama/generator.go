package ollama

import (
	"context"
	"strings"

	"github.com/upb/secure-rag/services"
)

// Generator produces completions through Ollama's generate endpoint.
type Generator struct {
	client *Client
	model  string
}

// NewGenerator creates a generator bound to a model.
func NewGenerator(client *Client, model string) *Generator {
	if model == "" {
		model = "llama3.2"
	}
	return &Generator{client: client, model: model}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate returns the full completion for a prompt. Streaming is
// disabled so the caller gets a single response object.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var resp generateResponse
	err := g.client.postJSON(ctx, "/api/generate", generateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: false,
	}, &resp)
	if err != nil {
		return "", services.WrapError(services.ErrorTypeGeneration, "generation request failed", err)
	}
	return strings.TrimSpace(resp.Response), nil
}
