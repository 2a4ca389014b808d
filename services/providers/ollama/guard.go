package ollama

import (
	"context"
	"strings"

	"github.com/upb/secure-rag/services"
)

// GuardClassifier runs a llama-guard style safety model. The model
// replies with a verdict whose first line is "safe" or "unsafe".
type GuardClassifier struct {
	client *Client
	model  string
}

// NewGuardClassifier creates a classifier bound to a guard model.
func NewGuardClassifier(client *Client, model string) *GuardClassifier {
	if model == "" {
		model = "llama-guard3"
	}
	return &GuardClassifier{client: client, model: model}
}

// Verify checks that the guard backend is reachable. Callers run it
// once at startup before trusting the classifier.
func (g *GuardClassifier) Verify(ctx context.Context) error {
	if err := g.client.Ping(ctx); err != nil {
		return services.WrapError(services.ErrorTypeGuard, "guard backend unreachable", err)
	}
	return nil
}

// Classify returns true when the guard model judges the text safe.
func (g *GuardClassifier) Classify(ctx context.Context, text string) (bool, error) {
	var resp generateResponse
	err := g.client.postJSON(ctx, "/api/generate", generateRequest{
		Model:  g.model,
		Prompt: text,
		Stream: false,
	}, &resp)
	if err != nil {
		return false, services.WrapError(services.ErrorTypeGuard, "guard classification failed", err)
	}

	verdict := strings.ToLower(strings.TrimSpace(resp.Response))
	if line, _, found := strings.Cut(verdict, "\n"); found {
		verdict = strings.TrimSpace(line)
	}
	return verdict == "safe", nil
}
