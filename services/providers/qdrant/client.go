package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/services"
	"github.com/upb/secure-rag/services/retrieval"
)

// Store is a minimal REST client for a Qdrant collection. Document
// payloads carry id, text, tenant, sensitivity, and source fields so
// that server-side filters can enforce the retrieval predicate.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Vector      []float32      `json:"vector"`
	Limit       int            `json:"limit"`
	WithPayload bool           `json:"with_payload"`
	Filter      *payloadFilter `json:"filter,omitempty"`
}

type payloadFilter struct {
	Must []fieldMatch `json:"must"`
}

type fieldMatch struct {
	Key   string `json:"key"`
	Match struct {
		Value string `json:"value"`
	} `json:"match"`
}

type searchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// buildFilter translates a retrieval predicate into Qdrant's must
// clause. An empty predicate yields no filter at all.
func buildFilter(pred retrieval.Predicate) *payloadFilter {
	if len(pred.Must) == 0 {
		return nil
	}
	f := &payloadFilter{Must: make([]fieldMatch, 0, len(pred.Must))}
	for _, cond := range pred.Must {
		m := fieldMatch{Key: cond.Field}
		m.Match.Value = cond.Value
		f.Must = append(f.Must, m)
	}
	return f
}

// Search runs a filtered vector search against the collection.
func (s *Store) Search(ctx context.Context, vector []float32, pred retrieval.Predicate, topK int) ([]retrieval.SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}
	reqBody := searchRequest{
		Vector:      vector,
		Limit:       topK,
		WithPayload: true,
		Filter:      buildFilter(pred),
	}

	var resp searchResponse
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.postJSON(ctx, url, reqBody, &resp); err != nil {
		return nil, services.WrapError(services.ErrorTypeRetrieval, "qdrant search failed", err)
	}

	hits := make([]retrieval.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		doc := payloadToDocument(r.Payload)
		if doc.ID == "" {
			continue
		}
		hits = append(hits, retrieval.SearchHit{
			DocumentID: doc.ID,
			Score:      r.Score,
			Document:   doc,
		})
	}
	return hits, nil
}

func payloadToDocument(payload map[string]any) models.Document {
	doc := models.Document{}
	if v, ok := payload["id"].(string); ok {
		doc.ID = v
	}
	if v, ok := payload["text"].(string); ok {
		doc.Text = v
	}
	if v, ok := payload["tenant"].(string); ok {
		doc.Tenant = v
	}
	if v, ok := payload["sensitivity"].(string); ok {
		doc.Sensitivity = models.Sensitivity(v)
	}
	if v, ok := payload["source"].(string); ok {
		doc.SourceName = v
	}
	return doc
}

func (s *Store) postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
