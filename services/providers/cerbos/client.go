package cerbos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/services"
)

const (
	actionRead  = "read"
	effectAllow = "EFFECT_ALLOW"
)

// Client talks to a Cerbos policy decision point over its REST check
// API. Every retrieved document is submitted as a resource and the
// engine answers allow or deny per document.
type Client struct {
	url        string
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
}

type Config struct {
	URL      string
	Timeout  time.Duration
	Attempts uint
	Delay    time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 2
	}
	delay := cfg.Delay
	if delay == 0 {
		delay = 100 * time.Millisecond
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   attempts,
		delay:      delay,
	}
}

type checkRequest struct {
	RequestID string          `json:"requestId"`
	Principal principal       `json:"principal"`
	Resources []resourceEntry `json:"resources"`
}

type principal struct {
	ID    string            `json:"id"`
	Roles []string          `json:"roles"`
	Attr  map[string]string `json:"attr"`
}

type resourceEntry struct {
	Resource resource `json:"resource"`
	Actions  []string `json:"actions"`
}

type resource struct {
	Kind string            `json:"kind"`
	ID   string            `json:"id"`
	Attr map[string]string `json:"attr"`
}

type checkResponse struct {
	Results []struct {
		Resource struct {
			ID string `json:"id"`
		} `json:"resource"`
		Actions map[string]string `json:"actions"`
	} `json:"results"`
}

// CheckRead asks the policy engine whether the caller may read each
// candidate document. The result map covers every submitted document
// id; ids the engine omits stay denied.
func (c *Client) CheckRead(ctx context.Context, qc models.QueryContext, candidates []models.RetrievalCandidate) (map[string]bool, error) {
	if len(candidates) == 0 {
		return map[string]bool{}, nil
	}

	req := checkRequest{
		RequestID: uuid.NewString(),
		Principal: principal{
			ID:    string(qc.Role) + "@" + qc.Tenant,
			Roles: []string{string(qc.Role)},
			Attr:  map[string]string{"tenant": qc.Tenant},
		},
		Resources: make([]resourceEntry, 0, len(candidates)),
	}
	for _, cand := range candidates {
		req.Resources = append(req.Resources, resourceEntry{
			Resource: resource{
				Kind: "document",
				ID:   cand.DocumentID,
				Attr: map[string]string{
					"tenant":      cand.Tenant,
					"sensitivity": string(cand.Sensitivity),
				},
			},
			Actions: []string{actionRead},
		})
	}

	var resp checkResponse
	err := retry.Do(
		func() error { return c.postCheck(ctx, req, &resp) },
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypePolicyEngine, "policy engine unreachable", err)
	}

	decisions := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		decisions[cand.DocumentID] = false
	}
	for _, result := range resp.Results {
		if _, known := decisions[result.Resource.ID]; !known {
			continue
		}
		decisions[result.Resource.ID] = result.Actions[actionRead] == effectAllow
	}
	return decisions, nil
}

func (c *Client) postCheck(ctx context.Context, body checkRequest, out *checkResponse) error {
	data, err := json.Marshal(body)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("marshaling request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/check/resources", bytes.NewReader(data))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling cerbos: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("cerbos returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
