package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/secure-rag/models"
)

type fakePolicyClient struct {
	verdicts map[string]bool
	err      error
	calls    int
}

func (f *fakePolicyClient) CheckRead(ctx context.Context, qc models.QueryContext, candidates []models.RetrievalCandidate) (map[string]bool, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.verdicts, nil
}

func qc() models.QueryContext {
	return models.QueryContext{Tenant: "demo", Role: models.RoleEmployee, Profile: models.ProfileBase}
}

func cands(ids ...string) []models.RetrievalCandidate {
	out := make([]models.RetrievalCandidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.RetrievalCandidate{DocumentID: id, Tenant: "demo", Sensitivity: models.SensitivityPublic})
	}
	return out
}

func TestFilter_KeepsAllowedInOrder(t *testing.T) {
	client := &fakePolicyClient{verdicts: map[string]bool{"a": true, "b": false, "c": true}}
	s := NewService(client, zap.NewNop())

	res := s.Filter(context.Background(), qc(), cands("a", "b", "c"))

	require.Len(t, res.Allowed, 2)
	assert.Equal(t, "a", res.Allowed[0].DocumentID)
	assert.Equal(t, "c", res.Allowed[1].DocumentID)
	assert.False(t, res.Restricted)

	require.Len(t, res.Decisions, 3)
	assert.True(t, res.Decisions[0].Allowed)
	assert.False(t, res.Decisions[1].Allowed)
	assert.Equal(t, "policy_deny", res.Decisions[1].Reason)
}

func TestFilter_UnreachableEngineDeniesEverything(t *testing.T) {
	client := &fakePolicyClient{err: errors.New("connection refused")}
	s := NewService(client, zap.NewNop())

	res := s.Filter(context.Background(), qc(), cands("a", "b"))

	assert.Empty(t, res.Allowed)
	assert.True(t, res.Restricted)
	require.Len(t, res.Decisions, 2)
	for _, d := range res.Decisions {
		assert.False(t, d.Allowed)
		assert.Equal(t, "engine_unreachable", d.Reason)
	}
}

func TestFilter_MissingVerdictIsDenied(t *testing.T) {
	client := &fakePolicyClient{verdicts: map[string]bool{"a": true}}
	s := NewService(client, zap.NewNop())

	res := s.Filter(context.Background(), qc(), cands("a", "unlisted"))

	require.Len(t, res.Allowed, 1)
	assert.Equal(t, "a", res.Allowed[0].DocumentID)
	assert.False(t, res.Decisions[1].Allowed)
}

func TestFilter_EmptyCandidatesSkipsEngine(t *testing.T) {
	client := &fakePolicyClient{}
	s := NewService(client, zap.NewNop())

	res := s.Filter(context.Background(), qc(), nil)

	assert.Empty(t, res.Allowed)
	assert.False(t, res.Restricted)
	assert.Equal(t, 0, client.calls)
}
