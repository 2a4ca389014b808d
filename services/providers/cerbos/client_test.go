package cerbos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/services"
)

func demoContext() models.QueryContext {
	return models.QueryContext{Tenant: "demo", Role: models.RoleManager, Profile: models.ProfileBase}
}

func candidate(id, tenant string, sens models.Sensitivity) models.RetrievalCandidate {
	return models.RetrievalCandidate{DocumentID: id, Tenant: tenant, Sensitivity: sens}
}

func TestCheckRead_ParsesPerDocumentEffects(t *testing.T) {
	var gotReq checkRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/check/resources", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"resource": map[string]any{"id": "doc-a"}, "actions": map[string]string{"read": "EFFECT_ALLOW"}},
				{"resource": map[string]any{"id": "doc-b"}, "actions": map[string]string{"read": "EFFECT_DENY"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL})
	decisions, err := c.CheckRead(context.Background(), demoContext(), []models.RetrievalCandidate{
		candidate("doc-a", "demo", models.SensitivityPublic),
		candidate("doc-b", "demo", models.SensitivityConfidential),
	})
	require.NoError(t, err)

	assert.True(t, decisions["doc-a"])
	assert.False(t, decisions["doc-b"])

	assert.Equal(t, []string{"manager"}, gotReq.Principal.Roles)
	assert.Equal(t, "demo", gotReq.Principal.Attr["tenant"])
	require.Len(t, gotReq.Resources, 2)
	assert.Equal(t, "document", gotReq.Resources[0].Resource.Kind)
	assert.Equal(t, "confidential", gotReq.Resources[1].Resource.Attr["sensitivity"])
	assert.Equal(t, []string{"read"}, gotReq.Resources[0].Actions)
}

func TestCheckRead_OmittedResultsStayDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"resource": map[string]any{"id": "doc-a"}, "actions": map[string]string{"read": "EFFECT_ALLOW"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL})
	decisions, err := c.CheckRead(context.Background(), demoContext(), []models.RetrievalCandidate{
		candidate("doc-a", "demo", models.SensitivityPublic),
		candidate("doc-missing", "demo", models.SensitivityPublic),
	})
	require.NoError(t, err)

	assert.True(t, decisions["doc-a"])
	assert.False(t, decisions["doc-missing"])
}

func TestCheckRead_NoCandidatesSkipsCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL})
	decisions, err := c.CheckRead(context.Background(), demoContext(), nil)
	require.NoError(t, err)
	assert.Empty(t, decisions)
	assert.Equal(t, int32(0), calls.Load())
}

func TestCheckRead_UnreachableEngineIsPolicyError(t *testing.T) {
	c := NewClient(Config{URL: "http://127.0.0.1:1", Timeout: 100 * time.Millisecond, Attempts: 2, Delay: time.Millisecond})
	_, err := c.CheckRead(context.Background(), demoContext(), []models.RetrievalCandidate{
		candidate("doc-a", "demo", models.SensitivityPublic),
	})
	require.Error(t, err)
	assert.True(t, services.IsPolicyEngineError(err))
}

func TestCheckRead_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"resource": map[string]any{"id": "doc-a"}, "actions": map[string]string{"read": "EFFECT_ALLOW"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Attempts: 3, Delay: time.Millisecond})
	decisions, err := c.CheckRead(context.Background(), demoContext(), []models.RetrievalCandidate{
		candidate("doc-a", "demo", models.SensitivityPublic),
	})
	require.NoError(t, err)
	assert.True(t, decisions["doc-a"])
	assert.Equal(t, int32(2), calls.Load())
}
