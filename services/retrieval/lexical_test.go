package retrieval

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/secure-rag/models"
)

func lexicalTestDocs() []models.Document {
	return []models.Document{
		{
			ID:          "doc-hr",
			Text:        "The salary band adjustments for 2025 raise every band by four percent.",
			Tenant:      "demo",
			Sensitivity: models.SensitivityConfidential,
			SourceName:  "salary_bands.txt",
		},
		{
			ID:          "doc-holiday",
			Text:        "The holiday policy grants twenty five days of paid leave per year.",
			Tenant:      "demo",
			Sensitivity: models.SensitivityPublic,
			SourceName:  "holiday_policy.txt",
		},
		{
			ID:          "doc-other-tenant",
			Text:        "Salary band adjustments at Acme follow a separate process.",
			Tenant:      "acme",
			Sensitivity: models.SensitivityPublic,
			SourceName:  "acme_salary.txt",
		},
	}
}

func TestLexicalSearch_RanksRelevantFirst(t *testing.T) {
	r := NewLexicalRetriever(lexicalTestDocs())
	pred := Predicate{Must: []Condition{{Field: "tenant", Value: "demo"}}}

	hits, err := r.Search(context.Background(), "salary band adjustments", pred, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "doc-hr", hits[0].DocumentID)
}

func TestLexicalSearch_PredicateRestrictsBeforeScoring(t *testing.T) {
	r := NewLexicalRetriever(lexicalTestDocs())
	pred := Predicate{Must: []Condition{
		{Field: "tenant", Value: "demo"},
		{Field: "sensitivity", Value: "public"},
	}}

	hits, err := r.Search(context.Background(), "salary band adjustments", pred, 10)
	require.NoError(t, err)

	// The best lexical match is confidential; for a public-only predicate it
	// must never appear, even as a lower-ranked hit.
	for _, h := range hits {
		assert.NotEqual(t, "doc-hr", h.DocumentID)
		assert.Equal(t, models.SensitivityPublic, h.Document.Sensitivity)
	}
}

func TestLexicalSearch_TopKBound(t *testing.T) {
	r := NewLexicalRetriever(lexicalTestDocs())
	pred := Predicate{}

	hits, err := r.Search(context.Background(), "salary policy", pred, 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(hits), 1)
}

func TestLexicalSearch_NoMatchesReturnsEmpty(t *testing.T) {
	r := NewLexicalRetriever(lexicalTestDocs())

	hits, err := r.Search(context.Background(), "zymurgy quasar", Predicate{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalSearch_Deterministic(t *testing.T) {
	r := NewLexicalRetriever(lexicalTestDocs())
	pred := Predicate{}

	first, err := r.Search(context.Background(), "salary band", pred, 10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Search(context.Background(), "salary band", pred, 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestLoadLexicalRetriever(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bm25_corpus.json")

	raw, err := json.Marshal(lexicalCorpus{Documents: lexicalTestDocs()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	r, err := LoadLexicalRetriever(path)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Size())
}

func TestLoadLexicalRetriever_MissingFile(t *testing.T) {
	_, err := LoadLexicalRetriever("does-not-exist.json")
	assert.Error(t, err)
}
