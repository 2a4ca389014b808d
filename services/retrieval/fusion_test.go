package retrieval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hit(id string, score float64) SearchHit {
	return SearchHit{DocumentID: id, Score: score}
}

func TestFuseRRF_ScoresMatchFormula(t *testing.T) {
	dense := []SearchHit{hit("a", 0.9), hit("b", 0.8)}
	lexical := []SearchHit{hit("b", 12.1), hit("c", 3.3)}

	out := FuseRRF(dense, lexical, 60, 0)
	require.Len(t, out, 3)

	scores := map[string]float64{}
	for _, c := range out {
		scores[c.DocumentID] = c.FusedScore
	}

	// b appears at rank 2 (dense) and rank 1 (lexical)
	assert.InDelta(t, 1.0/62+1.0/61, scores["b"], 1e-12)
	assert.InDelta(t, 1.0/61, scores["a"], 1e-12)
	assert.InDelta(t, 1.0/62, scores["c"], 1e-12)

	// b wins overall
	assert.Equal(t, "b", out[0].DocumentID)
}

func TestFuseRRF_RecordsPerRetrieverRanks(t *testing.T) {
	dense := []SearchHit{hit("a", 0.9), hit("b", 0.8)}
	lexical := []SearchHit{hit("b", 12.1)}

	out := FuseRRF(dense, lexical, 60, 0)
	byID := map[string]int{}
	for i, c := range out {
		byID[c.DocumentID] = i
	}

	b := out[byID["b"]]
	assert.Equal(t, 2, b.DenseRank)
	assert.Equal(t, 1, b.LexicalRank)

	a := out[byID["a"]]
	assert.Equal(t, 1, a.DenseRank)
	assert.Equal(t, 0, a.LexicalRank) // absent from lexical
}

func TestFuseRRF_DeterministicTieBreak(t *testing.T) {
	// Same single-retriever rank structure produces equal scores; ties must
	// break by document id ascending, every time.
	dense := []SearchHit{hit("z", 0.9)}
	lexical := []SearchHit{hit("a", 5.0)}

	for i := 0; i < 10; i++ {
		out := FuseRRF(dense, lexical, 60, 0)
		require.Len(t, out, 2)
		assert.Equal(t, "a", out[0].DocumentID)
		assert.Equal(t, "z", out[1].DocumentID)
	}
}

func TestFuseRRF_SurvivorOnlyFusion(t *testing.T) {
	// One retriever failing outright is modeled as an empty list; the other
	// ranking alone must still produce a usable, ordered result.
	lexical := []SearchHit{hit("a", 9.0), hit("b", 5.0), hit("c", 1.0)}

	out := FuseRRF(nil, lexical, 60, 0)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].DocumentID)
	assert.Equal(t, "b", out[1].DocumentID)
	assert.Equal(t, "c", out[2].DocumentID)
}

func TestFuseRRF_LargerKFlattensRankInfluence(t *testing.T) {
	dense := []SearchHit{hit("a", 0.9), hit("b", 0.8)}

	gapAt := func(k int) float64 {
		out := FuseRRF(dense, nil, k, 0)
		return out[0].FusedScore - out[1].FusedScore
	}

	assert.Greater(t, gapAt(10), gapAt(60))
	assert.Greater(t, gapAt(60), gapAt(600))
	assert.Greater(t, gapAt(600), 0.0)
}

func TestFuseRRF_Limit(t *testing.T) {
	dense := []SearchHit{hit("a", 3), hit("b", 2), hit("c", 1)}

	out := FuseRRF(dense, nil, 60, 2)
	assert.Len(t, out, 2)
}

func TestFuseRRF_CarriesDocumentAttributes(t *testing.T) {
	dense := []SearchHit{{
		DocumentID: "a",
		Score:      0.9,
		Document:   docFixture("a", "demo", "confidential", "salary.txt"),
	}}

	out := FuseRRF(dense, nil, 60, 0)
	require.Len(t, out, 1)
	assert.Equal(t, "demo", out[0].Tenant)
	assert.Equal(t, "confidential", string(out[0].Sensitivity))
	assert.Equal(t, "salary.txt", out[0].SourceName)
	assert.False(t, math.IsNaN(out[0].FusedScore))
}
