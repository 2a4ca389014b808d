package retrieval

import (
	"sort"

	"github.com/upb/secure-rag/models"
)

// DefaultFusionK is the standard RRF constant. Larger values flatten the
// influence of rank position.
const DefaultFusionK = 60

// FuseRRF merges the dense and lexical rankings with Reciprocal Rank Fusion:
// each document scores the sum of 1/(k+rank) over the retrievers it appears
// in, with 1-based ranks; absence from a retriever contributes zero. RRF
// needs no score normalization across heterogeneous similarity metrics, and
// an empty list from a failed retriever simply contributes nothing.
//
// The output is sorted by fused score descending, ties broken ascending by
// document id so fusion is fully deterministic. At most limit candidates are
// returned; limit <= 0 means no bound.
func FuseRRF(dense, lexical []SearchHit, k, limit int) []models.RetrievalCandidate {
	if k <= 0 {
		k = DefaultFusionK
	}

	byID := make(map[string]*models.RetrievalCandidate)

	for i, hit := range dense {
		rank := i + 1
		c := ensureCandidate(byID, hit)
		c.DenseRank = rank
		c.FusedScore += 1.0 / float64(k+rank)
	}
	for i, hit := range lexical {
		rank := i + 1
		c := ensureCandidate(byID, hit)
		c.LexicalRank = rank
		c.FusedScore += 1.0 / float64(k+rank)
	}

	out := make([]models.RetrievalCandidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].DocumentID < out[j].DocumentID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func ensureCandidate(byID map[string]*models.RetrievalCandidate, hit SearchHit) *models.RetrievalCandidate {
	if c, ok := byID[hit.DocumentID]; ok {
		return c
	}
	c := &models.RetrievalCandidate{
		DocumentID:  hit.DocumentID,
		Tenant:      hit.Document.Tenant,
		Sensitivity: hit.Document.Sensitivity,
		SourceName:  hit.Document.SourceName,
		Text:        hit.Document.Text,
	}
	byID[hit.DocumentID] = c
	return c
}
