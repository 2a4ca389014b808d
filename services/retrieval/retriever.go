// Package retrieval implements hybrid (dense + lexical) document retrieval
// with reciprocal rank fusion and sensitivity-based prefiltering.
package retrieval

import (
	"context"

	"github.com/upb/secure-rag/models"
)

// Condition is a single must field-match constraint.
type Condition struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Predicate is a conjunction of must conditions applied inside the retrieval
// call, so restricted documents are never scored or returned in the first
// place. The predicate narrows the searchable universe; the authorization
// postfilter re-validates every survivor.
type Predicate struct {
	Must []Condition `json:"must"`
}

// Matches evaluates the predicate against a document's attributes.
// Used by in-process retrievers; remote backends translate the predicate
// into their native filter syntax instead.
func (p Predicate) Matches(doc models.Document) bool {
	for _, c := range p.Must {
		switch c.Field {
		case "tenant":
			if doc.Tenant != c.Value {
				return false
			}
		case "sensitivity":
			if string(doc.Sensitivity) != c.Value {
				return false
			}
		case "source":
			if doc.SourceName != c.Value {
				return false
			}
		default:
			// Unknown fields never match; a typo must not widen the filter.
			return false
		}
	}
	return true
}

// SearchHit is one ranked result from a single retriever.
type SearchHit struct {
	DocumentID string
	Score      float64
	Document   models.Document
}

// Retriever is the common capability both search backends implement.
// The fusion stage is backend-agnostic and operates purely on ranks.
type Retriever interface {
	Type() string
	Search(ctx context.Context, query string, pred Predicate, topK int) ([]SearchHit, error)
}
