// Package normalizer canonicalizes raw user questions into a stable form
// and a content hash used as the semantic-cache key component.
package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/services"
)

// typoTable maps frequent misspellings onto their canonical token.
// Applied after case-folding, whole-token only.
var typoTable = map[string]string{
	"ajustments": "adjustments",
	"ajustment":  "adjustment",
	"recieve":    "receive",
	"seperate":   "separate",
}

// Service normalizes queries. It is stateless and safe for concurrent use.
type Service struct{}

// NewService creates a new normalizer service
func NewService() *Service {
	return &Service{}
}

// Normalize canonicalizes raw text and derives its hash. The hash comes from
// the canonical text only: whitespace and case variants collapse to the same
// key, while semantically distinct questions keep distinct keys (no
// embedding-similarity matching, which could merge different questions).
func (s *Service) Normalize(raw string) (models.NormalizedQuery, error) {
	canonical := Canonicalize(raw)
	if canonical == "" {
		return models.NormalizedQuery{}, services.ErrEmptyQuery
	}

	sum := sha256.Sum256([]byte(canonical))
	return models.NormalizedQuery{
		CanonicalText: canonical,
		Hash:          hex.EncodeToString(sum[:8]),
	}, nil
}

// Canonicalize trims, collapses internal whitespace, case-folds, and fixes
// common typos. Deterministic and side-effect-free.
func Canonicalize(raw string) string {
	folded := strings.ToLower(strings.TrimSpace(raw))
	tokens := strings.Fields(folded)
	for i, tok := range tokens {
		if fixed, ok := typoTable[strings.Trim(tok, "?.,!")]; ok {
			tokens[i] = strings.Replace(tok, strings.Trim(tok, "?.,!"), fixed, 1)
		}
	}
	return strings.Join(tokens, " ")
}
