package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/services"
)

// BM25 parameters, standard Okapi defaults.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// lexicalCorpus is the on-disk layout of the precomputed keyword index.
type lexicalCorpus struct {
	Documents []models.Document `json:"documents"`
}

// LexicalRetriever scores documents with BM25 over a precomputed corpus
// index. It runs fully in process; the predicate restricts the searchable
// set before any scoring happens.
type LexicalRetriever struct {
	docs      []models.Document
	termFreqs []map[string]int
	docLens   []int
	avgDocLen float64
	docFreq   map[string]int
}

// NewLexicalRetriever builds the BM25 index from documents.
func NewLexicalRetriever(docs []models.Document) *LexicalRetriever {
	r := &LexicalRetriever{
		docs:      docs,
		termFreqs: make([]map[string]int, len(docs)),
		docLens:   make([]int, len(docs)),
		docFreq:   make(map[string]int),
	}

	total := 0
	for i, doc := range docs {
		tokens := tokenize(doc.Text)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		r.termFreqs[i] = tf
		r.docLens[i] = len(tokens)
		total += len(tokens)
		for term := range tf {
			r.docFreq[term]++
		}
	}
	if len(docs) > 0 {
		r.avgDocLen = float64(total) / float64(len(docs))
	}
	return r
}

// LoadLexicalRetriever reads the corpus index file produced at ingestion time.
func LoadLexicalRetriever(path string) (*LexicalRetriever, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexical corpus %s: %w", path, err)
	}
	var corpus lexicalCorpus
	if err := json.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("failed to parse lexical corpus %s: %w", path, err)
	}
	return NewLexicalRetriever(corpus.Documents), nil
}

// Type returns the retriever identifier used in fusion and logging
func (r *LexicalRetriever) Type() string { return "lexical" }

// Search scores the predicate-filtered document set against the query and
// returns up to topK hits, best first. Ties are broken by document id so the
// ranking is reproducible.
func (r *LexicalRetriever) Search(ctx context.Context, query string, pred Predicate, topK int) ([]SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, services.ErrEmptyQuery
	}

	n := float64(len(r.docs))
	hits := make([]SearchHit, 0, topK)
	for i, doc := range r.docs {
		if !pred.Matches(doc) {
			continue
		}
		score := 0.0
		for _, term := range terms {
			tf := r.termFreqs[i][term]
			if tf == 0 {
				continue
			}
			df := float64(r.docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - bm25B + bm25B*float64(r.docLens[i])/r.avgDocLen
			score += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
		if score > 0 {
			hits = append(hits, SearchHit{DocumentID: doc.ID, Score: score, Document: doc})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Size returns the number of indexed documents
func (r *LexicalRetriever) Size() int { return len(r.docs) }

func tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}
