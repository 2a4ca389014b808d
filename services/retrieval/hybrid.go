package retrieval

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/services"
)

// Config holds hybrid retrieval configuration
type Config struct {
	// TopK is the per-retriever candidate count before fusion.
	TopK int
	// FusionK is the RRF constant.
	FusionK int
	// Limit bounds the fused candidate list passed downstream.
	Limit int
}

// HybridRetriever fans a query out to the dense and lexical retrievers in
// parallel and fuses their rankings with RRF.
//
// Failure policy: if one retriever errors, the survivor's ranking alone
// still produces a result (graceful degradation). Only when both fail does
// retrieval become unavailable.
type HybridRetriever struct {
	dense   Retriever
	lexical Retriever
	config  Config
	logger  *zap.Logger
}

// NewHybridRetriever creates a new hybrid retriever
func NewHybridRetriever(dense, lexical Retriever, config Config, logger *zap.Logger) *HybridRetriever {
	if config.TopK <= 0 {
		config.TopK = 10
	}
	if config.FusionK <= 0 {
		config.FusionK = DefaultFusionK
	}
	if config.Limit <= 0 {
		config.Limit = 5
	}
	return &HybridRetriever{dense: dense, lexical: lexical, config: config, logger: logger}
}

// Retrieve runs both searches under the same prefilter predicate and returns
// the fused candidate list, best first.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string, pred Predicate) ([]models.RetrievalCandidate, error) {
	var (
		denseHits, lexicalHits []SearchHit
		denseErr, lexicalErr   error
	)

	// The two searches are independent; fan out and join before fusion.
	// Errors are collected per retriever, not propagated through the group,
	// because a single failure must not cancel the survivor.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		denseHits, denseErr = h.dense.Search(gctx, query, pred, h.config.TopK)
		return nil
	})
	g.Go(func() error {
		lexicalHits, lexicalErr = h.lexical.Search(gctx, query, pred, h.config.TopK)
		return nil
	})
	_ = g.Wait()

	if denseErr != nil {
		h.logger.Warn("dense retriever failed, fusing lexical ranking alone",
			zap.Error(denseErr))
	}
	if lexicalErr != nil {
		h.logger.Warn("lexical retriever failed, fusing dense ranking alone",
			zap.Error(lexicalErr))
	}
	if denseErr != nil && lexicalErr != nil {
		return nil, services.ErrRetrievalUnavailable.
			WithDetail("dense_error", denseErr.Error()).
			WithDetail("lexical_error", lexicalErr.Error())
	}

	candidates := FuseRRF(denseHits, lexicalHits, h.config.FusionK, h.config.Limit)

	h.logger.Debug("hybrid retrieval complete",
		zap.Int("dense_hits", len(denseHits)),
		zap.Int("lexical_hits", len(lexicalHits)),
		zap.Int("fused", len(candidates)))
	return candidates, nil
}
