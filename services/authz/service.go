package authz

import (
	"context"

	"go.uber.org/zap"

	"github.com/upb/secure-rag/models"
)

// PolicyClient answers per-document read checks against an external
// policy engine.
type PolicyClient interface {
	CheckRead(ctx context.Context, qc models.QueryContext, candidates []models.RetrievalCandidate) (map[string]bool, error)
}

// Result is the outcome of post-retrieval authorization.
type Result struct {
	Allowed   []models.RetrievalCandidate
	Decisions []models.AuthDecision
	// Restricted is set when the policy engine could not be consulted
	// and every candidate was denied as a consequence.
	Restricted bool
}

const (
	reasonAllowed     = "policy_allow"
	reasonDenied      = "policy_deny"
	reasonUnreachable = "engine_unreachable"
)

// Service filters retrieval candidates through the policy engine.
type Service struct {
	client PolicyClient
	logger *zap.Logger
}

func NewService(client PolicyClient, logger *zap.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Filter keeps only candidates the policy engine allows, preserving
// their fused order. When the engine cannot be reached the whole
// candidate set is denied rather than passed through.
func (s *Service) Filter(ctx context.Context, qc models.QueryContext, candidates []models.RetrievalCandidate) Result {
	if len(candidates) == 0 {
		return Result{Allowed: []models.RetrievalCandidate{}, Decisions: []models.AuthDecision{}}
	}

	verdicts, err := s.client.CheckRead(ctx, qc, candidates)
	if err != nil {
		s.logger.Warn("policy engine unavailable, denying all candidates",
			zap.String("tenant", qc.Tenant),
			zap.Int("candidates", len(candidates)),
			zap.Error(err))

		decisions := make([]models.AuthDecision, 0, len(candidates))
		for _, cand := range candidates {
			decisions = append(decisions, models.AuthDecision{
				DocumentID: cand.DocumentID,
				Allowed:    false,
				Reason:     reasonUnreachable,
			})
		}
		return Result{Allowed: []models.RetrievalCandidate{}, Decisions: decisions, Restricted: true}
	}

	result := Result{
		Allowed:   make([]models.RetrievalCandidate, 0, len(candidates)),
		Decisions: make([]models.AuthDecision, 0, len(candidates)),
	}
	for _, cand := range candidates {
		allowed := verdicts[cand.DocumentID]
		reason := reasonDenied
		if allowed {
			reason = reasonAllowed
			result.Allowed = append(result.Allowed, cand)
		}
		result.Decisions = append(result.Decisions, models.AuthDecision{
			DocumentID: cand.DocumentID,
			Allowed:    allowed,
			Reason:     reason,
		})
	}

	s.logger.Debug("authorization postfilter complete",
		zap.String("tenant", qc.Tenant),
		zap.Int("candidates", len(candidates)),
		zap.Int("allowed", len(result.Allowed)))

	return result
}
