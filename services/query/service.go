package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/services"
	"github.com/upb/secure-rag/services/authz"
	"github.com/upb/secure-rag/services/guard"
	"github.com/upb/secure-rag/services/retrieval"
)

// GenerationFailureMessage is returned when the language model cannot
// produce an answer. Diagnostics go to the logger, never the caller.
const GenerationFailureMessage = "Sorry, an answer could not be generated right now. Please try again."

// NoContextNote is injected into the prompt when no documents survived
// filtering, so the model answers from an explicitly empty context.
const NoContextNote = "(no documents available)"

const excerptLength = 400

// Normalizer canonicalizes raw questions.
type Normalizer interface {
	Normalize(raw string) (models.NormalizedQuery, error)
}

// Cache is the semantic answer cache.
type Cache interface {
	Get(ctx context.Context, tenant string, role models.Role, queryHash string) (*models.CacheEntry, error)
	Set(ctx context.Context, tenant string, role models.Role, queryHash string, answer string, sources []string) error
}

// Retriever produces fused retrieval candidates for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, pred retrieval.Predicate) ([]models.RetrievalCandidate, error)
}

// Authorizer postfilters candidates through the policy engine.
type Authorizer interface {
	Filter(ctx context.Context, qc models.QueryContext, candidates []models.RetrievalCandidate) authz.Result
}

// Redactor scrubs PII from outbound text.
type Redactor interface {
	Redact(text string) string
}

// Generator is the guard-wrapped answer generator.
type Generator interface {
	Mode() guard.Mode
	CheckInput(ctx context.Context, question string) (*guard.Result, error)
	Generate(ctx context.Context, prompt string) (*guard.Result, error)
}

// Auditor records the per-query trail. Implementations must not block.
type Auditor interface {
	Record(entry *models.QueryAudit)
}

// Config bounds context assembly.
type Config struct {
	ContextDocs int
}

// Service orchestrates the full answer pipeline.
type Service struct {
	normalizer Normalizer
	cache      Cache
	retriever  Retriever
	authorizer Authorizer
	redactor   Redactor
	generator  Generator
	auditor    Auditor
	config     Config
	logger     *zap.Logger
}

func NewService(
	normalizer Normalizer,
	cache Cache,
	retriever Retriever,
	authorizer Authorizer,
	redactor Redactor,
	generator Generator,
	auditor Auditor,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.ContextDocs <= 0 {
		config.ContextDocs = 5
	}
	return &Service{
		normalizer: normalizer,
		cache:      cache,
		retriever:  retriever,
		authorizer: authorizer,
		redactor:   redactor,
		generator:  generator,
		auditor:    auditor,
		config:     config,
		logger:     logger,
	}
}

// Answer runs the pipeline end to end for one raw question on behalf
// of the given query context.
func (s *Service) Answer(ctx context.Context, qc models.QueryContext, raw string) (*models.Answer, error) {
	start := time.Now()

	// Step 1: normalize the question.
	s.logger.Debug("step 1: normalizing query", zap.String("tenant", qc.Tenant))
	normalized, err := s.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}

	// The question itself may carry PII; scrub it before it reaches the
	// guard, the retrievers, or the prompt.
	question := s.redactor.Redact(normalized.CanonicalText)

	trail := models.NewQueryAudit(qc.Tenant, qc.Role, normalized.Hash)
	trail.GuardMode = string(s.generator.Mode())

	// Step 2: input guard.
	s.logger.Debug("step 2: checking input guard", zap.String("query_hash", normalized.Hash))
	if refusal, err := s.generator.CheckInput(ctx, question); err != nil {
		s.logger.Warn("input guard check failed", zap.Error(err))
	} else if refusal != nil {
		trail.Outcome = models.QueryOutcomeRefused
		s.record(trail, start)
		return &models.Answer{Text: refusal.Text, Sources: []string{}, Notice: refusal.Notice}, nil
	}

	// Step 3: cache lookup.
	s.logger.Debug("step 3: cache lookup", zap.String("query_hash", normalized.Hash))
	if entry, err := s.cache.Get(ctx, qc.Tenant, qc.Role, normalized.Hash); err != nil {
		s.logger.Warn("cache lookup failed, treating as miss", zap.Error(err))
	} else if entry != nil {
		trail.Outcome = models.QueryOutcomeCacheHit
		trail.CacheHit = true
		s.record(trail, start)
		s.logger.Info("answer served from cache", zap.String("query_hash", normalized.Hash))
		return &models.Answer{Text: entry.AnswerText, Sources: entry.SourceList, CacheHit: true}, nil
	}

	// Step 4: build the role/tenant predicate.
	s.logger.Debug("step 4: building retrieval predicate", zap.String("role", string(qc.Role)))
	pred, err := retrieval.BuildPredicate(qc)
	if err != nil {
		trail.Outcome = models.QueryOutcomeError
		s.record(trail.WithError(err.Error()), start)
		return nil, err
	}

	// Step 5: hybrid retrieval. A total retrieval outage degrades to an
	// empty context instead of failing the query.
	s.logger.Debug("step 5: hybrid retrieval", zap.String("query_hash", normalized.Hash))
	candidates, err := s.retriever.Retrieve(ctx, question, pred)
	if err != nil {
		if !services.IsRetrievalError(err) {
			trail.Outcome = models.QueryOutcomeError
			s.record(trail.WithError(err.Error()), start)
			return nil, err
		}
		s.logger.Warn("retrieval unavailable, continuing with empty context", zap.Error(err))
		candidates = nil
	}
	trail.RetrievedCount = len(candidates)

	// Step 6: authorization postfilter.
	s.logger.Debug("step 6: authorization postfilter", zap.Int("candidates", len(candidates)))
	authResult := s.authorizer.Filter(ctx, qc, candidates)
	trail.AllowedCount = len(authResult.Allowed)
	trail.Restricted = authResult.Restricted

	// Step 7: assemble and redact the context.
	s.logger.Debug("step 7: assembling context", zap.Int("allowed", len(authResult.Allowed)))
	contextText, sources := s.assembleContext(authResult.Allowed)
	contextText = s.redactor.Redact(contextText)

	// Step 8: generation.
	s.logger.Debug("step 8: generating answer", zap.String("guard_mode", string(s.generator.Mode())))
	result, err := s.generator.Generate(ctx, buildPrompt(contextText, question))
	if err != nil {
		s.logger.Error("generation failed", zap.Error(err))
		trail.Outcome = models.QueryOutcomeError
		s.record(trail.WithError(err.Error()), start)
		return &models.Answer{
			Text:       GenerationFailureMessage,
			Sources:    []string{},
			Restricted: authResult.Restricted,
		}, nil
	}

	answer := &models.Answer{
		Text:       s.redactor.Redact(result.Text),
		Sources:    sources,
		Restricted: authResult.Restricted,
		Notice:     result.Notice,
	}

	switch {
	case result.Refused:
		trail.Outcome = models.QueryOutcomeRefused
		answer.Sources = []string{}
	case authResult.Restricted:
		trail.Outcome = models.QueryOutcomeRestricted
	default:
		trail.Outcome = models.QueryOutcomeAnswered
	}

	// Step 9: cache store. Refused and restricted answers are transient
	// states and are not cached.
	if trail.Outcome == models.QueryOutcomeAnswered {
		s.logger.Debug("step 9: caching answer", zap.String("query_hash", normalized.Hash))
		if err := s.cache.Set(ctx, qc.Tenant, qc.Role, normalized.Hash, answer.Text, answer.Sources); err != nil {
			s.logger.Warn("cache store failed", zap.Error(err))
		}
	}

	s.record(trail, start)

	s.logger.Info("query pipeline completed",
		zap.String("query_hash", normalized.Hash),
		zap.String("outcome", string(trail.Outcome)),
		zap.Int("retrieved", trail.RetrievedCount),
		zap.Int("allowed", trail.AllowedCount),
		zap.Int("latency_ms", trail.LatencyMs))

	return answer, nil
}

// assembleContext renders the allowed candidates into numbered excerpt
// blocks and collects their source names in order, without duplicates.
func (s *Service) assembleContext(allowed []models.RetrievalCandidate) (string, []string) {
	if len(allowed) > s.config.ContextDocs {
		allowed = allowed[:s.config.ContextDocs]
	}
	if len(allowed) == 0 {
		return NoContextNote, []string{}
	}

	var blocks []string
	sources := make([]string, 0, len(allowed))
	seen := make(map[string]bool, len(allowed))
	for i, cand := range allowed {
		blocks = append(blocks, fmt.Sprintf("[Document %d] (Source: %s)\n%s", i+1, cand.SourceName, excerpt(cand.Text)))
		if !seen[cand.SourceName] {
			seen[cand.SourceName] = true
			sources = append(sources, cand.SourceName)
		}
	}
	return strings.Join(blocks, "\n\n"), sources
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLength {
		return text
	}
	return string(runes[:excerptLength])
}

func buildPrompt(contextText, question string) string {
	return fmt.Sprintf(
		"Answer the question using only the context below. If the context does not contain the answer, say that no relevant information was found.\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:",
		contextText, question)
}

func (s *Service) record(trail *models.QueryAudit, start time.Time) {
	trail.LatencyMs = int(time.Since(start).Milliseconds())
	if s.auditor != nil {
		s.auditor.Record(trail)
	}
}
