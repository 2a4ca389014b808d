package guard

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/services"
)

// Mode is the resolved generation mode for the lifetime of the
// process. Resolution happens exactly once at startup; a guard that
// fails to initialize never comes back without a restart.
type Mode string

const (
	ModeBaseOnly Mode = "base_only"
	ModeGuarded  Mode = "guarded"
)

// RefusalMessage is the fixed reply for content the guard rejects.
const RefusalMessage = "I can't help with that request."

// DegradedNotice is surfaced once when the guard profile was requested
// but the classifier could not be initialized.
const DegradedNotice = "Safety guard unavailable, answering without guardrails."

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classifier judges whether text is safe.
type Classifier interface {
	Verify(ctx context.Context) error
	Classify(ctx context.Context, text string) (bool, error)
}

// Service wraps the base generator with optional llama-guard style
// input and output classification.
type Service struct {
	generator  Generator
	classifier Classifier
	mode       Mode
	notice     string
	// noticeTaken flips once; the service is shared by concurrent
	// gateway requests, so the hand-off must be atomic.
	noticeTaken atomic.Bool
	logger      *zap.Logger
}

// Resolve builds the service and pins its mode. When the profile asks
// for guardrails but the classifier cannot be verified, the service
// falls back to base-only generation permanently and records a
// degraded notice for the first answer.
func Resolve(ctx context.Context, profile models.Profile, generator Generator, classifier Classifier, logger *zap.Logger) *Service {
	s := &Service{
		generator:  generator,
		classifier: classifier,
		mode:       ModeBaseOnly,
		logger:     logger,
	}

	if profile != models.ProfileGuardrails {
		return s
	}

	if classifier == nil {
		s.notice = DegradedNotice
		logger.Warn("guard profile requested but no classifier configured")
		return s
	}
	if err := classifier.Verify(ctx); err != nil {
		s.notice = DegradedNotice
		logger.Warn("guard classifier failed to initialize, falling back to base generation", zap.Error(err))
		return s
	}

	s.mode = ModeGuarded
	logger.Info("guard classifier initialized", zap.String("mode", string(s.mode)))
	return s
}

// Mode returns the resolved generation mode.
func (s *Service) Mode() Mode {
	return s.mode
}

// Result carries the generation outcome plus guard metadata.
type Result struct {
	Text    string
	Refused bool
	// Notice is non-empty on the first answer after a degraded guard
	// startup, then never again.
	Notice string
}

// CheckInput classifies the incoming question in guarded mode. A
// refusal means the caller should skip retrieval entirely.
func (s *Service) CheckInput(ctx context.Context, question string) (*Result, error) {
	if s.mode != ModeGuarded {
		return nil, nil
	}
	safe, err := s.classifier.Classify(ctx, question)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeGuard, "input classification failed", err)
	}
	if safe {
		return nil, nil
	}
	s.logger.Info("input rejected by guard")
	return &Result{Text: RefusalMessage, Refused: true, Notice: s.takeNotice()}, nil
}

// Generate produces an answer, classifying the output in guarded mode.
func (s *Service) Generate(ctx context.Context, prompt string) (*Result, error) {
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if s.mode == ModeGuarded {
		safe, err := s.classifier.Classify(ctx, text)
		if err != nil {
			return nil, services.WrapError(services.ErrorTypeGuard, "output classification failed", err)
		}
		if !safe {
			s.logger.Info("output rejected by guard")
			return &Result{Text: RefusalMessage, Refused: true, Notice: s.takeNotice()}, nil
		}
	}

	return &Result{Text: text, Notice: s.takeNotice()}, nil
}

// takeNotice hands out the degraded notice exactly once, even when
// several requests finish at the same time.
func (s *Service) takeNotice() string {
	if s.notice == "" || !s.noticeTaken.CompareAndSwap(false, true) {
		return ""
	}
	return s.notice
}
