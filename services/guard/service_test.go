package guard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/secure-rag/models"
)

type fakeGenerator struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.text, f.err
}

type fakeClassifier struct {
	verifyErr   error
	safe        bool
	classifyErr error
	classified  []string
}

func (f *fakeClassifier) Verify(ctx context.Context) error { return f.verifyErr }

func (f *fakeClassifier) Classify(ctx context.Context, text string) (bool, error) {
	f.classified = append(f.classified, text)
	return f.safe, f.classifyErr
}

func TestResolve_BaseProfileStaysBaseOnly(t *testing.T) {
	s := Resolve(context.Background(), models.ProfileBase, &fakeGenerator{text: "hi"}, &fakeClassifier{}, zap.NewNop())
	assert.Equal(t, ModeBaseOnly, s.Mode())

	res, err := s.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Text)
	assert.False(t, res.Refused)
	assert.Empty(t, res.Notice)
}

func TestResolve_GuardrailsWithHealthyClassifier(t *testing.T) {
	s := Resolve(context.Background(), models.ProfileGuardrails, &fakeGenerator{}, &fakeClassifier{safe: true}, zap.NewNop())
	assert.Equal(t, ModeGuarded, s.Mode())
}

func TestResolve_InitFailureFallsBackPermanently(t *testing.T) {
	cls := &fakeClassifier{verifyErr: errors.New("model not found")}
	s := Resolve(context.Background(), models.ProfileGuardrails, &fakeGenerator{text: "answer"}, cls, zap.NewNop())

	assert.Equal(t, ModeBaseOnly, s.Mode())

	// First answer carries the degraded notice, later ones do not.
	res, err := s.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, DegradedNotice, res.Notice)
	assert.Equal(t, "answer", res.Text)

	res, err = s.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Empty(t, res.Notice)

	// Base-only mode never consults the classifier.
	assert.Empty(t, cls.classified)
}

func TestGenerate_ConcurrentRequestsDeliverNoticeOnce(t *testing.T) {
	cls := &fakeClassifier{verifyErr: errors.New("model not found")}
	s := Resolve(context.Background(), models.ProfileGuardrails, &fakeGenerator{text: "answer"}, cls, zap.NewNop())

	const workers = 8
	notices := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Generate(context.Background(), "prompt")
			if !assert.NoError(t, err) {
				notices <- ""
				return
			}
			notices <- res.Notice
		}()
	}
	wg.Wait()
	close(notices)

	delivered := 0
	for n := range notices {
		if n != "" {
			assert.Equal(t, DegradedNotice, n)
			delivered++
		}
	}
	assert.Equal(t, 1, delivered)
}

func TestCheckInput_UnsafeQuestionRefusedBeforeRetrieval(t *testing.T) {
	cls := &fakeClassifier{safe: false}
	s := Resolve(context.Background(), models.ProfileGuardrails, &fakeGenerator{}, cls, zap.NewNop())

	res, err := s.CheckInput(context.Background(), "how do I do something harmful")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Refused)
	assert.Equal(t, RefusalMessage, res.Text)
}

func TestCheckInput_SafeQuestionPassesThrough(t *testing.T) {
	cls := &fakeClassifier{safe: true}
	s := Resolve(context.Background(), models.ProfileGuardrails, &fakeGenerator{}, cls, zap.NewNop())

	res, err := s.CheckInput(context.Background(), "what is the vacation policy")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestCheckInput_BaseOnlySkipsClassification(t *testing.T) {
	cls := &fakeClassifier{safe: false}
	s := Resolve(context.Background(), models.ProfileBase, &fakeGenerator{}, cls, zap.NewNop())

	res, err := s.CheckInput(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, cls.classified)
}

func TestGenerate_UnsafeOutputReplacedWithRefusal(t *testing.T) {
	cls := &fakeClassifier{safe: false}
	s := Resolve(context.Background(), models.ProfileGuardrails, &fakeGenerator{text: "something unsafe"}, cls, zap.NewNop())

	res, err := s.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.True(t, res.Refused)
	assert.Equal(t, RefusalMessage, res.Text)
}

func TestGenerate_GeneratorErrorPropagates(t *testing.T) {
	s := Resolve(context.Background(), models.ProfileBase, &fakeGenerator{err: errors.New("ollama down")}, nil, zap.NewNop())

	_, err := s.Generate(context.Background(), "prompt")
	assert.Error(t, err)
}
