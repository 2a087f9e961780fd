package llmgen_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aivis/internal/domain/sampling"
	"github.com/turtacn/aivis/internal/intelligence/llmgen"
)

func TestSampler_DetectsMention(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "For reliable work I would call Acme Plumbing first. "+
		"Acme Plumbing handles drains too. Other options exist.")
	defer srv.Close()

	s := llmgen.NewSampler(newClient(t, srv.URL), sampling.NewDeterministicSampler(0), nil)
	out, err := s.SampleTrial(context.Background(), "tid", "Who should I call?", "Acme Plumbing", 0)
	require.NoError(t, err)

	assert.True(t, out.Occurred)
	require.NotNil(t, out.Position)
	assert.Equal(t, 1, *out.Position, "first mentioning sentence sets the position")
	assert.GreaterOrEqual(t, out.ContextRelevance, 0.5)
	assert.LessOrEqual(t, out.ContextRelevance, 1.0)
}

func TestSampler_NoMention(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "Several plumbing companies serve the area.")
	defer srv.Close()

	s := llmgen.NewSampler(newClient(t, srv.URL), sampling.NewDeterministicSampler(0), nil)
	out, err := s.SampleTrial(context.Background(), "tid", "Who should I call?", "Acme Heating", 0)
	require.NoError(t, err)

	assert.False(t, out.Occurred)
	assert.Nil(t, out.Position)
	assert.Less(t, out.ContextRelevance, 0.5, "non-occurrence keeps relevance weak")
}

func TestSampler_FallsBackDeterministically(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	fallback := sampling.NewDeterministicSampler(sampling.DefaultOccurrenceThreshold)
	s := llmgen.NewSampler(newClient(t, srv.URL), fallback, nil)

	a, err := s.SampleTrial(context.Background(), "tid", "prompt", "keyword", 3)
	require.NoError(t, err)
	b, err := fallback.SampleTrial(context.Background(), "tid", "prompt", "keyword", 3)
	require.NoError(t, err)
	assert.Equal(t, b, a, "fallback outcome matches the deterministic sampler")
}
