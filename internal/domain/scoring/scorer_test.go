package scoring_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aivis/internal/domain/sampling"
	"github.com/turtacn/aivis/internal/domain/scoring"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

func occurred(position int, relevance float64) visibility.VisibilityCheck {
	return visibility.VisibilityCheck{
		Prompt:           "prompt",
		Keyword:          "keyword",
		Occurred:         true,
		Position:         &position,
		ContextRelevance: relevance,
	}
}

func missed(relevance float64) visibility.VisibilityCheck {
	return visibility.VisibilityCheck{
		Prompt:           "prompt",
		Keyword:          "keyword",
		ContextRelevance: relevance,
	}
}

func repeat(c visibility.VisibilityCheck, n int) []visibility.VisibilityCheck {
	out := make([]visibility.VisibilityCheck, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func TestScore_EmptyInput(t *testing.T) {
	t.Parallel()

	got := scoring.Score(nil)

	assert.Zero(t, got.TotalChecks)
	assert.Zero(t, got.Occurrences)
	assert.Nil(t, got.AveragePosition)
	assert.Zero(t, got.AverageContextRelevance)
	assert.Zero(t, got.VisibilityScore)
	require.NotNil(t, got.Checks)
	assert.Empty(t, got.Checks)
}

func TestScore_PerfectVisibility(t *testing.T) {
	t.Parallel()

	// Lead mention in every answer with full relevance is the curve's
	// ceiling: 96.64 base shaved to 91.81 by the calibration factor.
	got := scoring.Score(repeat(occurred(1, 1.0), 4))

	assert.Equal(t, 4, got.TotalChecks)
	assert.Equal(t, 4, got.Occurrences)
	require.NotNil(t, got.AveragePosition)
	assert.Equal(t, 1.0, *got.AveragePosition)
	assert.Equal(t, 1.0, got.AverageContextRelevance)
	assert.Equal(t, 91.81, got.VisibilityScore)
}

func TestScore_NothingOccurred(t *testing.T) {
	t.Parallel()

	got := scoring.Score(repeat(missed(0.2), 5))

	assert.Equal(t, 5, got.TotalChecks)
	assert.Zero(t, got.Occurrences)
	assert.Nil(t, got.AveragePosition)
	assert.InDelta(t, 0.2, got.AverageContextRelevance, 1e-9)
	assert.Equal(t, 1.25, got.VisibilityScore)
}

func TestScore_MixedBattery(t *testing.T) {
	t.Parallel()

	checks := []visibility.VisibilityCheck{
		occurred(2, 0.8),
		occurred(4, 0.7),
		occurred(6, 0.6),
		missed(0.1),
		missed(0.2),
	}

	got := scoring.Score(checks)

	assert.Equal(t, 5, got.TotalChecks)
	assert.Equal(t, 3, got.Occurrences)
	require.NotNil(t, got.AveragePosition)
	assert.Equal(t, 4.0, *got.AveragePosition)
	assert.InDelta(t, 0.48, got.AverageContextRelevance, 1e-9)
	assert.Equal(t, 57.68, got.VisibilityScore)
	assert.Equal(t, checks, got.Checks)
}

func TestScore_PositionCurve(t *testing.T) {
	t.Parallel()

	// One fully-occurred check per case isolates the rank curve and the
	// late-rank penalty from the occurrence and relevance terms.
	testCases := []struct {
		position int
		want     float64
	}{
		{1, 88.01},
		{2, 87.01},
		{3, 86.01},
		{4, 76.84},
		{5, 74.44},
		{6, 64.04},
		{7, 55.03},
		{10, 45.55},
		{11, 44.52},
		{15, 40.38},
		{16, 38.37},
		{40, 38.37},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("rank_%d", tc.position), func(t *testing.T) {
			t.Parallel()

			got := scoring.Score([]visibility.VisibilityCheck{occurred(tc.position, 0.5)})
			assert.Equal(t, tc.want, got.VisibilityScore)
		})
	}
}

func TestScore_LatePenaltyCaps(t *testing.T) {
	t.Parallel()

	// Average rank 20 would be a 167% penalty uncapped; the cap holds it
	// at 28% and ranks 16 and 40 score identically on the flat curve tail.
	got := scoring.Score(repeat(occurred(20, 0.9), 2))

	assert.Equal(t, 40.56, got.VisibilityScore)
}

func TestScore_LowOccurrencePenalty(t *testing.T) {
	t.Parallel()

	checks := []visibility.VisibilityCheck{
		occurred(3, 0.5),
		occurred(5, 0.5),
		missed(0.5),
		missed(0.5),
	}

	got := scoring.Score(checks)

	assert.Equal(t, 4, got.TotalChecks)
	assert.Equal(t, 2, got.Occurrences)
	require.NotNil(t, got.AveragePosition)
	assert.Equal(t, 4.0, *got.AveragePosition)
	assert.Equal(t, 52.24, got.VisibilityScore)
}

func TestScore_Pure(t *testing.T) {
	t.Parallel()

	checks := []visibility.VisibilityCheck{
		occurred(1, 0.9),
		occurred(8, 0.6),
		missed(0.3),
	}

	first := scoring.Score(checks)
	second := scoring.Score(checks)
	assert.Equal(t, first, second)
}

func TestScore_BoundsOverSampledBatteries(t *testing.T) {
	t.Parallel()

	// Feed the scorer real sampler output across many targets; the score
	// stays within [0, 100] and AveragePosition tracks occurrences.
	sampler := sampling.NewDeterministicSampler(sampling.DefaultOccurrenceThreshold)
	runner := sampling.NewRunner(sampler, 4, nil)

	prompts := []visibility.Prompt{
		visibility.NewPrompt("What is the best option for plumbing?"),
		visibility.NewPrompt("Top plumbing recommendations"),
	}
	keywords := []visibility.Keyword{
		visibility.NewKeyword("plumbing"),
		visibility.NewKeyword("drain repair"),
		visibility.NewKeyword("acme"),
	}

	targets := []string{"t-1", "t-2", "t-3", "t-4", "t-5"}
	for _, id := range targets {
		checks, err := runner.Run(context.Background(), id, prompts, keywords, 10)
		require.NoError(t, err)
		require.Len(t, checks, 60)

		got := scoring.Score(checks)
		assert.GreaterOrEqual(t, got.VisibilityScore, 0.0)
		assert.LessOrEqual(t, got.VisibilityScore, 100.0)
		assert.Equal(t, 60, got.TotalChecks)
		if got.Occurrences > 0 {
			assert.NotNil(t, got.AveragePosition)
		} else {
			assert.Nil(t, got.AveragePosition)
		}
	}
}
