package sampling_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aivis/internal/domain/sampling"
)

func TestDeterministicSampler_SameTupleSameOutcome(t *testing.T) {
	t.Parallel()

	s := sampling.NewDeterministicSampler(sampling.DefaultOccurrenceThreshold)
	ctx := context.Background()

	first, err := s.SampleTrial(ctx, "target-1", "What is the best option for plumbing?", "plumbing", 0)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := s.SampleTrial(ctx, "target-1", "What is the best option for plumbing?", "plumbing", 0)
		require.NoError(t, err)
		assert.Equal(t, first.Occurred, again.Occurred)
		assert.Equal(t, first.ContextRelevance, again.ContextRelevance)
		if first.Position == nil {
			assert.Nil(t, again.Position)
		} else {
			require.NotNil(t, again.Position)
			assert.Equal(t, *first.Position, *again.Position)
		}
	}
}

func TestDeterministicSampler_TupleComponentsMatter(t *testing.T) {
	t.Parallel()

	s := sampling.NewDeterministicSampler(sampling.DefaultOccurrenceThreshold)
	ctx := context.Background()

	base, err := s.SampleTrial(ctx, "target-1", "prompt", "keyword", 0)
	require.NoError(t, err)

	variants := []struct {
		name            string
		targetID        string
		prompt, keyword string
		trial           int
	}{
		{"target", "target-2", "prompt", "keyword", 0},
		{"prompt", "target-1", "other prompt", "keyword", 0},
		{"keyword", "target-1", "prompt", "other", 0},
		{"trial", "target-1", "prompt", "keyword", 1},
	}

	// At least one of the four single-component variations must land on a
	// different outcome. All four colliding with the base residue would mean
	// the tuple is not actually feeding the hash.
	differs := 0
	for _, v := range variants {
		out, err := s.SampleTrial(ctx, v.targetID, v.prompt, v.keyword, v.trial)
		require.NoError(t, err, v.name)
		if out.Occurred != base.Occurred || out.ContextRelevance != base.ContextRelevance {
			differs++
		}
	}
	assert.Greater(t, differs, 0)
}

func TestDeterministicSampler_OccurredShape(t *testing.T) {
	t.Parallel()

	s := sampling.NewDeterministicSampler(sampling.DefaultOccurrenceThreshold)
	ctx := context.Background()

	sawOccurred := false
	sawMissed := false
	for trial := 0; trial < 200; trial++ {
		out, err := s.SampleTrial(ctx, "shape-target", "Top plumbing recommendations", "plumbing", trial)
		require.NoError(t, err)

		if out.Occurred {
			sawOccurred = true
			require.NotNil(t, out.Position)
			assert.GreaterOrEqual(t, *out.Position, 1)
			assert.LessOrEqual(t, *out.Position, 100)
			assert.GreaterOrEqual(t, out.ContextRelevance, 0.5)
			assert.Less(t, out.ContextRelevance, 1.0)
		} else {
			sawMissed = true
			assert.Nil(t, out.Position)
			assert.GreaterOrEqual(t, out.ContextRelevance, 0.0)
			assert.Less(t, out.ContextRelevance, 0.5)
		}
	}

	// Across 200 trials of a 60% occurrence threshold both branches show up.
	assert.True(t, sawOccurred, "expected at least one occurrence in 200 trials")
	assert.True(t, sawMissed, "expected at least one miss in 200 trials")
}

func TestDeterministicSampler_PositionTracksResidue(t *testing.T) {
	t.Parallel()

	s := sampling.NewDeterministicSampler(sampling.DefaultOccurrenceThreshold)
	ctx := context.Background()

	for trial := 0; trial < 100; trial++ {
		out, err := s.SampleTrial(ctx, "residue-target", "prompt", "keyword", trial)
		require.NoError(t, err)
		if !out.Occurred {
			continue
		}
		// Position is residue+1 and occurrence requires residue < threshold,
		// so positions never exceed the threshold value.
		assert.LessOrEqual(t, *out.Position, sampling.DefaultOccurrenceThreshold)
	}
}

func TestNewDeterministicSampler_ClampsThreshold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// Out-of-range thresholds fall back to the default, so the outcome for a
	// fixed tuple matches the default sampler's.
	ref, err := sampling.NewDeterministicSampler(sampling.DefaultOccurrenceThreshold).
		SampleTrial(ctx, "clamp-target", "prompt", "keyword", 3)
	require.NoError(t, err)

	for _, threshold := range []int{-1, 0, 101, 1000} {
		out, err := sampling.NewDeterministicSampler(threshold).
			SampleTrial(ctx, "clamp-target", "prompt", "keyword", 3)
		require.NoError(t, err)
		assert.Equal(t, ref.Occurred, out.Occurred, "threshold %d", threshold)
		assert.Equal(t, ref.ContextRelevance, out.ContextRelevance, "threshold %d", threshold)
	}
}

func TestDeterministicSampler_ThresholdZeroOccurrences(t *testing.T) {
	t.Parallel()

	// Threshold 1 admits only residue 0, so occurrences are rare but the
	// sampler still produces well-formed misses.
	s := sampling.NewDeterministicSampler(1)
	ctx := context.Background()

	misses := 0
	for trial := 0; trial < 50; trial++ {
		out, err := s.SampleTrial(ctx, "rare-target", "prompt", "keyword", trial)
		require.NoError(t, err)
		if !out.Occurred {
			misses++
			assert.Nil(t, out.Position)
		}
	}
	assert.Greater(t, misses, 0)
}
