// Package sampling runs the simulated "does an AI answer mention this
// business" trials that feed the scorer. Every quantity is derived from a
// deterministic hash of the identity tuple, so re-running an analysis with
// unchanged inputs reproduces the exact same checks without persisting raw
// trial outcomes.
package sampling

import (
	"context"
	"crypto/md5"
	"fmt"

	"github.com/turtacn/aivis/pkg/types/visibility"
)

// DefaultOccurrenceThreshold is the percentage of the hash space that
// counts as a mention.
const DefaultOccurrenceThreshold = 60

// Sampler produces the outcome of one trial for a (prompt, keyword) pair.
//
// This is the substitution point for a live "ask a real model" backend:
// implementations must keep the shape of the contract, but only the
// deterministic default guarantees identical outputs for identical inputs.
// A live implementation loses that property and must document it.
type Sampler interface {
	SampleTrial(ctx context.Context, targetID, prompt, keyword string, trial int) (visibility.TrialOutcome, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// DeterministicSampler
// ─────────────────────────────────────────────────────────────────────────────

// DeterministicSampler derives trial outcomes from an MD5 digest of
// "{targetID}_{prompt}_{keyword}_{trial}". The hash is a simulation seed,
// not a security primitive.
type DeterministicSampler struct {
	threshold int
}

// NewDeterministicSampler builds a sampler where threshold percent of the
// hash space counts as an occurrence. Out-of-range thresholds fall back to
// DefaultOccurrenceThreshold.
func NewDeterministicSampler(threshold int) *DeterministicSampler {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultOccurrenceThreshold
	}
	return &DeterministicSampler{threshold: threshold}
}

// SampleTrial returns the outcome for one trial. Occurred trials carry a
// position in [1,100] and relevance in [0.5,1); missed trials carry no
// position and relevance in [0,0.5).
func (s *DeterministicSampler) SampleTrial(_ context.Context, targetID, prompt, keyword string, trial int) (visibility.TrialOutcome, error) {
	digest := md5.Sum([]byte(fmt.Sprintf("%s_%s_%s_%d", targetID, prompt, keyword, trial)))
	residue := mod100(digest)

	outcome := visibility.TrialOutcome{}
	if residue < s.threshold {
		position := residue + 1
		outcome.Occurred = true
		outcome.Position = &position
		outcome.ContextRelevance = 0.5 + float64(residue%50)/100.0
	} else {
		outcome.ContextRelevance = float64(residue%50) / 100.0
	}
	return outcome, nil
}

// mod100 reduces the digest modulo 100, treating the sixteen bytes as one
// big-endian integer.
func mod100(digest [16]byte) int {
	rem := 0
	for _, b := range digest {
		rem = (rem*256 + int(b)) % 100
	}
	return rem
}
