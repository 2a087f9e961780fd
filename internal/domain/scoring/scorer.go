// Package scoring aggregates sampled visibility checks into the composite
// 0-100 score. Score is a pure function: the same check list always yields
// the same result, there is no I/O and no shared state, so analysis runs
// are reproducible end to end.
package scoring

import (
	"math"

	"github.com/turtacn/aivis/pkg/types/visibility"
)

// Weights of the three score components, on a 100-point scale. Occurrence
// carries half the score, rank most of the rest; relevance is a tiebreaker.
const (
	occurrenceWeight = 50.0
	positionWeight   = 42.0
	relevanceWeight  = 8.0
)

// calibrationFactor pulls every score down 5% toward conservative estimates.
const calibrationFactor = 0.95

// Penalty triggers. An average rank past lateRankThreshold or an occurrence
// rate below lowOccurrenceThreshold shrinks the whole score multiplicatively.
const (
	lateRankThreshold       = 5.0
	maxLatePenalty          = 0.28
	lowOccurrenceThreshold  = 0.55
	lowOccurrencePenaltyMul = 0.32
)

// Score computes the aggregate visibility score for one analysis run.
//
// An empty batch yields the zero score with AveragePosition absent and a
// non-nil empty check list. AveragePosition averages only checks that carry
// a position; AverageContextRelevance averages every check.
func Score(checks []visibility.VisibilityCheck) visibility.VisibilityScore {
	if len(checks) == 0 {
		return visibility.VisibilityScore{Checks: []visibility.VisibilityCheck{}}
	}

	total := len(checks)
	occurrences := 0
	positionSum := 0
	positionCount := 0
	relevanceSum := 0.0
	for _, c := range checks {
		if c.Occurred {
			occurrences++
		}
		if c.Position != nil {
			positionSum += *c.Position
			positionCount++
		}
		relevanceSum += c.ContextRelevance
	}

	var averagePosition *float64
	if positionCount > 0 {
		avg := float64(positionSum) / float64(positionCount)
		averagePosition = &avg
	}
	averageRelevance := relevanceSum / float64(total)
	occurrenceRate := float64(occurrences) / float64(total)

	score := occurrenceRate*occurrenceWeight +
		positionScore(averagePosition)*positionWeight +
		averageRelevance*relevanceWeight

	// Showing up late costs up to 28% of the whole score.
	if averagePosition != nil && *averagePosition > lateRankThreshold {
		penalty := math.Min(maxLatePenalty, (*averagePosition-lateRankThreshold)/9.0)
		score *= 1.0 - penalty
	}
	// Being absent from too many answers costs up to ~18% more.
	if occurrenceRate < lowOccurrenceThreshold {
		score *= 1.0 - (lowOccurrenceThreshold-occurrenceRate)*lowOccurrencePenaltyMul
	}
	score *= calibrationFactor

	score = math.Max(0.0, math.Min(100.0, score))

	return visibility.VisibilityScore{
		TotalChecks:             total,
		Occurrences:             occurrences,
		AveragePosition:         averagePosition,
		AverageContextRelevance: averageRelevance,
		VisibilityScore:         round2(score),
		Checks:                  checks,
	}
}

// positionScore maps the average brand rank onto [0, 1]. Rank is the order
// of the mention among competing brands in an answer, so 1 is the lead
// mention; past 15 a mention is practically invisible.
func positionScore(averagePosition *float64) float64 {
	if averagePosition == nil {
		return 0.0
	}
	p := *averagePosition
	switch {
	case p <= 3:
		return 0.92 - ((p-1)/2)*0.05
	case p <= 6:
		return 0.70 - ((p-3)/3)*0.18
	case p <= 10:
		return 0.55 - ((p-6)/4)*0.25
	case p <= 15:
		return 0.30 - ((p-10)/5)*0.18
	default:
		return 0.05
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
