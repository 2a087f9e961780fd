// Package visibility defines the shared value types of the visibility
// analysis pipeline: keywords and prompts attached to a target, the outcome
// of a single simulated assistant query, and the aggregated score.  The
// types carry no behavior beyond construction helpers; all invariants are
// enforced by the domain layer.
package visibility

// Bounds enforced on target content.  Generation and validation share them.
const (
	// KeywordMinLen and KeywordMaxLen bound a single keyword after
	// sanitation.
	KeywordMinLen = 2
	KeywordMaxLen = 40

	// MaxKeywords caps how many keywords a target may carry.
	MaxKeywords = 5

	// PromptMaxLen bounds a single prompt; longer generated prompts are
	// truncated, longer user prompts are rejected.
	PromptMaxLen = 200

	// MaxPrompts caps how many prompts a target may carry.
	MaxPrompts = 10
)

// Keyword is a single search term the analysis checks visibility for.
// Generated distinguishes pipeline-produced keywords from user-supplied
// replacements.
type Keyword struct {
	Value     string `json:"value"`
	Generated bool   `json:"generated"`
}

// Prompt is a question posed to the simulated assistant.
type Prompt struct {
	Value     string `json:"value"`
	Generated bool   `json:"generated"`
}

// NewKeyword constructs a pipeline-generated keyword.
func NewKeyword(value string) Keyword {
	return Keyword{Value: value, Generated: true}
}

// NewPrompt constructs a pipeline-generated prompt.
func NewPrompt(value string) Prompt {
	return Prompt{Value: value, Generated: true}
}

// KeywordValues projects a keyword slice onto its raw values.
func KeywordValues(keywords []Keyword) []string {
	out := make([]string, len(keywords))
	for i, k := range keywords {
		out[i] = k.Value
	}
	return out
}

// PromptValues projects a prompt slice onto its raw values.
func PromptValues(prompts []Prompt) []string {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = p.Value
	}
	return out
}

// TrialOutcome is the result of one simulated assistant query for one
// prompt/keyword pair.  Position is set only when the target occurred and
// then lies in [1, 100]; ContextRelevance always lies in [0, 1].
type TrialOutcome struct {
	Occurred         bool
	Position         *int
	ContextRelevance float64
}

// VisibilityCheck is a TrialOutcome annotated with the prompt and keyword
// that produced it, as returned to API callers.
type VisibilityCheck struct {
	Prompt           string  `json:"prompt"`
	Keyword          string  `json:"keyword"`
	Occurred         bool    `json:"occurred"`
	Position         *int    `json:"position,omitempty"`
	ContextRelevance float64 `json:"contextRelevance"`
}

// Check annotates a trial outcome with its prompt and keyword.
func (o TrialOutcome) Check(prompt, keyword string) VisibilityCheck {
	return VisibilityCheck{
		Prompt:           prompt,
		Keyword:          keyword,
		Occurred:         o.Occurred,
		Position:         o.Position,
		ContextRelevance: o.ContextRelevance,
	}
}

// VisibilityScore aggregates every check of one analysis run.
//
// AveragePosition is computed over occurred checks only and omitted when
// nothing occurred.  AverageContextRelevance is computed over all checks.
// VisibilityScore is the weighted composite in [0, 100].
type VisibilityScore struct {
	TotalChecks             int               `json:"totalChecks"`
	Occurrences             int               `json:"occurrences"`
	AveragePosition         *float64          `json:"averagePosition,omitempty"`
	AverageContextRelevance float64           `json:"averageContextRelevance"`
	VisibilityScore         float64           `json:"visibilityScore"`
	Checks                  []VisibilityCheck `json:"checks"`
}

// OccurrenceRate returns occurrences over total checks, zero when empty.
func (s VisibilityScore) OccurrenceRate() float64 {
	if s.TotalChecks == 0 {
		return 0
	}
	return float64(s.Occurrences) / float64(s.TotalChecks)
}
