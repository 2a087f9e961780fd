package llmgen

import (
	"context"
	"strings"

	"github.com/turtacn/aivis/internal/domain/sampling"
	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

const samplerSystemPrompt = "You are a consumer-facing AI assistant. Answer " +
	"the question naturally in a short paragraph, naming the businesses or " +
	"products you would actually recommend."

// Sampler runs one live assistant query per trial and scans the answer for
// the keyword. It is the substitution point the deterministic sampler
// reserves: same interface, same check shape.
//
// Live answers are NOT deterministic; re-running an analysis can yield a
// different score. The deterministic sampler remains the default for that
// reason.
type Sampler struct {
	client   *Client
	fallback sampling.Sampler
	log      logging.Logger
}

// NewSampler wraps a chat client with deterministic fallback.
func NewSampler(client *Client, fallback sampling.Sampler, log logging.Logger) *Sampler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Sampler{client: client, fallback: fallback, log: log.Named("llmgen")}
}

// SampleTrial asks the assistant the prompt and derives the outcome from the
// reply: occurred when the keyword is mentioned, position from the mention's
// rank among sentences, relevance from how much of the reply concerns the
// keyword's context.
func (s *Sampler) SampleTrial(ctx context.Context, targetID, prompt, keyword string, trial int) (visibility.TrialOutcome, error) {
	reply, err := s.client.Complete(ctx, samplerSystemPrompt, prompt)
	if err != nil {
		s.log.Warn("live trial fell back to deterministic sampling", logging.Err(err))
		return s.fallback.SampleTrial(ctx, targetID, prompt, keyword, trial)
	}

	lower := strings.ToLower(reply)
	needle := strings.ToLower(keyword)

	sentences := splitSentences(lower)
	mentionAt := -1
	for i, sent := range sentences {
		if strings.Contains(sent, needle) {
			mentionAt = i
			break
		}
	}

	if mentionAt < 0 {
		// Weak relevance: share of keyword tokens that still appear.
		return visibility.TrialOutcome{
			Occurred:         false,
			ContextRelevance: tokenOverlap(lower, needle) * 0.5,
		}, nil
	}

	position := mentionAt + 1
	if position > 100 {
		position = 100
	}
	relevance := 0.5 + 0.5*mentionShare(sentences, needle)
	if relevance > 1 {
		relevance = 1
	}
	return visibility.TrialOutcome{
		Occurred:         true,
		Position:         &position,
		ContextRelevance: relevance,
	}, nil
}

func splitSentences(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
}

// mentionShare is the fraction of sentences that mention the keyword.
func mentionShare(sentences []string, needle string) float64 {
	if len(sentences) == 0 {
		return 0
	}
	hits := 0
	for _, sent := range sentences {
		if strings.Contains(sent, needle) {
			hits++
		}
	}
	return float64(hits) / float64(len(sentences))
}

// tokenOverlap is the fraction of keyword tokens present anywhere in the
// reply.
func tokenOverlap(reply, needle string) float64 {
	tokens := strings.Fields(needle)
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(reply, tok) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}
