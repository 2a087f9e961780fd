// Package prompt synthesizes the natural-language questions a target's
// visibility is sampled against. The default builder expands fixed
// templates per keyword; an LLM-backed implementation in
// internal/intelligence/llmgen satisfies the same interface.
package prompt

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

// Builder turns a business name and keywords into analysis prompts.
type Builder interface {
	BuildPrompts(ctx context.Context, businessName string, keywords []visibility.Keyword, max int) ([]visibility.Prompt, error)
}

// internalHostPattern spots prompts that smuggle in private or loopback
// hosts. The network guard enforces the same policy at fetch time; this
// mirrors it at the content level.
var internalHostPattern = regexp.MustCompile(
	`(?i)\b(localhost|127\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}` +
		`|10\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}` +
		`|172\.(1[6-9]|2[0-9]|3[01])\.[0-9]{1,3}\.[0-9]{1,3}` +
		`|192\.168\.[0-9]{1,3}\.[0-9]{1,3}` +
		`|169\.254\.[0-9]{1,3}\.[0-9]{1,3})\b`)

// ContainsInternalHost reports whether the text references a private,
// loopback, or link-local host. Target validation applies it to
// user-supplied prompts.
func ContainsInternalHost(s string) bool {
	return internalHostPattern.MatchString(s)
}

// ─────────────────────────────────────────────────────────────────────────────
// TemplateBuilder
// ─────────────────────────────────────────────────────────────────────────────

// TemplateBuilder expands question templates per keyword, in keyword order,
// deduplicating case-insensitively. Output is deterministic for identical
// inputs.
type TemplateBuilder struct {
	log logging.Logger
}

// NewTemplateBuilder builds the default prompt builder.
func NewTemplateBuilder(log logging.Logger) *TemplateBuilder {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TemplateBuilder{log: log.Named("prompt")}
}

// BuildPrompts produces up to max prompts. Each keyword contributes its
// template expansions before the next keyword is considered, so the most
// relevant keyword dominates when the cap cuts the list short. Candidates
// embedding internal hosts are skipped, oversized candidates truncated.
func (b *TemplateBuilder) BuildPrompts(ctx context.Context, businessName string, keywords []visibility.Keyword, max int) ([]visibility.Prompt, error) {
	if max <= 0 || max > visibility.MaxPrompts {
		max = visibility.MaxPrompts
	}

	name := strings.TrimSpace(businessName)

	var values []string
	seen := map[string]bool{}
	add := func(candidate string) {
		if len(values) >= max {
			return
		}
		candidate = truncate(strings.TrimSpace(candidate), visibility.PromptMaxLen)
		if candidate == "" {
			return
		}
		if internalHostPattern.MatchString(candidate) {
			b.log.Warn("skipping prompt with internal host", logging.String("prompt", candidate))
			return
		}
		key := strings.ToLower(candidate)
		if seen[key] {
			return
		}
		seen[key] = true
		values = append(values, candidate)
	}

	for _, kw := range keywords {
		k := strings.TrimSpace(kw.Value)
		if k == "" {
			continue
		}
		add(fmt.Sprintf("What is the best option for %s?", k))
		if name != "" {
			add(fmt.Sprintf("Is %s a good choice for %s?", name, k))
		}
		add(fmt.Sprintf("Top %s recommendations", k))
		add(fmt.Sprintf("Compare the best %s services", k))
		if len(values) >= max {
			break
		}
	}

	b.log.Debug("built prompts",
		logging.String("business_name", businessName),
		logging.Int("count", len(values)))

	prompts := make([]visibility.Prompt, 0, len(values))
	for _, v := range values {
		prompts = append(prompts, visibility.NewPrompt(v))
	}
	return prompts, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
