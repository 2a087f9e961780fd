package llmgen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/turtacn/aivis/internal/domain/keyword"
	"github.com/turtacn/aivis/internal/domain/prompt"
	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

const keywordSystemPrompt = "You extract search keywords for a business. " +
	"Reply with a single comma-separated line, nothing else."

const promptSystemPrompt = "You write short natural-language questions a " +
	"consumer would ask an AI assistant. Reply with one question per line, " +
	"no numbering, no commentary. Do not include the business name in " +
	"comparison questions."

// listLinePrefix strips bullet or numbering decorations models add despite
// instructions.
var listLinePrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// Generator asks a chat model for keywords and falls back to the heuristic
// ranker on any error. It satisfies keyword.Generator; callers never see the
// difference. Unlike the heuristic, output is NOT deterministic across runs.
type Generator struct {
	client   *Client
	fallback keyword.Generator
	log      logging.Logger
}

// NewGenerator wraps a chat client with heuristic fallback.
func NewGenerator(client *Client, fallback keyword.Generator, log logging.Logger) *Generator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Generator{client: client, fallback: fallback, log: log.Named("llmgen")}
}

// GenerateKeywords asks for exactly max comma-separated keywords and applies
// the same sanitation and bounds as the heuristic path.
func (g *Generator) GenerateKeywords(ctx context.Context, businessName, siteText string, max int) ([]visibility.Keyword, error) {
	if max <= 0 || max > visibility.MaxKeywords {
		max = visibility.MaxKeywords
	}

	user := fmt.Sprintf(
		"Business: %s\n\nWebsite text:\n%s\n\nGive exactly %d keywords, each 2-40 characters, comma-separated.",
		businessName, clip(siteText, 4000), max)

	reply, err := g.client.Complete(ctx, keywordSystemPrompt, user)
	if err != nil {
		g.log.Warn("keyword generation fell back to heuristic", logging.Err(err))
		return g.fallback.GenerateKeywords(ctx, businessName, siteText, max)
	}

	values := make([]string, 0, max)
	seen := map[string]bool{}
	for _, part := range strings.Split(reply, ",") {
		if len(values) >= max {
			break
		}
		v := keyword.Sanitize(part)
		if len(v) < visibility.KeywordMinLen || len(v) > visibility.KeywordMaxLen || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	if len(values) == 0 {
		g.log.Warn("keyword generation returned nothing usable, falling back")
		return g.fallback.GenerateKeywords(ctx, businessName, siteText, max)
	}

	keywords := make([]visibility.Keyword, len(values))
	for i, v := range values {
		keywords[i] = visibility.NewKeyword(v)
	}
	return keywords, nil
}

// Builder asks a chat model for prompts and falls back to templates on any
// error. It satisfies prompt.Builder.
type Builder struct {
	client   *Client
	fallback prompt.Builder
	log      logging.Logger
}

// NewBuilder wraps a chat client with template fallback.
func NewBuilder(client *Client, fallback prompt.Builder, log logging.Logger) *Builder {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Builder{client: client, fallback: fallback, log: log.Named("llmgen")}
}

// BuildPrompts asks for one question per line, then applies the same dedupe,
// truncation, and internal-host policy as the template path.
func (b *Builder) BuildPrompts(ctx context.Context, businessName string, keywords []visibility.Keyword, max int) ([]visibility.Prompt, error) {
	if max <= 0 || max > visibility.MaxPrompts {
		max = visibility.MaxPrompts
	}

	user := fmt.Sprintf(
		"Business: %s\nKeywords: %s\n\nWrite up to %d questions, each at most %d characters, one per line.",
		businessName, strings.Join(visibility.KeywordValues(keywords), ", "),
		max, visibility.PromptMaxLen)

	reply, err := b.client.Complete(ctx, promptSystemPrompt, user)
	if err != nil {
		b.log.Warn("prompt generation fell back to templates", logging.Err(err))
		return b.fallback.BuildPrompts(ctx, businessName, keywords, max)
	}

	prompts := make([]visibility.Prompt, 0, max)
	seen := map[string]bool{}
	for _, line := range strings.Split(reply, "\n") {
		if len(prompts) >= max {
			break
		}
		v := strings.Join(strings.Fields(listLinePrefix.ReplaceAllString(line, "")), " ")
		if v == "" || prompt.ContainsInternalHost(v) {
			continue
		}
		if len(v) > visibility.PromptMaxLen {
			v = v[:visibility.PromptMaxLen]
		}
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		prompts = append(prompts, visibility.NewPrompt(v))
	}
	if len(prompts) == 0 {
		b.log.Warn("prompt generation returned nothing usable, falling back")
		return b.fallback.BuildPrompts(ctx, businessName, keywords, max)
	}
	return prompts, nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
