// Package keyword derives the bounded keyword set a target is analyzed
// against. The default generator is a pure frequency ranker over extracted
// site text; an LLM-backed implementation in internal/intelligence/llmgen
// satisfies the same interface, and callers never see the difference.
package keyword

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

// Generator turns a business name and its site text into ranked keywords.
//
// Implementations must be deterministic for identical inputs or document
// loudly that they are not. Every returned keyword is marked generated.
type Generator interface {
	GenerateKeywords(ctx context.Context, businessName, siteText string, max int) ([]visibility.Keyword, error)
}

// wordPattern extracts candidate tokens: lowercase letter runs of three or
// more characters.
var wordPattern = regexp.MustCompile(`[a-z]{3,}`)

// sanitizePattern strips everything outside letters, digits, spaces, and
// hyphens once the input is lowercased.
var sanitizePattern = regexp.MustCompile(`[^a-z0-9\s-]+`)

// genericSuffixes pad the keyword list when the site text alone cannot fill
// it. They mirror how customers qualify a business in search queries.
var genericSuffixes = []string{"services", "reviews", "pricing", "alternatives"}

// ─────────────────────────────────────────────────────────────────────────────
// HeuristicGenerator
// ─────────────────────────────────────────────────────────────────────────────

// HeuristicGenerator ranks site-text tokens by frequency, breaking ties by
// first occurrence so the output is stable across runs. The business name is
// always the top candidate when it fits the length bounds.
type HeuristicGenerator struct {
	log logging.Logger
}

// NewHeuristicGenerator builds the default keyword generator.
func NewHeuristicGenerator(log logging.Logger) *HeuristicGenerator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &HeuristicGenerator{log: log.Named("keyword")}
}

// GenerateKeywords derives up to max keywords. When siteText has no usable
// tokens the business name alone seeds the list, padded with generic
// variants, so a valid name always yields at least one keyword.
func (g *HeuristicGenerator) GenerateKeywords(ctx context.Context, businessName, siteText string, max int) ([]visibility.Keyword, error) {
	if max <= 0 || max > visibility.MaxKeywords {
		max = visibility.MaxKeywords
	}

	name := Sanitize(businessName)

	var values []string
	seen := map[string]bool{}
	add := func(v string) {
		if len(values) >= max {
			return
		}
		if len(v) < visibility.KeywordMinLen || len(v) > visibility.KeywordMaxLen {
			return
		}
		if seen[v] {
			return
		}
		seen[v] = true
		values = append(values, v)
	}

	add(name)
	for _, tok := range rankTokens(siteText) {
		if len(values) >= max {
			break
		}
		add(tok)
	}

	// Name-only fallback: thin or missing site text still produces a
	// usable keyword set.
	if len(values) < max && name != "" {
		for _, tok := range wordPattern.FindAllString(name, -1) {
			if IsStopword(tok) {
				continue
			}
			add(tok)
		}
		for _, suffix := range genericSuffixes {
			if len(values) >= max {
				break
			}
			add(name + " " + suffix)
		}
	}

	g.log.Debug("generated keywords",
		logging.String("business_name", businessName),
		logging.Int("count", len(values)))

	keywords := make([]visibility.Keyword, 0, len(values))
	for _, v := range values {
		keywords = append(keywords, visibility.NewKeyword(v))
	}
	return keywords, nil
}

// rankTokens tokenizes text and returns tokens ordered by descending
// frequency, first occurrence breaking ties.
func rankTokens(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return nil
	}

	type stat struct {
		word  string
		count int
		first int
	}
	freq := make(map[string]*stat, len(words))
	order := make([]*stat, 0, 64)
	for i, w := range words {
		if IsStopword(w) {
			continue
		}
		if s, ok := freq[w]; ok {
			s.count++
			continue
		}
		s := &stat{word: w, count: 1, first: i}
		freq[w] = s
		order = append(order, s)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})

	ranked := make([]string, len(order))
	for i, s := range order {
		ranked[i] = s.word
	}
	return ranked
}

// Sanitize normalizes a keyword candidate: lowercase, strip characters
// outside letters/digits/spaces/hyphens, collapse inner whitespace, trim.
func Sanitize(s string) string {
	s = sanitizePattern.ReplaceAllString(strings.ToLower(s), "")
	return strings.Join(strings.Fields(s), " ")
}
