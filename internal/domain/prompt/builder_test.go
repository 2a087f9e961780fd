package prompt_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aivis/internal/domain/prompt"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

func kws(values ...string) []visibility.Keyword {
	out := make([]visibility.Keyword, len(values))
	for i, v := range values {
		out[i] = visibility.NewKeyword(v)
	}
	return out
}

func build(t *testing.T, name string, keywords []visibility.Keyword, max int) []string {
	t.Helper()
	prompts, err := prompt.NewTemplateBuilder(nil).BuildPrompts(context.Background(), name, keywords, max)
	require.NoError(t, err)
	values := make([]string, len(prompts))
	for i, p := range prompts {
		values[i] = p.Value
		assert.True(t, p.Generated, "template output must be marked generated")
	}
	return values
}

func TestTemplateBuilder_ExpandsTemplatesPerKeyword(t *testing.T) {
	t.Parallel()

	values := build(t, "Acme Plumbing", kws("plumbing"), 10)
	assert.Equal(t, []string{
		"What is the best option for plumbing?",
		"Is Acme Plumbing a good choice for plumbing?",
		"Top plumbing recommendations",
		"Compare the best plumbing services",
	}, values)
}

func TestTemplateBuilder_FirstKeywordDominatesUnderCap(t *testing.T) {
	t.Parallel()

	values := build(t, "Acme", kws("plumbing", "heating", "drains"), 10)
	require.Len(t, values, 10)
	for _, v := range values[:4] {
		assert.Contains(t, v, "plumbing")
	}
	assert.Contains(t, values[4], "heating")
}

func TestTemplateBuilder_AtLeastTwoPromptsPerKeyword(t *testing.T) {
	t.Parallel()

	values := build(t, "", kws("plumbing"), 10)
	assert.GreaterOrEqual(t, len(values), 2)
}

func TestTemplateBuilder_DedupesCaseInsensitively(t *testing.T) {
	t.Parallel()

	values := build(t, "Acme", kws("Plumbing", "plumbing"), 10)
	seen := map[string]bool{}
	for _, v := range values {
		key := strings.ToLower(v)
		assert.False(t, seen[key], "duplicate prompt %q", v)
		seen[key] = true
	}
	assert.Len(t, values, 4, "case variants of one keyword collapse to one set")
}

func TestTemplateBuilder_SkipsInternalHosts(t *testing.T) {
	t.Parallel()

	cases := []string{
		"visit http://localhost:8000 now",
		"see 127.0.0.1 dashboard",
		"10.1.2.3 internal tool",
		"172.16.0.1 gateway",
		"192.168.1.1 router",
	}
	for _, kw := range cases {
		values := build(t, "Acme", kws(kw), 10)
		for _, v := range values {
			assert.NotContains(t, strings.ToLower(v), "localhost")
			assert.NotContains(t, v, "127.0.0.1")
			assert.NotContains(t, v, "10.1.2.3")
			assert.NotContains(t, v, "172.16.0.1")
			assert.NotContains(t, v, "192.168.1.1")
		}
		assert.Empty(t, values, "every template embeds the keyword, so all are rejected for %q", kw)
	}
}

func TestTemplateBuilder_AllowsPublicAddressesInKeywords(t *testing.T) {
	t.Parallel()

	values := build(t, "Acme", kws("8.8.8.8 dns"), 10)
	assert.NotEmpty(t, values)
}

func TestTemplateBuilder_TruncatesLongCandidates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("k", 250)
	values := build(t, "Acme", kws(long), 10)
	require.NotEmpty(t, values)
	for _, v := range values {
		assert.LessOrEqual(t, len([]rune(v)), visibility.PromptMaxLen)
	}
}

func TestTemplateBuilder_RespectsCap(t *testing.T) {
	t.Parallel()

	values := build(t, "Acme", kws("one", "two", "three"), 3)
	assert.Len(t, values, 3)

	values = build(t, "Acme", kws("one", "two", "three"), 0)
	assert.LessOrEqual(t, len(values), visibility.MaxPrompts)

	values = build(t, "Acme", kws("one", "two", "three"), 99)
	assert.LessOrEqual(t, len(values), visibility.MaxPrompts)
}

func TestTemplateBuilder_EmptyInputs(t *testing.T) {
	t.Parallel()

	assert.Empty(t, build(t, "Acme", nil, 10))
	assert.Empty(t, build(t, "Acme", kws("", "   "), 10))
}

func TestTemplateBuilder_Deterministic(t *testing.T) {
	t.Parallel()

	a := build(t, "Acme", kws("plumbing", "heating"), 10)
	b := build(t, "Acme", kws("plumbing", "heating"), 10)
	assert.Equal(t, a, b)
}
