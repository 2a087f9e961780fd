package llmgen_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aivis/internal/domain/keyword"
	"github.com/turtacn/aivis/internal/domain/prompt"
	"github.com/turtacn/aivis/internal/intelligence/llmgen"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

// chatServer returns a chat-completions stub that always replies with the
// given content.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newClient(t *testing.T, baseURL string) *llmgen.Client {
	t.Helper()
	c, err := llmgen.NewClient(llmgen.Config{BaseURL: baseURL, APIKey: "test-key"}, nil)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURLAndKey(t *testing.T) {
	t.Parallel()

	_, err := llmgen.NewClient(llmgen.Config{APIKey: "k"}, nil)
	assert.Error(t, err)
	_, err = llmgen.NewClient(llmgen.Config{BaseURL: "http://llm.example.com/v1"}, nil)
	assert.Error(t, err)
}

func TestGenerator_ParsesCommaSeparatedKeywords(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "Emergency Plumbing, drain cleaning, water heater repair, x")
	defer srv.Close()

	gen := llmgen.NewGenerator(newClient(t, srv.URL), keyword.NewHeuristicGenerator(nil), nil)
	keywords, err := gen.GenerateKeywords(context.Background(), "Acme", "some site text", 5)
	require.NoError(t, err)

	values := visibility.KeywordValues(keywords)
	assert.Equal(t, []string{"emergency plumbing", "drain cleaning", "water heater repair"}, values,
		"sanitized, bounds-checked, single-char candidate dropped")
	for _, k := range keywords {
		assert.True(t, k.Generated)
	}
}

func TestGenerator_FallsBackOnServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	gen := llmgen.NewGenerator(newClient(t, srv.URL), keyword.NewHeuristicGenerator(nil), nil)
	keywords, err := gen.GenerateKeywords(context.Background(), "Acme Plumbing", "", 5)
	require.NoError(t, err, "fallback absorbs the backend failure")
	require.NotEmpty(t, keywords)
	assert.Equal(t, "acme plumbing", keywords[0].Value)
}

func TestGenerator_FallsBackOnUnusableReply(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "!, ?, .")
	defer srv.Close()

	gen := llmgen.NewGenerator(newClient(t, srv.URL), keyword.NewHeuristicGenerator(nil), nil)
	keywords, err := gen.GenerateKeywords(context.Background(), "Acme", "", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, keywords)
}

func TestBuilder_ParsesLines(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "1. What is the best plumber near me?\n"+
		"- Who offers 24/7 drain cleaning?\n"+
		"What is the best plumber near me?\n"+
		"Check http://192.168.0.1/admin for details\n")
	defer srv.Close()

	b := llmgen.NewBuilder(newClient(t, srv.URL), prompt.NewTemplateBuilder(nil), nil)
	prompts, err := b.BuildPrompts(context.Background(), "Acme",
		[]visibility.Keyword{visibility.NewKeyword("plumbing")}, 10)
	require.NoError(t, err)

	values := visibility.PromptValues(prompts)
	assert.Equal(t, []string{
		"What is the best plumber near me?",
		"Who offers 24/7 drain cleaning?",
	}, values, "decorations stripped, duplicates and internal hosts dropped")
}

func TestBuilder_FallsBackOnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := llmgen.NewBuilder(newClient(t, srv.URL), prompt.NewTemplateBuilder(nil), nil)
	prompts, err := b.BuildPrompts(context.Background(), "Acme",
		[]visibility.Keyword{visibility.NewKeyword("plumbing")}, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, prompts, "template fallback fills in")
}
