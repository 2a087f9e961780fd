package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aivis/internal/domain/sampling"
	"github.com/turtacn/aivis/internal/interfaces/http/handlers"
)

const acmeHTML = `<!DOCTYPE html>
<html><head><title>Acme Analytics</title></head>
<body>
<article>
<h1>Acme Analytics</h1>
<p>Acme Analytics builds dashboards and reporting pipelines for retail
teams. Our platform connects point-of-sale data with inventory planning
so store managers see demand shifts as they happen. Hundreds of brands
rely on Acme Analytics for forecasting, replenishment, and markdown
decisions every day.</p>
<p>From a single store to a national chain, our analysts help teams turn
messy transaction logs into clear weekly actions.</p>
</article>
</body></html>`

func TestPipeline_InitThroughAnalyze(t *testing.T) {
	t.Parallel()
	e := newEnv(t, map[string]string{"acme.example": acmeHTML})

	created := e.initTarget(t, "Acme Analytics", "https://acme.example")
	require.NotEmpty(t, created.ID)
	require.NotEmpty(t, created.Keywords, "site text should yield keywords")
	require.NotEmpty(t, created.Prompts)
	for _, p := range created.Prompts {
		assert.True(t, p.Generated)
	}

	var fetched handlers.TargetResponse
	code := e.do(t, http.MethodGet, targetPath(created.ID, ""), nil, &fetched)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, created.BusinessName, fetched.BusinessName)

	var analyzed handlers.AnalyzeResponse
	code = e.do(t, http.MethodPost, targetPath(created.ID, "analyze"),
		handlers.AnalyzeRequest{TrialsPerPair: 5}, &analyzed)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, created.ID, analyzed.TargetID)
	assert.False(t, analyzed.AnalyzedAt.IsZero())
	score := analyzed.Score
	assert.Equal(t, len(created.Prompts)*len(created.Keywords)*5, score.TotalChecks)
	assert.Len(t, score.Checks, score.TotalChecks)
	assert.GreaterOrEqual(t, score.VisibilityScore, 0.0)
	assert.LessOrEqual(t, score.VisibilityScore, 100.0)
	assert.GreaterOrEqual(t, score.TotalChecks, score.Occurrences)

	// Same target, same trials: the sampler is deterministic.
	var again handlers.AnalyzeResponse
	code = e.do(t, http.MethodPost, targetPath(created.ID, "analyze"),
		handlers.AnalyzeRequest{TrialsPerPair: 5}, &again)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, score.VisibilityScore, again.Score.VisibilityScore)
	assert.Equal(t, score.Occurrences, again.Score.Occurrences)
}

func TestPipeline_UpdateKeywordsRebuildsPrompts(t *testing.T) {
	t.Parallel()
	e := newEnv(t, map[string]string{"acme.example": acmeHTML})

	created := e.initTarget(t, "Acme Analytics", "https://acme.example")

	var updated handlers.TargetResponse
	code := e.do(t, http.MethodPut, targetPath(created.ID, "keywords"),
		handlers.UpdateKeywordsRequest{Keywords: []string{"retail forecasting", "markdown planning"}},
		&updated)
	require.Equal(t, http.StatusOK, code)

	require.Len(t, updated.Keywords, 2)
	for _, kw := range updated.Keywords {
		assert.False(t, kw.Generated, "caller-supplied keywords are not generated")
	}
	require.NotEmpty(t, updated.Prompts, "prompts are rebuilt from the new keywords")

	var analyzed handlers.AnalyzeResponse
	code = e.do(t, http.MethodPost, targetPath(created.ID, "analyze"), nil, &analyzed)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, len(updated.Prompts)*len(updated.Keywords)*sampling.DefaultTrialsPerPair,
		analyzed.Score.TotalChecks)
}

func TestPipeline_ListAndDelete(t *testing.T) {
	t.Parallel()
	e := newEnv(t, map[string]string{"acme.example": acmeHTML})

	first := e.initTarget(t, "Acme Analytics", "https://acme.example")
	second := e.initTarget(t, "Beeline Logistics", "https://beeline.example")

	var list handlers.ListResponse
	code := e.do(t, http.MethodGet, "/api/targets?limit=10", nil, &list)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list.Targets, 2)

	code = e.do(t, http.MethodDelete, targetPath(first.ID, ""), nil, nil)
	require.Equal(t, http.StatusNoContent, code)

	code = e.do(t, http.MethodGet, targetPath(first.ID, ""), nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code = e.do(t, http.MethodGet, targetPath(second.ID, ""), nil, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestPipeline_UnknownSiteStillInitializes(t *testing.T) {
	t.Parallel()
	// The fixture transport 404s for this host; initialization falls back
	// to name-only content instead of failing.
	e := newEnv(t, map[string]string{})

	created := e.initTarget(t, "Ghost Kitchen Co", "https://ghost.example")
	assert.NotEmpty(t, created.Keywords)
	assert.NotEmpty(t, created.Prompts)
}
