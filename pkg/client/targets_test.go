package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aivis/pkg/types/visibility"
)

func newTargetsServer(t *testing.T, handler http.HandlerFunc) *TargetsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, WithRetryMax(0))
	require.NoError(t, err)
	return c.Targets()
}

func TestTargets_Init(t *testing.T) {
	t.Parallel()

	targets := newTargetsServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/targets/init", r.URL.Path)

		var req InitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Acme", req.BusinessName)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Target{
			ID:           "t-1",
			BusinessName: req.BusinessName,
			WebsiteURL:   req.WebsiteURL,
			Keywords:     []visibility.Keyword{{Value: "acme", Generated: true}},
		})
	})

	tgt, err := targets.Init(context.Background(), InitRequest{
		BusinessName: "Acme",
		WebsiteURL:   "https://acme.example/",
	})
	require.NoError(t, err)
	assert.Equal(t, "t-1", tgt.ID)
	require.Len(t, tgt.Keywords, 1)
	assert.Equal(t, "acme", tgt.Keywords[0].Value)
}

func TestTargets_Init_RequiresFields(t *testing.T) {
	t.Parallel()
	targets := newTargetsServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server must not be called")
	})

	_, err := targets.Init(context.Background(), InitRequest{BusinessName: "Acme"})
	assert.Error(t, err)
}

func TestTargets_Analyze(t *testing.T) {
	t.Parallel()

	targets := newTargetsServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/targets/t-1/analyze", r.URL.Path)

		var opts AnalyzeOptions
		require.NoError(t, json.NewDecoder(r.Body).Decode(&opts))
		assert.Equal(t, 3, opts.TrialsPerPair)

		_ = json.NewEncoder(w).Encode(AnalyzeResult{
			TargetID: "t-1",
			Score: visibility.VisibilityScore{
				TotalChecks:     45,
				Occurrences:     27,
				VisibilityScore: 61.5,
			},
			AnalyzedAt: time.Now().UTC(),
		})
	})

	result, err := targets.Analyze(context.Background(), "t-1", &AnalyzeOptions{TrialsPerPair: 3})
	require.NoError(t, err)
	assert.Equal(t, "t-1", result.TargetID)
	assert.False(t, result.AnalyzedAt.IsZero())
	assert.Equal(t, 45, result.Score.TotalChecks)
	assert.InDelta(t, 61.5, result.Score.VisibilityScore, 0.001)
}

func TestTargets_AnalyzeAsync(t *testing.T) {
	t.Parallel()

	targets := newTargetsServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/targets/t-1/analyze/async", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(AsyncAccepted{TargetID: "t-1", Status: "queued"})
	})

	ack, err := targets.AnalyzeAsync(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, "queued", ack.Status)
}

func TestTargets_UpdateKeywords(t *testing.T) {
	t.Parallel()

	targets := newTargetsServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/targets/t-1/keywords", r.URL.Path)

		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"robotics"}, body["keywords"])

		_ = json.NewEncoder(w).Encode(Target{
			ID:       "t-1",
			Keywords: []visibility.Keyword{{Value: "robotics"}},
		})
	})

	tgt, err := targets.UpdateKeywords(context.Background(), "t-1", []string{"robotics"})
	require.NoError(t, err)
	require.Len(t, tgt.Keywords, 1)
	assert.False(t, tgt.Keywords[0].Generated)
}

func TestTargets_List(t *testing.T) {
	t.Parallel()

	targets := newTargetsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "10", r.URL.Query().Get("offset"))
		_ = json.NewEncoder(w).Encode(TargetList{Targets: []Target{{ID: "t-1"}}, Limit: 5, Offset: 10})
	})

	list, err := targets.List(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Len(t, list.Targets, 1)
}

func TestTargets_Delete(t *testing.T) {
	t.Parallel()

	targets := newTargetsServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, targets.Delete(context.Background(), "t-1"))
}
