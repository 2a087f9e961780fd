package prometheus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/aivis/pkg/errors"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	t.Helper()
	c := newTestCollector(t)
	return NewAppMetrics(c), c
}

func TestNewAppMetrics_RegistersAllMetrics(t *testing.T) {
	m, _ := newTestAppMetrics(t)

	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.FetchRequestsTotal)
	assert.NotNil(t, m.GuardBlockedTotal)
	assert.NotNil(t, m.GenerationTotal)
	assert.NotNil(t, m.AnalysisTotal)
	assert.NotNil(t, m.VisibilityScores)
	assert.NotNil(t, m.LLMRequestsTotal)
	assert.NotNil(t, m.DBQueryDuration)
	assert.NotNil(t, m.CacheHitsTotal)
	assert.NotNil(t, m.EventsPublished)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordHTTPRequest(m, "POST", "/api/targets/init", 201, 42*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_http_requests_total{method="POST",path="/api/targets/init",status_code="201"} 1`)
	assert.Contains(t, output, "test_unit_http_request_duration_seconds_count")
}

func TestRecordFetch(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordFetch(m, "ok", 120*time.Millisecond, 2048)
	RecordFetch(m, "blocked", time.Millisecond, 0)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_fetch_requests_total{result="ok"} 1`)
	assert.Contains(t, output, `test_unit_fetch_requests_total{result="blocked"} 1`)
	// Zero-byte results (blocked, cache miss) skip the size histogram.
	assert.Contains(t, output, "test_unit_fetch_response_bytes_count 1")
}

func TestRecordGeneration(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordGeneration(m, "keywords", "heuristic", true, 3*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_generation_total{backend="heuristic",fallback="true",kind="keywords"} 1`)
}

func TestRecordAnalysis(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordAnalysis(m, "api", 57.68, 60, 80*time.Millisecond, nil)
	RecordAnalysis(m, "api", 0, 0, time.Millisecond, errors.Analysis("no keywords"))

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_analysis_total{status="ok"} 1`)
	assert.Contains(t, output, `test_unit_analysis_total{status="error"} 1`)
	// Failed runs contribute no score or check samples.
	assert.Contains(t, output, "test_unit_visibility_score_count 1")
	assert.Contains(t, output, "test_unit_analysis_checks_per_run_count 1")
}

func TestRecordLLMCall(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordLLMCall(m, "gpt-4o-mini", "keywords", true, 800*time.Millisecond, 120, 40)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_llm_requests_total{model="gpt-4o-mini",operation="keywords",status="success"} 1`)
	assert.Contains(t, output, `test_unit_llm_tokens_total{direction="input",model="gpt-4o-mini"} 120`)
	assert.Contains(t, output, `test_unit_llm_tokens_total{direction="output",model="gpt-4o-mini"} 40`)
}

func TestRecordDBQuery(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDBQuery(m, "postgres", "target_get", 2*time.Millisecond, nil)
	RecordDBQuery(m, "postgres", "target_get", 2*time.Millisecond, errors.Internal("boom"))

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_db_query_duration_seconds_count{db="postgres",operation="target_get"} 2`)
	assert.Contains(t, output, `test_unit_errors_total{component="postgres",error_type="query_error"} 1`)
}

func TestRecordCacheAccess(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordCacheAccess(m, "page", true)
	RecordCacheAccess(m, "page", true)
	RecordCacheAccess(m, "page", false)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_cache_hits_total{cache="page"} 2`)
	assert.Contains(t, output, `test_unit_cache_misses_total{cache="page"} 1`)
}

func TestRecordError(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordError(m, "fetch", "timeout")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_errors_total{component="fetch",error_type="timeout"} 1`)
}
