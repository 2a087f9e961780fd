package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric the service emits, grouped by layer.
// Wire it once at startup and pass it down; all fields are non-nil after
// NewAppMetrics (failed registrations degrade to no-ops).
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Fetch layer
	FetchRequestsTotal CounterVec
	FetchDuration      HistogramVec
	FetchResponseBytes HistogramVec
	GuardBlockedTotal  CounterVec

	// Generation layer
	GenerationTotal    CounterVec
	GenerationDuration HistogramVec

	// Analysis layer
	AnalysisTotal         CounterVec
	AnalysisDuration      HistogramVec
	AnalysisChecksPerRun  HistogramVec
	VisibilityScores      HistogramVec
	AnalysisActiveWorkers GaugeVec

	// LLM backend (substitution point; zero unless configured)
	LLMRequestsTotal   CounterVec
	LLMRequestDuration HistogramVec
	LLMTokensUsed      CounterVec

	// Infrastructure
	DBPoolSize       GaugeVec
	DBPoolActive     GaugeVec
	DBQueryDuration  HistogramVec
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec
	EventsPublished  CounterVec
	EventsConsumed   CounterVec
	EventProcessTime HistogramVec

	// Health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Histogram buckets tuned per layer.
var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultFetchDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultAnalysisBuckets      = []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300}
	DefaultSizeBuckets          = []float64{1024, 16384, 65536, 262144, 1048576, 2097152, 4194304}
	DefaultDBDurationBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultScoreBuckets         = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	DefaultChecksBuckets        = []float64{10, 30, 60, 120, 300, 600, 1200, 3000}
	DefaultLLMDurationBuckets   = []float64{.5, 1, 2, 5, 10, 30, 60, 120}
)

// NewAppMetrics registers the full metric set on the collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method", "path")

	// Fetch
	m.FetchRequestsTotal = collector.RegisterCounter("fetch_requests_total", "Page fetch attempts", "result")
	m.FetchDuration = collector.RegisterHistogram("fetch_duration_seconds", "Page fetch duration", DefaultFetchDurationBuckets, "result")
	m.FetchResponseBytes = collector.RegisterHistogram("fetch_response_bytes", "Fetched page size", DefaultSizeBuckets)
	m.GuardBlockedTotal = collector.RegisterCounter("guard_blocked_total", "URLs rejected by the network guard", "reason")

	// Generation
	m.GenerationTotal = collector.RegisterCounter("generation_total", "Keyword/prompt generation runs", "kind", "backend", "fallback")
	m.GenerationDuration = collector.RegisterHistogram("generation_duration_seconds", "Generation duration", DefaultHTTPDurationBuckets, "kind", "backend")

	// Analysis
	m.AnalysisTotal = collector.RegisterCounter("analysis_total", "Visibility analysis runs", "status")
	m.AnalysisDuration = collector.RegisterHistogram("analysis_duration_seconds", "Visibility analysis duration", DefaultAnalysisBuckets, "trigger")
	m.AnalysisChecksPerRun = collector.RegisterHistogram("analysis_checks_per_run", "Sampled checks per analysis", DefaultChecksBuckets)
	m.VisibilityScores = collector.RegisterHistogram("visibility_score", "Distribution of computed visibility scores", DefaultScoreBuckets)
	m.AnalysisActiveWorkers = collector.RegisterGauge("analysis_active_workers", "Active sampling workers", "source")

	// LLM backend
	m.LLMRequestsTotal = collector.RegisterCounter("llm_requests_total", "LLM backend requests", "model", "operation", "status")
	m.LLMRequestDuration = collector.RegisterHistogram("llm_request_duration_seconds", "LLM backend request duration", DefaultLLMDurationBuckets, "model", "operation")
	m.LLMTokensUsed = collector.RegisterCounter("llm_tokens_total", "LLM tokens used", "model", "direction")

	// Infrastructure
	m.DBPoolSize = collector.RegisterGauge("db_pool_size", "Database connection pool size", "db")
	m.DBPoolActive = collector.RegisterGauge("db_pool_active", "Database connections in use", "db")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.EventsPublished = collector.RegisterCounter("events_published_total", "Domain events published", "topic", "status")
	m.EventsConsumed = collector.RegisterCounter("events_consumed_total", "Domain events consumed", "topic", "status")
	m.EventProcessTime = collector.RegisterHistogram("event_process_duration_seconds", "Event handler duration", DefaultHTTPDurationBuckets, "topic")

	// Health
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// ─────────────────────────────────────────────────────────────────────────────
// Recording helpers
// ─────────────────────────────────────────────────────────────────────────────

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFetch records one page fetch attempt. result is one of
// ok, blocked, timeout, failed, too_large, cached.
func RecordFetch(m *AppMetrics, result string, duration time.Duration, bytes int64) {
	if m == nil {
		return
	}
	m.FetchRequestsTotal.WithLabelValues(result).Inc()
	m.FetchDuration.WithLabelValues(result).Observe(duration.Seconds())
	if bytes > 0 {
		m.FetchResponseBytes.WithLabelValues().Observe(float64(bytes))
	}
}

// RecordGeneration records one keyword or prompt generation run.
func RecordGeneration(m *AppMetrics, kind, backend string, fallback bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.GenerationTotal.WithLabelValues(kind, backend, strconv.FormatBool(fallback)).Inc()
	m.GenerationDuration.WithLabelValues(kind, backend).Observe(duration.Seconds())
}

// RecordAnalysis records one completed analysis run.
func RecordAnalysis(m *AppMetrics, trigger string, score float64, checks int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.AnalysisTotal.WithLabelValues(status).Inc()
	m.AnalysisDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	if err == nil {
		m.AnalysisChecksPerRun.WithLabelValues().Observe(float64(checks))
		m.VisibilityScores.WithLabelValues().Observe(score)
	}
}

// RecordLLMCall records one request against the LLM backend.
func RecordLLMCall(m *AppMetrics, model, operation string, success bool, duration time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.LLMRequestsTotal.WithLabelValues(model, operation, status).Inc()
	m.LLMRequestDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
	m.LLMTokensUsed.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(model, "output").Add(float64(outputTokens))
}

// RecordDBQuery records one repository call.
func RecordDBQuery(m *AppMetrics, db, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues(db, "query_error").Inc()
	}
}

// RecordCacheAccess records a cache hit or miss.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordError counts an error by component and type.
func RecordError(m *AppMetrics, component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
