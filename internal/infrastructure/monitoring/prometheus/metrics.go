package prometheus

import "database/sql"

// SearchMetrics holds the search engine metrics.  Every method is safe on a
// nil receiver so components can run without a registry.
type SearchMetrics struct {
	SearchRequestsTotal  CounterVec
	SearchFallbacksTotal CounterVec
	SearchDuration       HistogramVec
	SearchResults        HistogramVec

	VocabularyCacheEntries GaugeVec
	ResultCacheRequests    CounterVec

	DBPoolOpen  GaugeVec
	DBPoolInUse GaugeVec
}

var (
	DefaultSearchDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultResultCountBuckets    = []float64{0, 1, 5, 10, 20, 50, 100, 500}
)

// NewSearchMetrics registers all search metrics on collector.
func NewSearchMetrics(collector MetricsCollector) *SearchMetrics {
	return &SearchMetrics{
		SearchRequestsTotal:  collector.RegisterCounter("search_requests_total", "Search calls by strategy and outcome", "strategy", "outcome"),
		SearchFallbacksTotal: collector.RegisterCounter("search_fallbacks_total", "Structural searches answered by the identifier fallback", "strategy", "reason"),
		SearchDuration:       collector.RegisterHistogram("search_duration_seconds", "Search call duration", DefaultSearchDurationBuckets, "strategy"),
		SearchResults:        collector.RegisterHistogram("search_results", "Rows returned per search call", DefaultResultCountBuckets, "strategy"),

		VocabularyCacheEntries: collector.RegisterGauge("vocabulary_cache_entries", "Entries held by a vocabulary cache", "cache"),
		ResultCacheRequests:    collector.RegisterCounter("result_cache_requests_total", "Result cache lookups", "cache", "result"),

		DBPoolOpen:  collector.RegisterGauge("db_pool_open_connections", "Open database connections", "db"),
		DBPoolInUse: collector.RegisterGauge("db_pool_in_use_connections", "Database connections in use", "db"),
	}
}

// StartSearch returns a timer feeding the duration histogram of strategy.
func (m *SearchMetrics) StartSearch(strategy string) *Timer {
	if m == nil {
		return NewTimer(nil)
	}
	return NewTimer(m.SearchDuration.WithLabelValues(strategy))
}

// ObserveSearch records one completed search call.  outcome is "ok" or
// "error".
func (m *SearchMetrics) ObserveSearch(strategy, outcome string, results int) {
	if m == nil {
		return
	}
	m.SearchRequestsTotal.WithLabelValues(strategy, outcome).Inc()
	if outcome == "ok" {
		m.SearchResults.WithLabelValues(strategy).Observe(float64(results))
	}
}

func (m *SearchMetrics) RecordFallback(strategy, reason string) {
	if m == nil {
		return
	}
	m.SearchFallbacksTotal.WithLabelValues(strategy, reason).Inc()
}

func (m *SearchMetrics) SetVocabularySize(cache string, entries int) {
	if m == nil {
		return
	}
	m.VocabularyCacheEntries.WithLabelValues(cache).Set(float64(entries))
}

// RecordResultCache satisfies the result cache's Recorder.
func (m *SearchMetrics) RecordResultCache(cache, result string) {
	if m == nil {
		return
	}
	m.ResultCacheRequests.WithLabelValues(cache, result).Inc()
}

func (m *SearchMetrics) ObserveDBStats(db string, stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBPoolOpen.WithLabelValues(db).Set(float64(stats.OpenConnections))
	m.DBPoolInUse.WithLabelValues(db).Set(float64(stats.InUse))
}
