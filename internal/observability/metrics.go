package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for dataset loading
// and date analysis. A nil *Metrics is valid and records nothing.
type Metrics struct {
	TablesLoaded *prometheus.CounterVec // labels: encoding
	LoadErrors   *prometheus.CounterVec // labels: kind={decode,load,schema}
	RowsDropped  *prometheus.CounterVec // labels: reason={bad_date,missing_temp,duplicate}
	RowsKept     prometheus.Counter
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}
	Analyses     *prometheus.CounterVec // labels: outcome={ok,no_data,error}
	TrendsFitted prometheus.Counter

	LoadDuration prometheus.Histogram
}

const namespace = "sameday"

// NewMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TablesLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tables_loaded_total",
			Help:      "Source tables loaded and normalized, by decoded encoding.",
		}, []string{"encoding"}),
		LoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Failed table loads by failure kind.",
		}, []string{"kind"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Source rows dropped during normalization, by reason.",
		}, []string{"reason"}),
		RowsKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_kept_total",
			Help:      "Observations kept after normalization.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Dataset cache lookups by result.",
		}, []string{"result"}),
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Date analyses by outcome.",
		}, []string{"outcome"}),
		TrendsFitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trends_fitted_total",
			Help:      "Analyses that produced a trend curve.",
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of decoding and normalizing a source table.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.TablesLoaded,
			m.LoadErrors,
			m.RowsDropped,
			m.RowsKept,
			m.CacheLookups,
			m.Analyses,
			m.TrendsFitted,
			m.LoadDuration,
		)
	}
	return m
}

// Label values.
const (
	OutcomeOK     = "ok"
	OutcomeNoData = "no_data"
	OutcomeError  = "error"

	CacheHit  = "hit"
	CacheMiss = "miss"

	ReasonBadDate     = "bad_date"
	ReasonMissingTemp = "missing_temp"
	ReasonDuplicate   = "duplicate"
)

// ObserveLoad records a successful load and its row counts.
func (m *Metrics) ObserveLoad(encoding string, seconds float64, kept, badDate, missingTemp, duplicates int) {
	if m == nil {
		return
	}
	m.TablesLoaded.WithLabelValues(encoding).Inc()
	m.LoadDuration.Observe(seconds)
	m.RowsKept.Add(float64(kept))
	m.RowsDropped.WithLabelValues(ReasonBadDate).Add(float64(badDate))
	m.RowsDropped.WithLabelValues(ReasonMissingTemp).Add(float64(missingTemp))
	m.RowsDropped.WithLabelValues(ReasonDuplicate).Add(float64(duplicates))
}

// LoadFailed counts a rejected source by failure kind.
func (m *Metrics) LoadFailed(kind string) {
	if m == nil {
		return
	}
	m.LoadErrors.WithLabelValues(kind).Inc()
}

// CacheLookup counts a dataset cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues(CacheHit).Inc()
		return
	}
	m.CacheLookups.WithLabelValues(CacheMiss).Inc()
}

// Analysis counts an analysis by outcome, and a fitted trend when trend is set.
func (m *Metrics) Analysis(outcome string, trend bool) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(outcome).Inc()
	if trend {
		m.TrendsFitted.Inc()
	}
}
