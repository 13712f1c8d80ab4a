package observability

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLoad("utf-8", 0.1, 10, 1, 2, 3)
		m.LoadFailed("decode")
		m.CacheLookup(true)
		m.Analysis(OutcomeOK, true)
	})
}

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveLoad("cp949", 0.02, 100, 2, 3, 1)
	m.CacheLookup(false)
	m.CacheLookup(true)
	m.CacheLookup(true)
	m.Analysis(OutcomeOK, true)
	m.Analysis(OutcomeNoData, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TablesLoaded.WithLabelValues("cp949")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.RowsKept))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsDropped.WithLabelValues(ReasonMissingTemp)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(CacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(CacheMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues(OutcomeNoData)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrendsFitted))
}

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Analysis(OutcomeOK, false)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "sameday_analyses_total")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("warn", "json", &buf)
	log.Info("hidden")
	log.Warn("shown", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)

	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
