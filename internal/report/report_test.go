package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/sameday-cli/internal/cohort"
	"github.com/KaramelBytes/sameday-cli/internal/schema"
	"github.com/KaramelBytes/sameday-cli/internal/stats"
)

var generated = time.Date(2026, 1, 21, 9, 0, 0, 0, time.UTC)

func analyzed(t *testing.T, target schema.Date, means ...float64) (*stats.Result, *schema.Table) {
	t.Helper()
	obs := make([]schema.Observation, len(means))
	for i, m := range means {
		obs[i] = schema.NewObservation(schema.NewDate(2010+i, time.March, 1), m, m-3, m+3)
	}
	tbl := schema.NewTable(obs, schema.AllFields)
	tbl.Source = "ta.csv"
	target.Month, target.Day = time.March, 1
	o, ok, c := cohort.Build(tbl, target)
	require.True(t, ok)
	res, err := stats.New(stats.DefaultOptions()).Analyze(o, c)
	require.NoError(t, err)
	return res, tbl
}

func TestBuildFlagsSelectedYearAndMarkers(t *testing.T) {
	res, tbl := analyzed(t, schema.Date{Year: 2013}, 4.0, 6.0, 5.0, 9.0, 3.0, 7.0, 8.0)
	opt := DefaultOptions()
	opt.Clock = clockwork.NewFakeClockAt(generated)

	r := Build(res, tbl, opt)

	assert.Equal(t, "ta.csv", r.Source)
	assert.Equal(t, "2010-03-01", r.Period.First.String())
	assert.Equal(t, "2016-03-01", r.Period.Last.String())
	assert.Equal(t, generated, r.GeneratedAt)
	require.Len(t, r.Series, 7)
	for _, p := range r.Series {
		assert.Equal(t, p.Year == 2013, p.Selected, "year %d", p.Year)
		assert.NotNil(t, p.Trend)
	}
	require.Len(t, r.Markers, 2)
	assert.Equal(t, MarkerSelected, r.Markers[0].Label)
	assert.Equal(t, 9.0, r.Markers[0].Value)
	assert.Equal(t, MarkerAverage, r.Markers[1].Label)
	assert.InDelta(t, 6.0, r.Markers[1].Value, 1e-9)
	assert.Equal(t, 1, r.Rank)

	total := 0
	for _, b := range r.Histogram {
		total += b.Count
	}
	assert.Equal(t, 7, total)
	assert.Len(t, r.Histogram, stats.DefaultHistogramBins)
	assert.Len(t, r.Density, 64)
}

func TestMarkdown(t *testing.T) {
	res, tbl := analyzed(t, schema.Date{Year: 2011}, 1.0, 0.0, 2.0)
	r := Build(res, tbl, DefaultOptions())
	md := r.Markdown()

	for _, want := range []string{
		"[SAME-DAY SUMMARY]",
		"File: ta.csv",
		"Period: 2010-03-01 ~ 2012-03-01",
		"Date: 2011-03-01",
		"Same-day average: 1.0℃ over 3 years",
		"Difference: -1.0℃ (cooler than usual)",
		"Rank: 3 of 3",
		"[DISTRIBUTION 03-01]",
		"| 2011 * | 0.0 |",
		"trend curve omitted",
	} {
		assert.Contains(t, md, want)
	}
	assert.NotContains(t, md, "Trend (℃)")
	assert.True(t, strings.Contains(md, "<- selected"))
}

func TestMarkdownTiedRank(t *testing.T) {
	res, tbl := analyzed(t, schema.Date{Year: 2010}, 5.0, 5.0, 1.0)
	md := Build(res, tbl, DefaultOptions()).Markdown()
	assert.Contains(t, md, "Rank: 1 of 3 (1 = hottest, tied at 1.5)")
}

func TestJSON(t *testing.T) {
	res, tbl := analyzed(t, schema.Date{Year: 2012}, 1.5, 2.5, 3.5, 4.5, 5.5, 6.5)
	b, err := Build(res, tbl, DefaultOptions()).JSON()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "2012-03-01", got["target"])
	assert.Equal(t, true, got["has_trend"])
	assert.Equal(t, float64(6), got["cohort_size"])
	series := got["series"].([]any)
	assert.Len(t, series, 6)
	assert.Equal(t, true, series[2].(map[string]any)["selected"])
}
