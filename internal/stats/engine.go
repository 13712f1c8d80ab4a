// Package stats compares a target observation against its same-day cohort.
package stats

import (
	"errors"
	"fmt"

	mstats "github.com/aclements/go-moremath/stats"

	"github.com/KaramelBytes/sameday-cli/internal/cohort"
	"github.com/KaramelBytes/sameday-cli/internal/schema"
)

// DefaultTrendMinYears is the cohort size that must be exceeded before a
// trend curve is attempted.
const DefaultTrendMinYears = 5

var (
	// ErrNoData means the target has no observation or the cohort is empty.
	ErrNoData = errors.New("no observation recorded for the selected date")
	// ErrNoMeanColumn means the source has no mean temperature column.
	ErrNoMeanColumn = errors.New("mean temperature column not present in source")
)

// Options configures an Engine.
type Options struct {
	// TrendMinYears: a trend is attempted only when the cohort is larger.
	TrendMinYears int
	// Smoother produces the trend curve; nil disables trends.
	Smoother Smoother
}

// DefaultOptions returns a LOESS trend over cohorts larger than five years.
func DefaultOptions() Options {
	return Options{TrendMinYears: DefaultTrendMinYears, Smoother: DefaultLOESS()}
}

// Engine computes Results. It holds no per-query state.
type Engine struct {
	opt Options
}

// New returns an Engine with opt. A negative TrendMinYears is treated as 0.
func New(opt Options) *Engine {
	if opt.TrendMinYears < 0 {
		opt.TrendMinYears = 0
	}
	return &Engine{opt: opt}
}

// Point is one (year, temperature) pair of a per-year series.
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Result is the comparison of one target date against its cohort.
type Result struct {
	Target     schema.Date `json:"target"`
	TargetMean float64     `json:"target_mean"`
	CohortMean float64     `json:"cohort_mean"`
	// Delta is TargetMean - CohortMean; positive is warmer than usual.
	Delta float64 `json:"delta"`
	// Rank is 1 for the hottest year. Tied values share the average of
	// their positions; Rank is its integer part.
	Rank        int     `json:"rank"`
	AverageRank float64 `json:"average_rank"`
	CohortSize  int     `json:"cohort_size"`
	// Points are the cohort's mean temperatures by year.
	Points []Point `json:"points"`
	// Trend parallels Points when a smoothed curve is available, else nil.
	Trend []Point `json:"trend,omitempty"`
}

// HasTrend reports whether a trend curve was produced.
func (r *Result) HasTrend() bool { return r != nil && len(r.Trend) > 0 }

// Analyze compares target against c. The target must be a member of c.
func (e *Engine) Analyze(target schema.Observation, c cohort.Cohort) (*Result, error) {
	if target.Date.IsZero() || c.Len() == 0 {
		return nil, ErrNoData
	}
	if !target.Present.Has(schema.FieldMean) {
		return nil, ErrNoMeanColumn
	}
	means := c.Means()
	idx := -1
	for i, m := range c.Members {
		if !m.Present.Has(schema.FieldMean) {
			return nil, ErrNoMeanColumn
		}
		if m.Date == target.Date {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("target %s is not a member of the %02d-%02d cohort", target.Date, c.Month, c.Day)
	}

	sample := mstats.Sample{Xs: means}
	mean := sample.Mean()
	avg := averageRank(means, idx)
	res := &Result{
		Target:      target.Date,
		TargetMean:  target.MeanTemp,
		CohortMean:  mean,
		Delta:       target.MeanTemp - mean,
		Rank:        int(avg),
		AverageRank: avg,
		CohortSize:  c.Len(),
		Points:      make([]Point, c.Len()),
	}
	for i, m := range c.Members {
		res.Points[i] = Point{Year: m.Date.Year, Value: m.MeanTemp}
	}
	res.Trend = e.trend(c)
	return res, nil
}

func (e *Engine) trend(c cohort.Cohort) (out []Point) {
	if e.opt.Smoother == nil || c.Len() <= e.opt.TrendMinYears {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
		}
	}()
	years := c.Years()
	xs := make([]float64, len(years))
	for i, y := range years {
		xs[i] = float64(y)
	}
	ys, ok := e.opt.Smoother.Smooth(xs, c.Means())
	if !ok || len(ys) != len(years) {
		return nil
	}
	out = make([]Point, len(years))
	for i, y := range years {
		out[i] = Point{Year: y, Value: ys[i]}
	}
	return out
}

// averageRank ranks values[idx] descending (largest is 1), giving tied
// values the mean of the positions they occupy.
func averageRank(values []float64, idx int) float64 {
	v := values[idx]
	greater, equal := 0, 0
	for _, x := range values {
		switch {
		case x > v:
			greater++
		case x == v:
			equal++
		}
	}
	return float64(greater) + float64(equal+1)/2
}
