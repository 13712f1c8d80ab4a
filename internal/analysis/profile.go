// Package analysis profiles a normalized temperature table: coverage of the
// period, per-column statistics with robust outliers, a month-by-month
// climatology and correlations between the temperature columns.
package analysis

import (
	"fmt"
	"math"
	"sort"

	mstats "github.com/aclements/go-moremath/stats"

	"github.com/KaramelBytes/sameday-cli/internal/schema"
)

// Options controls dataset profiling.
type Options struct {
	// SampleRows determines how many leading observations to include.
	SampleRows int
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
	// ByMonth adds per-calendar-month summaries.
	ByMonth bool
	// Correlations computes Pearson correlations among temperature columns.
	Correlations bool
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		Outliers:         true,
		OutlierThreshold: 3.5,
		ByMonth:          true,
		Correlations:     true,
	}
}

// Report is a markdown-friendly profile of one table.
type Report struct {
	Name     string
	Encoding string
	First    schema.Date
	Last     schema.Date
	// Days is the number of calendar days in [First, Last].
	Days  int
	Years int
	Rows  schema.Stats
	Cols  []ColumnSummary
	// Months holds one entry per calendar month present, in month order.
	Months   []GroupResult
	Corr     *CorrMatrix
	Samples  []schema.Observation
	Warnings []string
}

// MissingDays is the number of calendar days in the period with no
// observation.
func (r *Report) MissingDays() int {
	if r.Days == 0 {
		return 0
	}
	return r.Days - r.Rows.Kept
}

// ColumnSummary captures statistics for one temperature column.
type ColumnSummary struct {
	Name  string
	Unit  string
	Count int
	Min   float64
	Max   float64
	Mean  float64
	Std   float64
	// Dates of the extremes; the earliest date wins a tie.
	MinDate schema.Date
	MaxDate schema.Date
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary // by column name
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix across columns.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// Profile summarizes t. A nil or empty table yields a report with only the
// name and counts filled in.
func Profile(t *schema.Table, opt Options) *Report {
	rep := &Report{}
	if t == nil {
		return rep
	}
	rep.Name = t.Source
	rep.Encoding = t.Encoding
	rep.Rows = t.Stats
	first, last, ok := t.Range()
	if !ok {
		rep.Warnings = append(rep.Warnings, "no observations survived normalization")
		return rep
	}
	rep.First, rep.Last = first, last
	rep.Days = int(last.Time().Sub(first.Time()).Hours()/24) + 1
	rep.Years = last.Year - first.Year + 1

	var fields []schema.Field
	for _, f := range schema.Fields {
		if t.Has(f) {
			fields = append(fields, f)
		}
	}
	sampleRows := opt.SampleRows
	if sampleRows <= 0 {
		sampleRows = 5
	}

	type colAcc struct {
		vals             []float64
		min, max         float64
		minDate, maxDate schema.Date
	}
	cols := make([]*colAcc, len(fields))
	for i := range cols {
		cols[i] = &colAcc{min: math.Inf(1), max: math.Inf(-1)}
	}

	nf := len(fields)
	pair := make(map[int]*pairAcc) // key = i*nf + j with i>j

	type gAcc struct {
		size int
		sum  map[int]float64
		cnt  map[int]int
		min  map[int]float64
		max  map[int]float64
	}
	months := map[int]*gAcc{}

	row := make([]float64, nf)
	for i := 0; i < t.Len(); i++ {
		o := t.At(i)
		if len(rep.Samples) < sampleRows {
			rep.Samples = append(rep.Samples, o)
		}
		var ga *gAcc
		if opt.ByMonth {
			m := int(o.Date.Month)
			ga = months[m]
			if ga == nil {
				ga = &gAcc{sum: map[int]float64{}, cnt: map[int]int{}, min: map[int]float64{}, max: map[int]float64{}}
				months[m] = ga
			}
			ga.size++
		}
		for j, f := range fields {
			x, _ := o.Value(f)
			row[j] = x
			c := cols[j]
			c.vals = append(c.vals, x)
			if x < c.min {
				c.min, c.minDate = x, o.Date
			}
			if x > c.max {
				c.max, c.maxDate = x, o.Date
			}
			if ga != nil {
				ga.sum[j] += x
				ga.cnt[j]++
				if v, ok := ga.min[j]; !ok || x < v {
					ga.min[j] = x
				}
				if v, ok := ga.max[j]; !ok || x > v {
					ga.max[j] = x
				}
			}
		}
		if opt.Correlations {
			for a := 1; a < nf; a++ {
				for b := 0; b < a; b++ {
					key := a*nf + b
					pa := pair[key]
					if pa == nil {
						pa = &pairAcc{}
						pair[key] = pa
					}
					x, y := row[a], row[b]
					pa.n += 1
					pa.sumX += x
					pa.sumY += y
					pa.sumXX += x * x
					pa.sumYY += y * y
					pa.sumXY += x * y
				}
			}
		}
	}

	names := make([]string, nf)
	for j, f := range fields {
		c := cols[j]
		name, unit := splitUnits(f.Column())
		names[j] = name
		s := mstats.Sample{Xs: c.vals}
		cs := ColumnSummary{
			Name:    name,
			Unit:    unit,
			Count:   len(c.vals),
			Min:     c.min,
			Max:     c.max,
			Mean:    s.Mean(),
			MinDate: c.minDate,
			MaxDate: c.maxDate,
		}
		if len(c.vals) > 1 {
			cs.Std = s.StdDev()
		}
		if opt.Outliers && len(c.vals) >= 8 {
			median, mad := medianMAD(c.vals)
			thr := opt.OutlierThreshold
			if thr <= 0 {
				thr = 3.5
			}
			if mad > 0 {
				for _, v := range c.vals {
					az := math.Abs(0.6745 * (v - median) / mad)
					if az > thr {
						cs.OutliersCount++
					}
					cs.OutliersMaxAbsZ = math.Max(cs.OutliersMaxAbsZ, az)
				}
			}
			cs.OutlierThreshold = thr
		}
		rep.Cols = append(rep.Cols, cs)
	}

	if len(months) > 0 {
		keys := make([]int, 0, len(months))
		for m := range months {
			keys = append(keys, m)
		}
		sort.Ints(keys)
		for _, m := range keys {
			ga := months[m]
			gr := GroupResult{Key: fmt.Sprintf("%02d", m), Size: ga.size, Metrics: map[string]NumSummary{}}
			for j := range fields {
				if ga.cnt[j] == 0 {
					continue
				}
				gr.Metrics[names[j]] = NumSummary{Count: ga.cnt[j], Min: ga.min[j], Max: ga.max[j], Mean: ga.sum[j] / float64(ga.cnt[j])}
			}
			rep.Months = append(rep.Months, gr)
		}
	}

	if opt.Correlations && nf >= 2 {
		mat := make([][]float64, nf)
		for i := range mat {
			mat[i] = make([]float64, nf)
			mat[i][i] = 1
		}
		for a := 1; a < nf; a++ {
			for b := 0; b < a; b++ {
				r := pearson(pair[a*nf+b])
				mat[a][b], mat[b][a] = r, r
			}
		}
		rep.Corr = &CorrMatrix{Columns: names, Values: mat}
	}

	if missing := rep.MissingDays(); missing > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d calendar days in the period have no observation", missing))
	}
	if !t.Has(schema.FieldMean) {
		rep.Warnings = append(rep.Warnings, "mean temperature column missing; same-day comparison is unavailable")
	}
	return rep
}

// pairAcc accumulates the sums for an exact Pearson correlation.
type pairAcc struct {
	n     float64
	sumX  float64
	sumY  float64
	sumXX float64
	sumYY float64
	sumXY float64
}

func pearson(pa *pairAcc) float64 {
	if pa == nil || pa.n < 2 {
		return 0
	}
	denom := math.Sqrt((pa.n*pa.sumXX - pa.sumX*pa.sumX) * (pa.n*pa.sumYY - pa.sumY*pa.sumY))
	if denom == 0 {
		return 0
	}
	r := (pa.n*pa.sumXY - pa.sumX*pa.sumY) / denom
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, r))
}
