// Package report renders a stats.Result for people (Markdown) and programs
// (JSON): headline metrics, the per-year series with the selected year
// flagged, and the distribution of the same-day cohort.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/KaramelBytes/sameday-cli/internal/schema"
	"github.com/KaramelBytes/sameday-cli/internal/stats"
	"github.com/KaramelBytes/sameday-cli/internal/utils"
)

// Options controls report rendering.
type Options struct {
	// Bins is the histogram bin count; 0 means stats.DefaultHistogramBins.
	Bins int
	// DensityPoints is the number of KDE samples; 0 disables the density curve.
	DensityPoints int
	Clock         clockwork.Clock
}

// DefaultOptions returns 30 histogram bins and a 64-point density curve.
func DefaultOptions() Options {
	return Options{Bins: stats.DefaultHistogramBins, DensityPoints: 64}
}

// Marker is a labelled vertical line on the distribution.
type Marker struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Marker labels.
const (
	MarkerSelected = "selected"
	MarkerAverage  = "average"
)

// YearPoint is one year of the series. Trend is set only when a trend curve
// was produced.
type YearPoint struct {
	Year     int      `json:"year"`
	Value    float64  `json:"value"`
	Trend    *float64 `json:"trend,omitempty"`
	Selected bool     `json:"selected"`
}

// Period is the inclusive date span of the dataset.
type Period struct {
	First schema.Date `json:"first"`
	Last  schema.Date `json:"last"`
}

// Report is the presentation form of one analysis.
type Report struct {
	Source   string       `json:"source"`
	Encoding string       `json:"encoding,omitempty"`
	Period   Period       `json:"period"`
	Rows     schema.Stats `json:"rows"`

	Target      schema.Date `json:"target"`
	TargetMean  float64     `json:"target_mean"`
	CohortMean  float64     `json:"cohort_mean"`
	Delta       float64     `json:"delta"`
	Rank        int         `json:"rank"`
	AverageRank float64     `json:"average_rank"`
	CohortSize  int         `json:"cohort_size"`
	HasTrend    bool        `json:"has_trend"`

	Series    []YearPoint          `json:"series"`
	Histogram []stats.Bin          `json:"histogram"`
	Density   []stats.DensityPoint `json:"density,omitempty"`
	Markers   []Marker             `json:"markers"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Build assembles a Report from an analysis result and the table it was
// computed from.
func Build(res *stats.Result, t *schema.Table, opt Options) *Report {
	if opt.Clock == nil {
		opt.Clock = clockwork.NewRealClock()
	}
	r := &Report{
		Target:      res.Target,
		TargetMean:  res.TargetMean,
		CohortMean:  res.CohortMean,
		Delta:       res.Delta,
		Rank:        res.Rank,
		AverageRank: res.AverageRank,
		CohortSize:  res.CohortSize,
		HasTrend:    res.HasTrend(),
		GeneratedAt: opt.Clock.Now(),
		Markers: []Marker{
			{Label: MarkerSelected, Value: res.TargetMean},
			{Label: MarkerAverage, Value: res.CohortMean},
		},
	}
	if t != nil {
		r.Source = t.Source
		r.Encoding = t.Encoding
		r.Rows = t.Stats
		if first, last, ok := t.Range(); ok {
			r.Period = Period{First: first, Last: last}
		}
	}

	values := make([]float64, len(res.Points))
	r.Series = make([]YearPoint, len(res.Points))
	for i, p := range res.Points {
		values[i] = p.Value
		r.Series[i] = YearPoint{Year: p.Year, Value: p.Value, Selected: p.Year == res.Target.Year}
		if r.HasTrend && i < len(res.Trend) {
			v := res.Trend[i].Value
			r.Series[i].Trend = &v
		}
	}
	r.Histogram = stats.Histogram(values, opt.Bins)
	if opt.DensityPoints > 0 {
		r.Density = stats.Density(values, opt.DensityPoints)
	}
	return r
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return utils.PrettyJSON(r)
}

// Direction describes the sign of Delta.
func (r *Report) Direction() string {
	switch {
	case r.Delta > 0:
		return "warmer"
	case r.Delta < 0:
		return "cooler"
	default:
		return "same"
	}
}

// Markdown renders a compact report for the terminal or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[SAME-DAY SUMMARY]\n")
	if r.Source != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Source))
	}
	if !r.Period.First.IsZero() {
		b.WriteString(fmt.Sprintf("Period: %s ~ %s\n", r.Period.First, r.Period.Last))
	}
	b.WriteString(fmt.Sprintf("Date: %s\n", r.Target))
	b.WriteString(fmt.Sprintf("Mean temperature: %.1f℃\n", r.TargetMean))
	b.WriteString(fmt.Sprintf("Same-day average: %.1f℃ over %d years\n", r.CohortMean, r.CohortSize))
	b.WriteString(fmt.Sprintf("Difference: %+.1f℃ (%s than usual)\n", r.Delta, r.Direction()))
	b.WriteString(fmt.Sprintf("Rank: %d of %d (1 = hottest", r.Rank, r.CohortSize))
	if r.AverageRank != float64(r.Rank) {
		b.WriteString(fmt.Sprintf(", tied at %.1f", r.AverageRank))
	}
	b.WriteString(")\n")

	if len(r.Histogram) > 0 {
		b.WriteString(fmt.Sprintf("\n[DISTRIBUTION %02d-%02d]\n", int(r.Target.Month), r.Target.Day))
		peak := 0
		for _, bin := range r.Histogram {
			peak = max(peak, bin.Count)
		}
		for i, bin := range r.Histogram {
			note := markerNote(bin, i == len(r.Histogram)-1, r.Markers)
			if bin.Count == 0 && note == "" {
				continue
			}
			bar := strings.Repeat("#", scaled(bin.Count, peak, 30))
			b.WriteString(fmt.Sprintf("- %6.1f .. %6.1f | %-30s %d%s\n", bin.Low, bin.High, bar, bin.Count, note))
		}
	}

	if len(r.Series) > 0 {
		b.WriteString("\n[YEARLY SERIES]\n")
		if r.HasTrend {
			b.WriteString("| Year | Mean (℃) | Trend (℃) |\n| --- | --- | --- |\n")
		} else {
			b.WriteString("| Year | Mean (℃) |\n| --- | --- |\n")
		}
		for _, p := range r.Series {
			year := fmt.Sprintf("%d", p.Year)
			if p.Selected {
				year += " *"
			}
			if r.HasTrend && p.Trend != nil {
				b.WriteString(fmt.Sprintf("| %s | %.1f | %.2f |\n", year, p.Value, *p.Trend))
			} else if r.HasTrend {
				b.WriteString(fmt.Sprintf("| %s | %.1f | |\n", year, p.Value))
			} else {
				b.WriteString(fmt.Sprintf("| %s | %.1f |\n", year, p.Value))
			}
		}
	}

	var notes []string
	if !r.HasTrend {
		notes = append(notes, "trend curve omitted: not enough years or the smoother failed")
	}
	if d := r.Rows.Dropped(); d > 0 {
		notes = append(notes, fmt.Sprintf("%d of %d source rows dropped (bad date %d, missing temperature %d, duplicate %d)",
			d, r.Rows.RowsRead, r.Rows.BadDate, r.Rows.MissingTemp, r.Rows.Duplicates))
	}
	if len(notes) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, n := range notes {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func scaled(n, peak, width int) int {
	if peak <= 0 || n <= 0 {
		return 0
	}
	w := int(math.Round(float64(n) * float64(width) / float64(peak)))
	return max(w, 1)
}

// markerNote names the markers falling into bin. The last bin is closed.
func markerNote(bin stats.Bin, last bool, markers []Marker) string {
	var names []string
	for _, m := range markers {
		if m.Value >= bin.Low && (m.Value < bin.High || last && m.Value == bin.High) {
			names = append(names, m.Label)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return " <- " + strings.Join(names, ", ")
}
