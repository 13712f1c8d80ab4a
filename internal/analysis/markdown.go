package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	mstats "github.com/aclements/go-moremath/stats"
)

// Markdown renders a compact report suitable for the terminal or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	if r.Encoding != "" {
		b.WriteString(fmt.Sprintf("Encoding: %s\n", r.Encoding))
	}
	if r.Days > 0 {
		b.WriteString(fmt.Sprintf("Period: %s ~ %s (%d days, %d years)\n", r.First, r.Last, r.Days, r.Years))
	}
	b.WriteString(fmt.Sprintf("Rows: %d read, %d kept", r.Rows.RowsRead, r.Rows.Kept))
	if d := r.Rows.Dropped(); d > 0 {
		b.WriteString(fmt.Sprintf(", %d dropped (bad date %d, missing temperature %d, duplicate %d)",
			d, r.Rows.BadDate, r.Rows.MissingTemp, r.Rows.Duplicates))
	}
	b.WriteString("\n")
	if r.Days > 0 {
		b.WriteString(fmt.Sprintf("Coverage: %.1f%% of calendar days\n", float64(r.Rows.Kept)*100/float64(r.Days)))
	}
	b.WriteString(fmt.Sprintf("Columns: %d\n", len(r.Cols)))

	if len(r.Cols) > 0 {
		b.WriteString("\n[SCHEMA]\n")
		for _, c := range r.Cols {
			name := safeName(c.Name)
			if c.Unit != "" {
				name = fmt.Sprintf("%s [%s]", name, c.Unit)
			}
			b.WriteString(fmt.Sprintf("- %s: numeric (n=%d): min %.4g on %s, max %.4g on %s, mean %.4g, std %.4g",
				name, c.Count, c.Min, c.MinDate, c.Max, c.MaxDate, c.Mean, c.Std))
			if c.OutlierThreshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
				if c.OutliersMaxAbsZ > 0 {
					b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
				}
			}
			b.WriteString("\n")
		}
	}
	if len(r.Months) > 0 {
		b.WriteString("\n[MONTHLY SUMMARY]\n")
		for _, g := range r.Months {
			b.WriteString(fmt.Sprintf("- month %s (n=%d)\n", g.Key, g.Size))
			keys := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				m := g.Metrics[k]
				b.WriteString(fmt.Sprintf("  • %s: mean %.4g (min %.4g, max %.4g)\n", k, m.Mean, m.Min, m.Max))
			}
		}
	}
	if r.Corr != nil && len(r.Corr.Columns) >= 2 {
		b.WriteString("\n[CORRELATIONS]\n")
		n := len(r.Corr.Columns)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", r.Corr.Columns[i], r.Corr.Columns[j], r.Corr.Values[i][j]))
			}
		}
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| date")
		for _, c := range r.Cols {
			b.WriteString(" | ")
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n|---")
		for range r.Cols {
			b.WriteString("|---")
		}
		b.WriteString("|\n")
		for _, o := range r.Samples {
			b.WriteString("| ")
			b.WriteString(o.Date.String())
			for _, f := range o.Present.Fields() {
				v, _ := o.Value(f)
				b.WriteString(fmt.Sprintf(" | %.1f", v))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`), 2},  // e.g., 평균기온(℃)
	{regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), 2}, // e.g., Mean [°C]
}

func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	s := mstats.Sample{Xs: vals}
	median = s.Quantile(0.5)
	dev := make([]float64, len(vals))
	for i, v := range vals {
		d := v - median
		if d < 0 {
			d = -d
		}
		dev[i] = d
	}
	ds := mstats.Sample{Xs: dev}
	mad = ds.Quantile(0.5)
	return
}
