package stats

import (
	"math"

	mstats "github.com/aclements/go-moremath/stats"
)

// DefaultHistogramBins matches the bin count of the report histogram.
const DefaultHistogramBins = 30

// Bin is one histogram bucket covering [Low, High).
type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Histogram buckets values into nbins equal-width bins spanning their range.
// The maximum value is counted in the last bin.
func Histogram(values []float64, nbins int) []Bin {
	if len(values) == 0 {
		return nil
	}
	if nbins <= 0 {
		nbins = DefaultHistogramBins
	}
	s := mstats.Sample{Xs: values}
	lo, hi := s.Bounds()
	if hi == lo {
		// A single distinct value gets one unit-wide bin around it.
		return []Bin{{Low: lo - 0.5, High: hi + 0.5, Count: len(values)}}
	}
	h := mstats.NewLinearHist(lo, hi, nbins)
	for _, v := range values {
		h.Add(v)
	}
	under, counts, over := h.Counts()
	bins := make([]Bin, len(counts))
	for i, c := range counts {
		bins[i] = Bin{Low: h.BinToValue(float64(i)), High: h.BinToValue(float64(i + 1)), Count: int(c)}
	}
	bins[0].Count += int(under)
	bins[len(bins)-1].Count += int(over)
	return bins
}

// DensityPoint is one sample of a kernel density estimate.
type DensityPoint struct {
	X       float64 `json:"x"`
	Density float64 `json:"density"`
}

// Density evaluates a Gaussian kernel density estimate of values at n evenly
// spaced points across their range. It returns nil when fewer than two
// distinct values are present.
func Density(values []float64, n int) []DensityPoint {
	if len(values) < 2 || n < 2 {
		return nil
	}
	s := mstats.Sample{Xs: values}
	lo, hi := s.Bounds()
	if hi == lo {
		return nil
	}
	kde := &mstats.KDE{Sample: s}
	out := make([]DensityPoint, 0, n)
	step := (hi - lo) / float64(n-1)
	for i := 0; i < n; i++ {
		x := lo + float64(i)*step
		d := kde.PDF(x)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return nil
		}
		out = append(out, DensityPoint{X: x, Density: d})
	}
	return out
}
