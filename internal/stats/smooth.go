package stats

import (
	"math"
	"sort"

	"github.com/aclements/go-moremath/fit"
	mstats "github.com/aclements/go-moremath/stats"
)

// Smoother turns points (xs[i], ys[i]) into a smoothed curve evaluated at xs.
// ok is false when no curve can be produced; callers treat that as an absent
// trend, not a failure.
type Smoother interface {
	Smooth(xs, ys []float64) (curve []float64, ok bool)
}

// DefaultRobustIterations is the number of bisquare reweighting passes
// applied after the initial local fit.
const DefaultRobustIterations = 3

// LOESS is a locally weighted polynomial regression smoother.
type LOESS struct {
	// Degree of the local polynomial.
	Degree int
	// Span is the fraction of points used for each local fit, in (0, 1].
	Span float64
	// Iterations of bisquare reweighting on the residuals. Zero gives a
	// single plain pass.
	Iterations int
}

// DefaultLOESS returns a robust local-linear fit over two thirds of the
// points.
func DefaultLOESS() LOESS {
	return LOESS{Degree: 1, Span: 2.0 / 3.0, Iterations: DefaultRobustIterations}
}

// Smooth fits the curve. Points need not be sorted by x.
func (l LOESS) Smooth(xs, ys []float64) (curve []float64, ok bool) {
	if len(xs) != len(ys) || len(xs) <= l.Degree+1 || l.Span <= 0 || l.Span > 1 {
		return nil, false
	}
	// fit panics on degenerate input.
	defer func() {
		if r := recover(); r != nil {
			curve, ok = nil, false
		}
	}()
	if l.Iterations <= 0 {
		f := fit.LOESS(xs, ys, l.Degree, l.Span)
		curve = make([]float64, len(xs))
		for i, x := range xs {
			curve[i] = f(x)
		}
	} else {
		curve = l.robust(xs, ys)
	}
	for _, v := range curve {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	return curve, true
}

// robust runs the initial fit and then refits with bisquare weights on the
// residuals, stopping early once the residuals vanish.
func (l LOESS) robust(xs, ys []float64) []float64 {
	n := len(xs)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return xs[order[a]] < xs[order[b]] })
	sx := make([]float64, n)
	sy := make([]float64, n)
	for i, j := range order {
		sx[i], sy[i] = xs[j], ys[j]
	}

	q := int(math.Ceil(l.Span * float64(n)))
	if q > n {
		q = n
	}
	rw := make([]float64, n)
	for i := range rw {
		rw[i] = 1
	}
	fitted := l.localFit(sx, sy, rw, q)

	scale := 0.0
	for _, y := range sy {
		scale = math.Max(scale, math.Abs(y))
	}
	resid := make([]float64, n)
	for it := 0; it < l.Iterations; it++ {
		for i := range sy {
			resid[i] = math.Abs(sy[i] - fitted[i])
		}
		s := mstats.Sample{Xs: resid}.Quantile(0.5)
		if s <= 1e-12*(1+scale) {
			break
		}
		for i, r := range resid {
			u := r / (6 * s)
			if u < 1 {
				t := 1 - u*u
				rw[i] = t * t
			} else {
				rw[i] = 0
			}
		}
		fitted = l.localFit(sx, sy, rw, q)
	}

	curve := make([]float64, n)
	for i, j := range order {
		curve[j] = fitted[i]
	}
	return curve
}

// localFit evaluates the weighted local regression at every sx[i] using the
// q nearest points, tricube distance weights and the robustness weights rw.
func (l LOESS) localFit(sx, sy, rw []float64, q int) []float64 {
	n := len(sx)
	out := make([]float64, n)
	w := make([]float64, q)
	for i, x := range sx {
		lo := 0
		if n > q {
			lo = sort.Search(n-q, func(k int) bool { return sx[k]+sx[k+q] >= 2*x })
		}
		win := sx[lo : lo+q]
		d := math.Max(x-win[0], win[q-1]-x)
		total := 0.0
		for k, c := range win {
			tri := 1.0
			if d > 0 {
				u := math.Abs(x-c) / d
				t := 1 - u*u*u
				tri = t * t * t
			}
			w[k] = tri * rw[lo+k]
			total += w[k]
		}
		if total == 0 {
			// Every neighbour was rejected; keep the observation.
			out[i] = sy[i]
			continue
		}
		out[i] = fit.PolynomialRegression(win, sy[lo:lo+q], w, l.Degree).F(x)
	}
	return out
}
