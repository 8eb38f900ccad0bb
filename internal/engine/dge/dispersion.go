package dge

import (
	"math"

	"github.com/exascience/pargo/parallel"
	"go.trai.ch/rnaflow/internal/core/domain"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat"
)

const (
	// outlierSD is how many standard deviations above the trend a gene-wise estimate
	// must lie for the feature to keep it instead of the shrunken value.
	outlierSD = 2.0

	minPriorVar   = 0.25
	trendMaxIter  = 10
	gammaMaxIter  = 25
	gridPoints    = 30
	goldenTol     = 1e-6
	madConsistent = 1.4826
)

// Trend kinds.
const (
	TrendParametric = "parametric"
	TrendMean       = "mean"
)

// Dispersions holds the per-feature dispersion estimates. Features without reads are NaN.
type Dispersions struct {
	GeneWise []float64
	Trend    []float64
	MAP      []float64
	Final    []float64
	Outlier  []bool

	// TrendKind is TrendParametric when Trend = A0 + A1/baseMean, TrendMean when the
	// parametric fit failed and Trend is the mean gene-wise estimate A0.
	TrendKind string
	A0, A1    float64
	PriorVar  float64
}

// EstimateDispersions computes gene-wise Cox-Reid adjusted profile likelihood estimates,
// fits the mean-dispersion trend and shrinks each estimate toward the trend.
func (d *Dataset) EstimateDispersions() (*Dataset, error) {
	if d.sizeFactors == nil {
		return nil, domain.ErrSizeFactorsMissing
	}
	n, p := len(d.samples), d.model.coefficients()
	maxDisp := math.Max(10, float64(n))
	baseMeans, _ := d.BaseMeans()

	features := len(d.counts)
	disp := &Dispersions{
		GeneWise: nanSlice(features),
		Trend:    nanSlice(features),
		MAP:      nanSlice(features),
		Final:    nanSlice(features),
		Outlier:  make([]bool, features),
	}
	mus := make([][]float64, features)
	hat := d.model.hat()
	xim := mean(inverse(d.sizeFactors))

	parallel.Range(0, features, 0, func(low, high int) {
		for i := low; i < high; i++ {
			if d.allZero(i) {
				continue
			}
			y := d.counts[i]
			alpha0 := roughDispersion(d.normalizedRow(y), hat, xim, p)
			alpha0 = clamp(alpha0, minDisp, maxDisp)

			fit := fitNB(y, d.model.rows, d.sizeFactors, alpha0)
			mu := fit.mu
			if !fit.converged || math.IsNaN(mu[0]) {
				mu = d.linearMu(y, hat)
			}
			mus[i] = mu

			logAlpha := maximize(func(la float64) float64 {
				return coxReidAPL(y, mu, d.model.rows, la)
			}, math.Log(minDisp/10), math.Log(maxDisp))
			disp.GeneWise[i] = clamp(math.Exp(logAlpha), minDisp, maxDisp)
		}
	})

	fitTrend(disp, baseMeans)

	var resid []float64
	for i, g := range disp.GeneWise {
		if g >= 100*minDisp && !math.IsNaN(g) {
			resid = append(resid, math.Log(g)-math.Log(disp.Trend[i]))
		}
	}
	varLogDisp := math.Pow(madConsistent*mad(resid), 2)
	if len(resid) == 0 {
		varLogDisp = 0
	}
	expVarLogDisp := trigamma(float64(n-p) / 2)
	disp.PriorVar = math.Max(varLogDisp-expVarLogDisp, minPriorVar)

	parallel.Range(0, features, 0, func(low, high int) {
		for i := low; i < high; i++ {
			if mus[i] == nil {
				continue
			}
			y, mu := d.counts[i], mus[i]
			logTrend := math.Log(disp.Trend[i])
			logAlpha := maximize(func(la float64) float64 {
				prior := (la - logTrend) * (la - logTrend) / (2 * disp.PriorVar)
				return coxReidAPL(y, mu, d.model.rows, la) - prior
			}, math.Log(minDisp/10), math.Log(maxDisp))
			disp.MAP[i] = clamp(math.Exp(logAlpha), minDisp, maxDisp)

			if math.Log(disp.GeneWise[i]) > logTrend+outlierSD*math.Sqrt(varLogDisp) {
				disp.Outlier[i] = true
				disp.Final[i] = disp.GeneWise[i]
			} else {
				disp.Final[i] = disp.MAP[i]
			}
		}
	})

	out := d.clone()
	out.dispersions = disp
	out.fit = nil
	return out, nil
}

// roughDispersion is the smaller of a least-squares residual estimate and a moments
// estimate, used to start the GLM fit.
func roughDispersion(norm []float64, hat *mat.Dense, xim float64, p int) float64 {
	n := len(norm)
	var est float64
	for j := range norm {
		var fitted float64
		for k := range norm {
			fitted += hat.At(j, k) * norm[k]
		}
		fitted = math.Max(fitted, 1)
		r := norm[j] - fitted
		est += (r*r - fitted) / (fitted * fitted)
	}
	rough := math.Max(est/float64(n-p), 0)

	m, v := stat.MeanVariance(norm, nil)
	moments := (v - xim*m) / (m * m)
	if math.IsNaN(moments) {
		return rough
	}
	return math.Min(rough, moments)
}

// linearMu returns least-squares fitted means, used when the GLM fit fails.
func (d *Dataset) linearMu(y []float64, hat *mat.Dense) []float64 {
	norm := d.normalizedRow(y)
	mu := make([]float64, len(y))
	for j := range mu {
		var fitted float64
		for k := range norm {
			fitted += hat.At(j, k) * norm[k]
		}
		mu[j] = math.Max(fitted*d.sizeFactors[j], minMu)
	}
	return mu
}

// coxReidAPL is the Cox-Reid adjusted profile log likelihood of log dispersion la
// given fitted means mu.
func coxReidAPL(y, mu []float64, rows [][]float64, la float64) float64 {
	alpha := math.Exp(la)
	var ll float64
	w := make([]float64, len(y))
	for j := range y {
		ll += logNB(y[j], mu[j], alpha)
		w[j] = 1 / (1/mu[j] + alpha)
	}
	var chol mat.Cholesky
	if !chol.Factorize(normalEquations(rows, w, 0)) {
		return math.Inf(-1)
	}
	return ll - 0.5*chol.LogDet()
}

// maximize finds the maximum of f on [lo, hi] with a grid search refined by
// golden-section search around the best grid point.
func maximize(f func(float64) float64, lo, hi float64) float64 {
	step := (hi - lo) / (gridPoints - 1)
	best, bestVal := lo, f(lo)
	for k := 1; k < gridPoints; k++ {
		x := lo + step*float64(k)
		if v := f(x); v > bestVal {
			best, bestVal = x, v
		}
	}

	invPhi := (math.Sqrt(5) - 1) / 2
	a, b := math.Max(lo, best-step), math.Min(hi, best+step)
	c, e := b-invPhi*(b-a), a+invPhi*(b-a)
	fc, fe := f(c), f(e)
	for b-a > goldenTol {
		if fc > fe {
			b, e, fe = e, c, fc
			c = b - invPhi*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, e, fe
			e = a + invPhi*(b-a)
			fe = f(e)
		}
	}
	x := (a + b) / 2
	if f(x) < bestVal {
		return best
	}
	return x
}

// fitTrend fits Trend = A0 + A1/baseMean to the gene-wise estimates by a gamma-family
// GLM with identity link, dropping estimates far from the current fit on each round.
// When the fit fails, the trend is the mean of the gene-wise estimates.
func fitTrend(disp *Dispersions, baseMeans []float64) {
	var means, values []float64
	for i, g := range disp.GeneWise {
		if g >= 100*minDisp && !math.IsNaN(g) {
			means = append(means, baseMeans[i])
			values = append(values, g)
		}
	}

	a0, a1, ok := parametricTrend(means, values)
	if ok {
		disp.TrendKind, disp.A0, disp.A1 = TrendParametric, a0, a1
		for i, g := range disp.GeneWise {
			if !math.IsNaN(g) {
				disp.Trend[i] = a0 + a1/baseMeans[i]
			}
		}
		return
	}

	var sum float64
	var count int
	for _, g := range disp.GeneWise {
		if g >= 10*minDisp && !math.IsNaN(g) {
			sum += g
			count++
		}
	}
	level := minDisp
	if count > 0 {
		level = sum / float64(count)
	}
	disp.TrendKind, disp.A0, disp.A1 = TrendMean, level, 0
	for i, g := range disp.GeneWise {
		if !math.IsNaN(g) {
			disp.Trend[i] = level
		}
	}
}

func parametricTrend(means, values []float64) (a0, a1 float64, ok bool) {
	if len(values) < 3 {
		return 0, 0, false
	}
	coefs := [2]float64{0.1, 1}
	for range trendMaxIter {
		var x, y []float64
		for i, v := range values {
			r := v / (coefs[0] + coefs[1]/means[i])
			if r > 1e-4 && r < 15 {
				x = append(x, 1/means[i])
				y = append(y, v)
			}
		}
		next, converged := gammaIdentityGLM(x, y, coefs)
		if next[0] <= 0 || next[1] <= 0 || math.IsNaN(next[0]) || math.IsNaN(next[1]) {
			return 0, 0, false
		}
		change := math.Pow(math.Log(next[0]/coefs[0]), 2) + math.Pow(math.Log(next[1]/coefs[1]), 2)
		coefs = next
		if change < 1e-6 && converged {
			return coefs[0], coefs[1], true
		}
	}
	return 0, 0, false
}

// gammaIdentityGLM fits E[y] = c0 + c1*x with variance proportional to the squared mean.
func gammaIdentityGLM(x, y []float64, start [2]float64) ([2]float64, bool) {
	nan := [2]float64{math.NaN(), math.NaN()}
	if len(y) < 2 {
		return nan, false
	}
	rows := make([][]float64, len(x))
	for i := range x {
		rows[i] = []float64{1, x[i]}
	}
	w := make([]float64, len(y))
	coefs := start
	devOld := math.Inf(1)
	for range gammaMaxIter {
		var dev float64
		for i := range y {
			mu := coefs[0] + coefs[1]*x[i]
			if mu <= 0 {
				return nan, false
			}
			w[i] = 1 / (mu * mu)
			dev += 2 * (-math.Log(y[i]/mu) + (y[i]-mu)/mu)
		}
		if math.Abs(dev-devOld)/(math.Abs(dev)+0.1) < glmTol {
			return coefs, true
		}
		devOld = dev
		next, ok := solveWeighted(rows, w, y)
		if !ok {
			return nan, false
		}
		coefs = [2]float64{next[0], next[1]}
	}
	return coefs, false
}

// trigamma is the second derivative of log Gamma, the Hurwitz zeta function at 2.
func trigamma(x float64) float64 {
	if x <= 0 {
		return math.Inf(1)
	}
	return mathext.Zeta(2, x)
}

// mad returns the median absolute deviation from the median.
func mad(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	m := median(x)
	dev := make([]float64, len(x))
	for i, v := range x {
		dev[i] = math.Abs(v - m)
	}
	return median(dev)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func inverse(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = 1 / v
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
