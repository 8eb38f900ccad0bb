package dge

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	minDisp    = 1e-8
	minMu      = 0.5
	ridge      = 1e-6
	glmMaxIter = 100
	glmTol     = 1e-8
	maxBeta    = 30.0
)

// logNB is the log density of a negative binomial count y with mean mu and dispersion
// alpha, parameterized so that the variance is mu + alpha*mu^2.
func logNB(y, mu, alpha float64) float64 {
	r := 1 / alpha
	a, _ := math.Lgamma(y + r)
	b, _ := math.Lgamma(r)
	c, _ := math.Lgamma(y + 1)
	ll := a - b - c + r*math.Log(r/(r+mu))
	if y > 0 {
		ll += y * math.Log(mu/(r+mu))
	}
	return ll
}

// glmFit is the negative binomial GLM of one feature. Coefficients are natural-log scale.
type glmFit struct {
	beta      []float64
	cov       *mat.SymDense
	mu        []float64
	deviance  float64
	converged bool
}

// fitNB fits a log-link negative binomial GLM with offsets log(sf) by iteratively
// reweighted least squares.
func fitNB(y []float64, rows [][]float64, sf []float64, alpha float64) glmFit {
	n, p := len(rows), len(rows[0])

	z := make([]float64, n)
	w := make([]float64, n)
	for j := range y {
		z[j] = math.Log(y[j]/sf[j] + 0.1)
		w[j] = 1
	}
	beta, ok := solveWeighted(rows, w, z)
	if !ok {
		return failedFit(p, n)
	}

	mu := make([]float64, n)
	fillMu(mu, beta, rows, sf)
	devOld := deviance(y, mu, alpha)

	fit := glmFit{}
	for iter := 0; iter < glmMaxIter; iter++ {
		for j := range y {
			w[j] = mu[j] / (1 + alpha*mu[j])
			z[j] = math.Log(mu[j]/sf[j]) + (y[j]-mu[j])/mu[j]
		}
		next, ok := solveWeighted(rows, w, z)
		if !ok {
			return failedFit(p, n)
		}
		// A diverging step is rejected; beta and mu stay at the last accepted iterate.
		if floats.Max(next) > maxBeta || floats.Min(next) < -maxBeta {
			break
		}
		beta = next
		fillMu(mu, beta, rows, sf)
		dev := deviance(y, mu, alpha)
		if math.Abs(dev-devOld)/(math.Abs(dev)+0.1) < glmTol {
			fit.converged = true
			devOld = dev
			break
		}
		devOld = dev
	}

	for j := range y {
		w[j] = mu[j] / (1 + alpha*mu[j])
	}
	var chol mat.Cholesky
	if !chol.Factorize(normalEquations(rows, w, ridge)) {
		return failedFit(p, n)
	}
	cov := mat.NewSymDense(p, nil)
	if err := chol.InverseTo(cov); err != nil {
		return failedFit(p, n)
	}

	fit.beta = beta
	fit.cov = cov
	fit.mu = mu
	fit.deviance = devOld
	return fit
}

func failedFit(p, n int) glmFit {
	beta := make([]float64, p)
	mu := make([]float64, n)
	for i := range beta {
		beta[i] = math.NaN()
	}
	for i := range mu {
		mu[i] = math.NaN()
	}
	return glmFit{beta: beta, mu: mu, deviance: math.NaN()}
}

// solveWeighted solves (X^T W X + ridge*I) beta = X^T W z.
func solveWeighted(rows [][]float64, w, z []float64) ([]float64, bool) {
	p := len(rows[0])
	rhs := make([]float64, p)
	for j, row := range rows {
		for a := range p {
			rhs[a] += row[a] * w[j] * z[j]
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(normalEquations(rows, w, ridge)) {
		return nil, false
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, mat.NewVecDense(p, rhs)); err != nil {
		return nil, false
	}
	out := make([]float64, p)
	for a := range out {
		out[a] = beta.AtVec(a)
	}
	return out, true
}

func fillMu(mu, beta []float64, rows [][]float64, sf []float64) {
	for j, row := range rows {
		mu[j] = math.Max(sf[j]*math.Exp(floats.Dot(row, beta)), minMu)
	}
}

// deviance is -2 times the log likelihood.
func deviance(y, mu []float64, alpha float64) float64 {
	var ll float64
	for j := range y {
		ll += logNB(y[j], mu[j], alpha)
	}
	return -2 * ll
}

// quadForm returns v^T S v.
func quadForm(v []float64, s *mat.SymDense) float64 {
	var sum float64
	for a := range v {
		for b := range v {
			sum += v[a] * s.At(a, b) * v[b]
		}
	}
	return sum
}
