package dge

import (
	"math"
	"slices"

	"github.com/exascience/pargo/parallel"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Fit is the per-feature negative binomial GLM of a dataset. Coefficients are on the
// natural log scale, in the order of Dataset.Coefficients.
type Fit struct {
	Beta      [][]float64
	Deviance  []float64
	Converged []bool

	cov []*mat.SymDense
}

// FitGLM fits every feature with its final dispersion estimate.
func (d *Dataset) FitGLM() (*Dataset, error) {
	if d.sizeFactors == nil {
		return nil, domain.ErrSizeFactorsMissing
	}
	if d.dispersions == nil {
		return nil, domain.ErrDispersionsMissing
	}
	out := d.clone()
	out.fit = d.fitModel(d.model.rows)
	return out, nil
}

// Fit returns the GLM fit, or nil before FitGLM.
func (d *Dataset) Fit() *Fit {
	return d.fit
}

func (d *Dataset) fitModel(rows [][]float64) *Fit {
	n := len(d.counts)
	f := &Fit{
		Beta:      make([][]float64, n),
		Deviance:  make([]float64, n),
		Converged: make([]bool, n),
		cov:       make([]*mat.SymDense, n),
	}
	parallel.Range(0, n, 0, func(low, high int) {
		for i := low; i < high; i++ {
			alpha := d.dispersions.Final[i]
			if d.allZero(i) || math.IsNaN(alpha) {
				g := failedFit(len(rows[0]), len(d.samples))
				f.Beta[i], f.Deviance[i] = g.beta, g.deviance
				continue
			}
			g := fitNB(d.counts[i], rows, d.sizeFactors, alpha)
			f.Beta[i], f.Deviance[i], f.Converged[i], f.cov[i] = g.beta, g.deviance, g.converged, g.cov
		}
	})
	return f
}

// WaldTest returns per-feature results for the contrast, with Benjamini-Hochberg
// adjusted p-values.
func (d *Dataset) WaldTest(c Contrast) ([]domain.DEResult, error) {
	if d.fit == nil {
		return nil, zerr.With(domain.ErrDispersionsMissing, "reason", "model has not been fitted")
	}
	v, err := d.model.contrastVector(c, d.levels)
	if err != nil {
		return nil, err
	}
	results, err := d.baseResults()
	if err != nil {
		return nil, err
	}
	for i := range results {
		lfc, se := d.contrastEstimate(i, v)
		results[i].Log2FoldChange = lfc
		results[i].LfcSE = se
		results[i].Stat = lfc / se
		results[i].PValue = 2 * distuv.UnitNormal.Survival(math.Abs(results[i].Stat))
	}
	adjust(results)
	return results, nil
}

// LRTest compares the fitted model against the reduced formula by the deviance
// difference, chi-squared with as many degrees of freedom as dropped coefficients.
// Fold changes come from the contrast, or from the last coefficient when c is nil.
func (d *Dataset) LRTest(reduced string, c *Contrast) ([]domain.DEResult, error) {
	if d.fit == nil {
		return nil, zerr.With(domain.ErrDispersionsMissing, "reason", "model has not been fitted")
	}
	rf, err := ParseFormula(reduced)
	if err != nil {
		return nil, err
	}
	if !rf.nestedIn(d.model.formula) || len(rf.Terms) >= len(d.model.formula.Terms) {
		err := zerr.With(domain.ErrInvalidFormula, "reduced", rf.String())
		return nil, zerr.With(zerr.With(err, "full", d.model.formula.String()), "reason", "reduced formula must drop terms of the full formula")
	}

	v := make([]float64, d.model.coefficients())
	if c != nil {
		if v, err = d.model.contrastVector(*c, d.levels); err != nil {
			return nil, err
		}
	} else {
		v[len(v)-1] = 1
	}

	rm := newModel(rf, d.factors, d.levels, len(d.samples))
	reducedFit := d.fitModel(rm.rows)
	df := float64(d.model.coefficients() - rm.coefficients())
	chi := distuv.ChiSquared{K: df}

	results, err := d.baseResults()
	if err != nil {
		return nil, err
	}
	for i := range results {
		lfc, se := d.contrastEstimate(i, v)
		results[i].Log2FoldChange = lfc
		results[i].LfcSE = se
		stat := math.Max(reducedFit.Deviance[i]-d.fit.Deviance[i], 0)
		results[i].Stat = stat
		results[i].PValue = chi.Survival(stat)
		if d.allZero(i) {
			results[i].Stat, results[i].PValue = math.NaN(), math.NaN()
		}
	}
	adjust(results)
	return results, nil
}

// contrastEstimate returns the log2 fold change and its standard error for feature i.
func (d *Dataset) contrastEstimate(i int, v []float64) (float64, float64) {
	cov := d.fit.cov[i]
	if cov == nil {
		return math.NaN(), math.NaN()
	}
	var est float64
	for a, w := range v {
		est += w * d.fit.Beta[i][a]
	}
	return est / math.Ln2, math.Sqrt(quadForm(v, cov)) / math.Ln2
}

func (d *Dataset) baseResults() ([]domain.DEResult, error) {
	baseMeans, err := d.BaseMeans()
	if err != nil {
		return nil, err
	}
	results := make([]domain.DEResult, len(d.features))
	for i, id := range d.features {
		results[i] = domain.DEResult{FeatureID: id, BaseMean: baseMeans[i]}
	}
	return results, nil
}

func adjust(results []domain.DEResult) {
	p := make([]float64, len(results))
	for i, r := range results {
		p[i] = r.PValue
	}
	for i, q := range AdjustBH(p) {
		results[i].Padj = q
	}
}

// AdjustBH returns Benjamini-Hochberg adjusted p-values. NaN entries stay NaN and do
// not count toward the number of tests.
func AdjustBH(p []float64) []float64 {
	out := make([]float64, len(p))
	var idx []int
	for i, v := range p {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		idx = append(idx, i)
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case p[a] > p[b]:
			return -1
		case p[a] < p[b]:
			return 1
		}
		return 0
	})

	m := float64(len(idx))
	running := 1.0
	for k, i := range idx {
		rank := m - float64(k)
		running = math.Min(running, p[i]*m/rank)
		out[i] = running
	}
	return out
}
