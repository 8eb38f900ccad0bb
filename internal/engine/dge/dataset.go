// Package dge implements negative binomial differential expression analysis of count
// matrices: median-of-ratios normalization, shrunken dispersion estimates, per-feature
// GLM fits, Wald and likelihood ratio tests with Benjamini-Hochberg adjustment.
//
// A Dataset is immutable. Every estimation step returns a new Dataset and leaves its
// receiver untouched.
package dge

import (
	"slices"
	"strings"

	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

// MinReplicates is the smallest number of samples a factor level needs.
const MinReplicates = 2

// Dataset is a count matrix aligned with its sample design.
type Dataset struct {
	features []string
	samples  []string
	counts   [][]float64
	factors  map[string][]string
	levels   map[string][]string
	model    *model

	sizeFactors []float64
	dispersions *Dispersions
	fit         *Fit
}

// NewDataset aligns design rows to count columns by sample name and builds the
// design matrix for formula.
func NewDataset(counts *domain.CountTable, design *domain.DesignTable, formula string) (*Dataset, error) {
	f, err := ParseFormula(formula)
	if err != nil {
		return nil, err
	}
	if err := counts.ValidateIntegers(); err != nil {
		return nil, err
	}
	if err := matchSamples(counts.Samples, design.Samples); err != nil {
		return nil, err
	}

	rowOf := make(map[string]int, len(design.Samples))
	for i, s := range design.Samples {
		rowOf[s] = i
	}
	factors := make(map[string][]string, len(design.Factors))
	levels := make(map[string][]string, len(design.Factors))
	for fi, name := range design.Factors {
		aligned := make([]string, len(counts.Samples))
		for j, s := range counts.Samples {
			aligned[j] = design.Levels[fi][rowOf[s]]
		}
		factors[name] = aligned
		lv := slices.Clone(aligned)
		slices.Sort(lv)
		levels[name] = slices.Compact(lv)
	}

	if err := checkTerms(f, factors, levels); err != nil {
		return nil, err
	}

	m := newModel(f, factors, levels, len(counts.Samples))
	if len(counts.Samples) <= m.coefficients() {
		err := zerr.With(domain.ErrTooFewReplicates, "samples", len(counts.Samples))
		return nil, zerr.With(err, "coefficients", m.coefficients())
	}
	if !m.fullRank() {
		return nil, zerr.With(zerr.With(domain.ErrInvalidFormula, "formula", f.String()), "reason", "design matrix is not full rank")
	}

	rows := make([][]float64, len(counts.Counts))
	for i, row := range counts.Counts {
		rows[i] = slices.Clone(row)
	}

	return &Dataset{
		features: slices.Clone(counts.FeatureIDs),
		samples:  slices.Clone(counts.Samples),
		counts:   rows,
		factors:  factors,
		levels:   levels,
		model:    m,
	}, nil
}

func matchSamples(countSamples, designSamples []string) error {
	var missingDesign, missingCounts []string
	for _, s := range countSamples {
		if !slices.Contains(designSamples, s) {
			missingDesign = append(missingDesign, s)
		}
	}
	for _, s := range designSamples {
		if !slices.Contains(countSamples, s) {
			missingCounts = append(missingCounts, s)
		}
	}
	if len(missingDesign) == 0 && len(missingCounts) == 0 {
		return nil
	}
	err := domain.ErrSampleMismatch
	if len(missingDesign) > 0 {
		err = zerr.With(err, "not_in_design", strings.Join(missingDesign, ","))
	}
	if len(missingCounts) > 0 {
		err = zerr.With(err, "not_in_counts", strings.Join(missingCounts, ","))
	}
	return err
}

func checkTerms(f Formula, factors, levels map[string][]string) error {
	for _, term := range f.Terms {
		values, ok := factors[term]
		if !ok {
			return zerr.With(zerr.With(domain.ErrInvalidFormula, "term", term), "reason", "not a design column")
		}
		if len(levels[term]) < 2 {
			return zerr.With(zerr.With(domain.ErrInvalidFormula, "term", term), "reason", "factor has a single level")
		}
		for _, lvl := range levels[term] {
			n := 0
			for _, v := range values {
				if v == lvl {
					n++
				}
			}
			if n < MinReplicates {
				err := zerr.With(domain.ErrTooFewReplicates, "factor", term)
				err = zerr.With(err, "level", lvl)
				return zerr.With(err, "samples", n)
			}
		}
	}
	return nil
}

func (d *Dataset) clone() *Dataset {
	c := *d
	return &c
}

// Features returns the feature ids in row order.
func (d *Dataset) Features() []string {
	return slices.Clone(d.features)
}

// Samples returns the sample names in column order.
func (d *Dataset) Samples() []string {
	return slices.Clone(d.samples)
}

// Formula returns the design formula.
func (d *Dataset) Formula() Formula {
	return d.model.formula
}

// Coefficients returns the names of the design matrix columns.
func (d *Dataset) Coefficients() []string {
	return slices.Clone(d.model.names)
}

// Levels returns the sorted levels of a design factor. The first is the reference level.
func (d *Dataset) Levels(factor string) []string {
	return slices.Clone(d.levels[factor])
}

// SizeFactors returns the per-sample size factors, or nil before estimation.
func (d *Dataset) SizeFactors() []float64 {
	return slices.Clone(d.sizeFactors)
}

// Dispersions returns the dispersion estimates, or nil before estimation.
func (d *Dataset) Dispersions() *Dispersions {
	if d.dispersions == nil {
		return nil
	}
	c := *d.dispersions
	return &c
}

// WithSizeFactors returns a copy of the dataset using the given size factors.
func (d *Dataset) WithSizeFactors(sf []float64) (*Dataset, error) {
	if len(sf) != len(d.samples) {
		return nil, zerr.With(zerr.With(domain.ErrSampleMismatch, "size_factors", len(sf)), "samples", len(d.samples))
	}
	for _, s := range sf {
		if s <= 0 {
			return nil, zerr.With(domain.ErrInvalidCounts, "reason", "size factors must be positive")
		}
	}
	out := d.clone()
	out.sizeFactors = slices.Clone(sf)
	out.dispersions = nil
	out.fit = nil
	return out, nil
}

// NormalizedCounts returns counts divided by their sample's size factor.
func (d *Dataset) NormalizedCounts() ([][]float64, error) {
	if d.sizeFactors == nil {
		return nil, domain.ErrSizeFactorsMissing
	}
	out := make([][]float64, len(d.counts))
	for i, row := range d.counts {
		out[i] = d.normalizedRow(row)
	}
	return out, nil
}

// BaseMeans returns the mean normalized count of every feature.
func (d *Dataset) BaseMeans() ([]float64, error) {
	if d.sizeFactors == nil {
		return nil, domain.ErrSizeFactorsMissing
	}
	out := make([]float64, len(d.counts))
	for i, row := range d.counts {
		out[i] = mean(d.normalizedRow(row))
	}
	return out, nil
}

func (d *Dataset) normalizedRow(row []float64) []float64 {
	n := make([]float64, len(row))
	for j, v := range row {
		n[j] = v / d.sizeFactors[j]
	}
	return n
}

// allZero reports whether feature i has no reads in any sample.
func (d *Dataset) allZero(i int) bool {
	return !slices.ContainsFunc(d.counts[i], func(v float64) bool { return v > 0 })
}
