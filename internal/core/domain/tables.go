package domain

import (
	"math"
	"slices"

	"go.trai.ch/zerr"
)

// CountTable is a feature by sample matrix of read counts.
// Counts[i][j] is the count of FeatureIDs[i] in Samples[j].
type CountTable struct {
	FeatureIDs []string
	Samples    []string
	Counts     [][]float64
}

// Column returns the counts of one sample.
func (c *CountTable) Column(sample string) ([]float64, bool) {
	j := slices.Index(c.Samples, sample)
	if j < 0 {
		return nil, false
	}
	col := make([]float64, len(c.FeatureIDs))
	for i, row := range c.Counts {
		col[i] = row[j]
	}
	return col, true
}

// ValidateIntegers reports counts that are negative, fractional or not finite.
func (c *CountTable) ValidateIntegers() error {
	for i, row := range c.Counts {
		for j, v := range row {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
				err := zerr.With(ErrInvalidCounts, "feature", c.FeatureIDs[i])
				return zerr.With(err, "sample", c.Samples[j])
			}
		}
	}
	return nil
}

// DesignTable holds one row per sample and one column per experimental factor.
// Levels[f][i] is the level of Factors[f] for Samples[i].
type DesignTable struct {
	Samples []string
	Factors []string
	Levels  [][]string
}

// Factor returns the per-sample levels of a factor.
func (d *DesignTable) Factor(name string) ([]string, bool) {
	f := slices.Index(d.Factors, name)
	if f < 0 {
		return nil, false
	}
	return d.Levels[f], true
}

// DEResult is the test outcome of one feature. Undefined statistics are NaN.
type DEResult struct {
	FeatureID      string  `tsv:"feature_id"`
	BaseMean       float64 `tsv:"baseMean"`
	Log2FoldChange float64 `tsv:"log2FoldChange"`
	LfcSE          float64 `tsv:"lfcSE"`
	Stat           float64 `tsv:"stat"`
	PValue         float64 `tsv:"pvalue"`
	Padj           float64 `tsv:"padj"`
}
