package dge

import (
	"math"
	"slices"

	"go.trai.ch/rnaflow/internal/core/domain"
	"gonum.org/v1/gonum/stat"
)

// EstimateSizeFactors computes median-of-ratios size factors: for each sample, the
// median over features with positive counts in every sample of the ratio between the
// count and the feature's geometric mean across samples.
func (d *Dataset) EstimateSizeFactors() (*Dataset, error) {
	m := len(d.samples)
	logRatios := make([][]float64, m)
	logs := make([]float64, m)
	for _, row := range d.counts {
		if slices.ContainsFunc(row, func(v float64) bool { return v <= 0 }) {
			continue
		}
		for j, v := range row {
			logs[j] = math.Log(v)
		}
		logGeoMean := stat.Mean(logs, nil)
		for j := range logs {
			logRatios[j] = append(logRatios[j], logs[j]-logGeoMean)
		}
	}
	if len(logRatios[0]) == 0 {
		return nil, domain.ErrNoCommonFeatures
	}

	sf := make([]float64, m)
	for j := range sf {
		sf[j] = math.Exp(median(logRatios[j]))
	}

	out := d.clone()
	out.sizeFactors = sf
	out.dispersions = nil
	out.fit = nil
	return out, nil
}

// median returns the middle value of x, averaging the two middle values for even lengths.
func median(x []float64) float64 {
	s := slices.Clone(x)
	slices.Sort(s)
	n := len(s)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func mean(x []float64) float64 {
	return stat.Mean(x, nil)
}
