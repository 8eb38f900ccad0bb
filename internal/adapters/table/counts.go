package table

import (
	"io"
	"slices"

	"github.com/grailbio/base/tsv"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

// FeatureColumn is the header of the feature id column of a count matrix.
const FeatureColumn = "feature_id"

// ReadCounts parses a count matrix: a header row naming the feature column and one
// column per sample, followed by one row per feature.
func ReadCounts(r io.Reader) (*domain.CountTable, error) {
	header, rows, err := readRecords(r, 0)
	if err != nil {
		return nil, err
	}
	if len(header) < 2 {
		return nil, zerr.With(domain.ErrTableMalformed, "reason", "count table needs a feature column and at least one sample")
	}

	samples := header[1:]
	seen := make(map[string]bool, len(samples))
	for _, s := range samples {
		if seen[s] {
			return nil, zerr.With(zerr.With(domain.ErrTableMalformed, "reason", "duplicate sample column"), "sample", s)
		}
		seen[s] = true
	}

	t := &domain.CountTable{
		FeatureIDs: make([]string, 0, len(rows)),
		Samples:    samples,
		Counts:     make([][]float64, 0, len(rows)),
	}
	for i, rec := range rows {
		values := make([]float64, len(samples))
		for j, field := range rec[1:] {
			if values[j], err = parseFloat(field, i+2, samples[j]); err != nil {
				return nil, err
			}
		}
		t.FeatureIDs = append(t.FeatureIDs, rec[0])
		t.Counts = append(t.Counts, values)
	}
	return t, nil
}

// WriteCounts writes a count matrix in the format ReadCounts parses.
func WriteCounts(w io.Writer, t *domain.CountTable) error {
	tw := tsv.NewWriter(w)
	if err := writeRow(tw, append([]string{FeatureColumn}, t.Samples...)...); err != nil {
		return err
	}
	for i, id := range t.FeatureIDs {
		tw.WriteString(id)
		for _, v := range t.Counts[i] {
			tw.WriteString(formatFloat(v))
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// ReadCountsFile reads a count matrix from path.
func ReadCountsFile(path string) (*domain.CountTable, error) {
	return readFile(path, ReadCounts)
}

// WriteCountsFile writes a count matrix to path.
func WriteCountsFile(path string, t *domain.CountTable) error {
	return WriteFile(path, func(w io.Writer) error { return WriteCounts(w, t) })
}

// MergeColumns builds a count matrix from per-sample feature columns. Features are
// kept in the order of the first sample; every sample must list the same features.
func MergeColumns(samples []string, features [][]string, values [][]float64) (*domain.CountTable, error) {
	if len(samples) == 0 {
		return nil, zerr.With(domain.ErrTableMalformed, "reason", "no samples to merge")
	}
	ref := features[0]
	index := make(map[string]int, len(ref))
	for i, id := range ref {
		index[id] = i
	}

	t := &domain.CountTable{
		FeatureIDs: slices.Clone(ref),
		Samples:    slices.Clone(samples),
		Counts:     make([][]float64, len(ref)),
	}
	for i := range t.Counts {
		t.Counts[i] = make([]float64, len(samples))
	}
	for j, ids := range features {
		if len(ids) != len(ref) {
			return nil, zerr.With(zerr.With(domain.ErrSampleMismatch, "sample", samples[j]), "reason", "different feature set")
		}
		for k, id := range ids {
			i, ok := index[id]
			if !ok {
				return nil, zerr.With(zerr.With(domain.ErrSampleMismatch, "sample", samples[j]), "feature", id)
			}
			t.Counts[i][j] = values[j][k]
		}
	}
	return t, nil
}
