package table

import (
	"io"

	"github.com/grailbio/base/tsv"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

// SampleColumn is the header of the sample column of a design table.
const SampleColumn = "sample"

// ReadDesign parses a design table whose first column is named "sample".
func ReadDesign(r io.Reader) (*domain.DesignTable, error) {
	header, rows, err := readRecords(r, '#')
	if err != nil {
		return nil, err
	}
	if header[0] != SampleColumn {
		return nil, zerr.With(zerr.With(domain.ErrTableMalformed, "reason", "first design column must be "+SampleColumn), "column", header[0])
	}

	d := &domain.DesignTable{
		Factors: header[1:],
		Levels:  make([][]string, len(header)-1),
	}
	seen := make(map[string]bool, len(rows))
	for _, rec := range rows {
		if seen[rec[0]] {
			return nil, zerr.With(zerr.With(domain.ErrTableMalformed, "reason", "duplicate sample row"), "sample", rec[0])
		}
		seen[rec[0]] = true
		d.Samples = append(d.Samples, rec[0])
		for f, level := range rec[1:] {
			d.Levels[f] = append(d.Levels[f], level)
		}
	}
	return d, nil
}

// WriteDesign writes a design table in the format ReadDesign parses.
func WriteDesign(w io.Writer, d *domain.DesignTable) error {
	tw := tsv.NewWriter(w)
	if err := writeRow(tw, append([]string{SampleColumn}, d.Factors...)...); err != nil {
		return err
	}
	for i, s := range d.Samples {
		tw.WriteString(s)
		for f := range d.Factors {
			tw.WriteString(d.Levels[f][i])
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// ReadDesignFile reads a design table from path.
func ReadDesignFile(path string) (*domain.DesignTable, error) {
	return readFile(path, ReadDesign)
}
