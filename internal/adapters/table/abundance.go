package table

import (
	"io"
	"strings"

	"github.com/grailbio/base/tsv"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

// AbundanceRow is one transcript of a pseudo-alignment abundance.tsv.
type AbundanceRow struct {
	TargetID  string  `tsv:"target_id"`
	Length    int64   `tsv:"length"`
	EffLength float64 `tsv:"eff_length"`
	EstCounts float64 `tsv:"est_counts"`
	TPM       float64 `tsv:"tpm"`
}

// ReadAbundance parses an abundance table. The header must name the five columns in order.
func ReadAbundance(r io.Reader) ([]AbundanceRow, error) {
	tr := newReader(r)
	tr.HasHeaderRow = true
	tr.ValidateHeader = true

	var rows []AbundanceRow
	for {
		var row AbundanceRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, zerr.With(zerr.Wrap(err, domain.ErrTableMalformed.Error()), "row", len(rows)+1)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteAbundance writes rows with a header derived from the column tags.
func WriteAbundance(w io.Writer, rows []AbundanceRow) error {
	rw := tsv.NewRowWriter(w)
	for i := range rows {
		if err := rw.Write(&rows[i]); err != nil {
			return zerr.Wrap(err, "failed to write abundance row")
		}
	}
	return rw.Flush()
}

// ReadAbundanceFile reads an abundance table from path.
func ReadAbundanceFile(path string) ([]AbundanceRow, error) {
	return readFile(path, ReadAbundance)
}

// ReadsPerGeneRow is one line of a STAR ReadsPerGene.out.tab file.
type ReadsPerGeneRow struct {
	GeneID     string
	Unstranded int64
	Forward    int64
	Reverse    int64
}

// Value returns the count for a ReadsPerGene column: 2 unstranded, 3 forward, 4 reverse.
func (r ReadsPerGeneRow) Value(column int) (int64, bool) {
	switch column {
	case 2:
		return r.Unstranded, true
	case 3:
		return r.Forward, true
	case 4:
		return r.Reverse, true
	}
	return 0, false
}

// ReadReadsPerGene parses a header-less ReadsPerGene table and drops the N_ summary rows
// (N_unmapped, N_multimapping, N_noFeature, N_ambiguous).
func ReadReadsPerGene(r io.Reader) ([]ReadsPerGeneRow, error) {
	tr := newReader(r)

	var rows []ReadsPerGeneRow
	line := 0
	for {
		var row ReadsPerGeneRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, zerr.With(zerr.Wrap(err, domain.ErrTableMalformed.Error()), "line", line+1)
		}
		line++
		if strings.HasPrefix(row.GeneID, "N_") {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadReadsPerGeneFile reads a ReadsPerGene table from path.
func ReadReadsPerGeneFile(path string) ([]ReadsPerGeneRow, error) {
	return readFile(path, ReadReadsPerGene)
}
