package table

import (
	"io"

	"github.com/grailbio/base/tsv"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

// ResultColumns is the header of a differential expression result table.
var ResultColumns = []string{"feature_id", "baseMean", "log2FoldChange", "lfcSE", "stat", "pvalue", "padj"}

// ReadResults parses a result table.
func ReadResults(r io.Reader) ([]domain.DEResult, error) {
	tr := newReader(r)
	tr.HasHeaderRow = true
	tr.ValidateHeader = true

	var rows []domain.DEResult
	for {
		var row domain.DEResult
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

// WriteResults writes a result table. NaN statistics are written as "NaN".
func WriteResults(w io.Writer, rows []domain.DEResult) error {
	tw := tsv.NewWriter(w)
	if err := writeRow(tw, ResultColumns...); err != nil {
		return err
	}
	for _, r := range rows {
		err := writeRow(tw, r.FeatureID,
			formatFloat(r.BaseMean),
			formatFloat(r.Log2FoldChange),
			formatFloat(r.LfcSE),
			formatFloat(r.Stat),
			formatFloat(r.PValue),
			formatFloat(r.Padj),
		)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteResultsFile writes a result table to path.
func WriteResultsFile(path string, rows []domain.DEResult) error {
	return WriteFile(path, func(w io.Writer) error { return WriteResults(w, rows) })
}

// ReadResultsFile reads a result table from path.
func ReadResultsFile(path string) ([]domain.DEResult, error) {
	return readFile(path, ReadResults)
}
