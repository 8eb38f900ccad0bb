// Package table reads and writes the tab-separated tables exchanged between pipeline
// steps: count matrices, abundance estimates, design tables and test results.
package table

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/grailbio/base/tsv"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

// newReader returns a tab-separated reader. Quotes are literal field content,
// matching what tsv.Writer emits.
func newReader(r io.Reader) *tsv.Reader {
	tr := tsv.NewReader(r)
	tr.LazyQuotes = true
	return tr
}

// readRecords reads every row of a headed table. Rows must have as many fields as the header.
// Lines starting with comment are skipped when comment is non-zero.
func readRecords(r io.Reader, comment rune) (header []string, rows [][]string, err error) {
	tr := newReader(r)
	tr.Comment = comment
	tr.Reader.FieldsPerRecord = -1
	line := 0
	for {
		rec, err := tr.Reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, zerr.With(zerr.Wrap(err, domain.ErrTableMalformed.Error()), "line", line)
		}
		rec = slices.Clone(rec)
		if header == nil {
			header = rec
			continue
		}
		if len(rec) != len(header) {
			err := zerr.With(domain.ErrTableMalformed, "line", line)
			return nil, nil, zerr.With(err, "reason", "expected "+strconv.Itoa(len(header))+" fields, got "+strconv.Itoa(len(rec)))
		}
		rows = append(rows, rec)
	}
	if header == nil {
		return nil, nil, zerr.With(domain.ErrTableMalformed, "reason", "missing header row")
	}
	return header, rows, nil
}

func writeRow(w *tsv.Writer, fields ...string) error {
	for _, f := range fields {
		w.WriteString(f)
	}
	return w.EndLine()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string, line int, column string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		err := zerr.With(zerr.Wrap(err, domain.ErrTableMalformed.Error()), "line", line)
		return 0, zerr.With(err, "column", column)
	}
	return v, nil
}

// readFile opens path and hands it to read.
func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from task definitions
	if err != nil {
		var zero T
		return zero, zerr.With(zerr.Wrap(err, domain.ErrInputNotFound.Error()), "path", path)
	}
	defer func() { _ = f.Close() }()

	v, err := read(f)
	if err != nil {
		var zero T
		return zero, zerr.With(err, "path", path)
	}
	return v, nil
}

// WriteFile creates path, including its parent directory, and hands it to write.
func WriteFile(path string, write func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFailedToPrepareOutput.Error()), "path", path)
	}
	f, err := os.Create(path) //nolint:gosec // paths come from task definitions
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create table"), "path", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = zerr.With(zerr.Wrap(cerr, "failed to close table"), "path", path)
		}
	}()
	return write(f)
}
