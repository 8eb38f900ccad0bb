// Package bam validates alignment outputs.
package bam

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/rnaflow/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.OutputChecker = (*Checker)(nil)

// Checker implements ports.OutputChecker for alignment files.
type Checker struct{}

// NewChecker creates a new Checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check runs the named check against path. The bam check applies to files ending in .bam.
func (c *Checker) Check(ctx context.Context, check, path string) error {
	if check != domain.CheckBAM {
		return zerr.With(domain.ErrUnknownCheck, "check", check)
	}
	if !strings.EqualFold(filepath.Ext(path), ".bam") {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return checkSorted(path)
}

// checkSorted decodes the header and the first record of a BAM file and requires a
// coordinate sort order.
func checkSorted(path string) error {
	f, err := os.Open(path) //nolint:gosec // paths come from task definitions
	if err != nil {
		return fail(path, zerr.Wrap(err, "failed to open BAM"))
	}
	defer func() { _ = f.Close() }()

	r, err := bam.NewReader(f, 1)
	if err != nil {
		return fail(path, zerr.Wrap(err, "not a BAM file"))
	}
	defer func() { _ = r.Close() }()

	if order := r.Header().SortOrder; order != sam.Coordinate {
		return zerr.With(fail(path, zerr.New("BAM is not coordinate-sorted")), "sort_order", order.String())
	}

	if _, err := r.Read(); err != nil && err != io.EOF {
		return fail(path, zerr.Wrap(err, "failed to decode BAM record"))
	}
	return nil
}

func fail(path string, cause error) error {
	err := zerr.Wrap(cause, domain.ErrOutputCheckFailed.Error())
	err = zerr.With(err, "check", domain.CheckBAM)
	return zerr.With(err, "path", path)
}
