package dge

import (
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

// Test names.
const (
	TestWald = "wald"
	TestLRT  = "lrt"
)

// DefaultFormula models a single condition factor.
const DefaultFormula = "~condition"

// Options selects the model and test of a differential expression run.
type Options struct {
	Formula  string
	Contrast string
	Test     string
	Reduced  string
}

// Run estimates size factors and dispersions, fits the model and tests it.
// The contrast is required for the Wald test and optional for the LRT.
func Run(counts *domain.CountTable, design *domain.DesignTable, opts Options) ([]domain.DEResult, error) {
	if opts.Formula == "" {
		opts.Formula = DefaultFormula
	}
	if opts.Test == "" {
		opts.Test = TestWald
	}

	var contrast *Contrast
	if opts.Contrast != "" {
		c, err := ParseContrast(opts.Contrast)
		if err != nil {
			return nil, err
		}
		contrast = &c
	}

	switch opts.Test {
	case TestWald:
		if contrast == nil {
			return nil, zerr.With(domain.ErrInvalidContrast, "reason", "the wald test needs a contrast")
		}
	case TestLRT:
		if opts.Reduced == "" {
			return nil, zerr.With(domain.ErrInvalidFormula, "reason", "the lrt needs a reduced formula")
		}
	default:
		return nil, zerr.With(zerr.With(domain.ErrInvalidFormula, "test", opts.Test), "reason", "unknown test")
	}

	ds, err := NewDataset(counts, design, opts.Formula)
	if err != nil {
		return nil, err
	}
	if contrast != nil {
		if _, err := ds.model.contrastVector(*contrast, ds.levels); err != nil {
			return nil, err
		}
	}

	if ds, err = ds.EstimateSizeFactors(); err != nil {
		return nil, err
	}
	if ds, err = ds.EstimateDispersions(); err != nil {
		return nil, err
	}
	if ds, err = ds.FitGLM(); err != nil {
		return nil, err
	}

	if opts.Test == TestLRT {
		return ds.LRTest(opts.Reduced, contrast)
	}
	return ds.WaldTest(*contrast)
}
