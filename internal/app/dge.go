package app

import (
	"context"
	"fmt"
	"math"

	"go.trai.ch/rnaflow/internal/adapters/table" //nolint:depguard // Wired in app layer
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/rnaflow/internal/engine/dge"
	"go.trai.ch/zerr"
)

// DGEOptions configuration for the DGE method.
type DGEOptions struct {
	CountsPath string
	DesignPath string
	OutPath    string
	Formula    string
	// Contrast is "factor,numerator,denominator".
	Contrast string
	Test     string
	Reduced  string
	// Alpha is the adjusted p-value cutoff used for the summary.
	Alpha float64
}

// DGESummary describes the outcome of a differential expression run.
type DGESummary struct {
	Features    int
	Tested      int
	Significant int
}

// DGE runs the differential expression recipe on a count matrix and a design table
// and writes the result table.
func (a *App) DGE(_ context.Context, opts DGEOptions) (*DGESummary, error) {
	counts, err := table.ReadCountsFile(opts.CountsPath)
	if err != nil {
		return nil, zerr.With(err, "file", opts.CountsPath)
	}
	design, err := table.ReadDesignFile(opts.DesignPath)
	if err != nil {
		return nil, zerr.With(err, "file", opts.DesignPath)
	}

	results, err := dge.Run(counts, design, dge.Options{
		Formula:  opts.Formula,
		Contrast: opts.Contrast,
		Test:     opts.Test,
		Reduced:  opts.Reduced,
	})
	if err != nil {
		return nil, err
	}

	if err := table.WriteResultsFile(opts.OutPath, results); err != nil {
		return nil, zerr.With(err, "file", opts.OutPath)
	}

	alpha := opts.Alpha
	if alpha <= 0 {
		alpha = 0.05
	}
	summary := summarizeResults(results, alpha)
	a.logger.Info(fmt.Sprintf("%d features, %d tested, %d with padj < %g written to %s",
		summary.Features, summary.Tested, summary.Significant, alpha, opts.OutPath))
	return summary, nil
}

func summarizeResults(results []domain.DEResult, alpha float64) *DGESummary {
	s := &DGESummary{Features: len(results)}
	for _, r := range results {
		if math.IsNaN(r.PValue) {
			continue
		}
		s.Tested++
		if r.Padj < alpha {
			s.Significant++
		}
	}
	return s
}
