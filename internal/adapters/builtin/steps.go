package builtin

import (
	"context"
	"io"
	"math"
	"strconv"

	"go.trai.ch/rnaflow/internal/adapters/fastq"
	"go.trai.ch/rnaflow/internal/adapters/table"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/rnaflow/internal/engine/dge"
	"go.trai.ch/zerr"
)

// significance is the adjusted p-value cutoff reported in the deseq summary line.
const significance = 0.05

// readQC checks paired FASTQ files and writes one report row per sample and mate.
// Inputs: r1, r2. Output: report.
func readQC(ctx context.Context, req *request) error {
	r1, samples, err := req.input("r1")
	if err != nil {
		return err
	}
	r2, _, err := req.input("r2")
	if err != nil {
		return err
	}
	if len(r1) != len(r2) {
		err := zerr.With(domain.ErrReadsDiscordant, "r1_files", len(r1))
		return zerr.With(err, "r2_files", len(r2))
	}
	out, err := req.output("report")
	if err != nil {
		return err
	}

	reports := make([]fastq.Report, len(r1))
	for i := range r1 {
		if reports[i], err = fastq.QCFiles(ctx, r1[i], r2[i]); err != nil {
			return zerr.With(err, "sample", samples[i])
		}
		req.logf("%s: %d read pairs, mean quality %.2f/%.2f",
			samples[i], reports[i].R1.Reads, reports[i].R1.MeanQuality, reports[i].R2.MeanQuality)
	}
	return table.WriteFile(out, func(w io.Writer) error {
		return fastq.WriteReports(w, samples, reports)
	})
}

// countMatrix merges per-sample ReadsPerGene tables into a count matrix.
// Input: tables. Output: matrix. Param column selects 2 (unstranded), 3 or 4.
func countMatrix(_ context.Context, req *request) error {
	paths, samples, err := req.input("tables")
	if err != nil {
		return err
	}
	out, err := req.output("matrix")
	if err != nil {
		return err
	}
	column, err := strconv.Atoi(req.param("column", "2"))
	if err != nil || column < 2 || column > 4 {
		return zerr.With(zerr.With(domain.ErrInvalidRule, "param", "column"), "value", req.param("column", "2"))
	}

	features := make([][]string, len(paths))
	values := make([][]float64, len(paths))
	for j, p := range paths {
		rows, err := table.ReadReadsPerGeneFile(p)
		if err != nil {
			return zerr.With(err, "sample", samples[j])
		}
		for _, row := range rows {
			v, _ := row.Value(column)
			features[j] = append(features[j], row.GeneID)
			values[j] = append(values[j], float64(v))
		}
	}

	matrix, err := table.MergeColumns(samples, features, values)
	if err != nil {
		return err
	}
	req.logf("%d features x %d samples", len(matrix.FeatureIDs), len(matrix.Samples))
	return table.WriteCountsFile(out, matrix)
}

// abundanceMatrix merges per-sample abundance tables into a matrix of estimated counts
// rounded to integers. Input: tables. Output: matrix.
func abundanceMatrix(_ context.Context, req *request) error {
	paths, samples, err := req.input("tables")
	if err != nil {
		return err
	}
	out, err := req.output("matrix")
	if err != nil {
		return err
	}

	features := make([][]string, len(paths))
	values := make([][]float64, len(paths))
	for j, p := range paths {
		rows, err := table.ReadAbundanceFile(p)
		if err != nil {
			return zerr.With(err, "sample", samples[j])
		}
		for _, row := range rows {
			features[j] = append(features[j], row.TargetID)
			values[j] = append(values[j], math.Round(row.EstCounts))
		}
	}

	matrix, err := table.MergeColumns(samples, features, values)
	if err != nil {
		return err
	}
	req.logf("%d transcripts x %d samples", len(matrix.FeatureIDs), len(matrix.Samples))
	return table.WriteCountsFile(out, matrix)
}

// deseq runs the differential expression recipe. Inputs: counts, design.
// Output: results. Params: formula, contrast, test, reduced.
func deseq(_ context.Context, req *request) error {
	countPaths, _, err := req.input("counts")
	if err != nil {
		return err
	}
	designPaths, _, err := req.input("design")
	if err != nil {
		return err
	}
	out, err := req.output("results")
	if err != nil {
		return err
	}

	counts, err := table.ReadCountsFile(countPaths[0])
	if err != nil {
		return err
	}
	design, err := table.ReadDesignFile(designPaths[0])
	if err != nil {
		return err
	}

	results, err := dge.Run(counts, design, dge.Options{
		Formula:  req.param("formula", dge.DefaultFormula),
		Contrast: req.param("contrast", ""),
		Test:     req.param("test", dge.TestWald),
		Reduced:  req.param("reduced", ""),
	})
	if err != nil {
		return err
	}

	significant := 0
	for _, r := range results {
		if r.Padj < significance {
			significant++
		}
	}
	req.logf("%d features tested, %d with padj < %g", len(results), significant, significance)
	return table.WriteResultsFile(out, results)
}
