package fastq

import (
	"io"
	"strconv"

	"github.com/grailbio/base/tsv"
)

// ReportColumns is the header of a read QC table.
var ReportColumns = []string{"sample", "mate", "reads", "bases", "mean_length", "mean_quality", "q30_fraction"}

// WriteReports writes one row per sample and mate, in the order given.
func WriteReports(w io.Writer, samples []string, reports []Report) error {
	tw := tsv.NewWriter(w)
	for _, col := range ReportColumns {
		tw.WriteString(col)
	}
	if err := tw.EndLine(); err != nil {
		return err
	}
	for i, sample := range samples {
		for _, mate := range []struct {
			name  string
			stats MateStats
		}{{"R1", reports[i].R1}, {"R2", reports[i].R2}} {
			tw.WriteString(sample)
			tw.WriteString(mate.name)
			tw.WriteString(strconv.FormatInt(mate.stats.Reads, 10))
			tw.WriteString(strconv.FormatInt(mate.stats.Bases, 10))
			tw.WriteString(strconv.FormatFloat(mate.stats.MeanLength, 'f', 2, 64))
			tw.WriteString(strconv.FormatFloat(mate.stats.MeanQuality, 'f', 2, 64))
			tw.WriteString(strconv.FormatFloat(mate.stats.Q30Fraction, 'f', 4, 64))
			if err := tw.EndLine(); err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}
