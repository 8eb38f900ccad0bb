package table_test

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rnaflow/internal/adapters/table"
	"go.trai.ch/rnaflow/internal/core/domain"
)

func TestCounts_RoundTrip(t *testing.T) {
	in := &domain.CountTable{
		FeatureIDs: []string{"ENSG00000000003", "ENSG00000000005", "ENSG00000000419"},
		Samples:    []string{"kd_1", "ctrl_1", "ctrl_2"},
		Counts: [][]float64{
			{679, 448, 873},
			{0, 0, 0},
			{467, 515, 621},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, table.WriteCounts(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "feature_id\tkd_1\tctrl_1\tctrl_2\nENSG00000000003\t679\t448\t873\n"))

	out, err := table.ReadCounts(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	col, ok := out.Column("ctrl_1")
	require.True(t, ok)
	assert.Equal(t, []float64{448, 0, 515}, col)
	_, ok = out.Column("ctrl_3")
	assert.False(t, ok)
}

func TestCounts_RoundTrip_UnusualIDs(t *testing.T) {
	in := &domain.CountTable{
		FeatureIDs: []string{"#hash_gene", `gene"quoted`, "plain"},
		Samples:    []string{"S1"},
		Counts:     [][]float64{{1}, {2}, {3}},
	}

	var buf bytes.Buffer
	require.NoError(t, table.WriteCounts(&buf, in))
	out, err := table.ReadCounts(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCounts_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "counts.tsv")
	in := &domain.CountTable{
		FeatureIDs: []string{"g1"},
		Samples:    []string{"S1"},
		Counts:     [][]float64{{12.5}},
	}
	require.NoError(t, table.WriteCountsFile(path, in))

	out, err := table.ReadCountsFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = table.ReadCountsFile(filepath.Join(t.TempDir(), "missing.tsv"))
	require.ErrorContains(t, err, domain.ErrInputNotFound.Error())
}

func TestCounts_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "Empty", input: ""},
		{name: "Only Feature Column", input: "feature_id\ng1\n"},
		{name: "Ragged Row", input: "feature_id\tS1\tS2\ng1\t1\n"},
		{name: "Non Numeric", input: "feature_id\tS1\ng1\tlots\n"},
		{name: "Duplicate Sample", input: "feature_id\tS1\tS1\ng1\t1\t2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.ReadCounts(strings.NewReader(tt.input))
			require.ErrorContains(t, err, domain.ErrTableMalformed.Error())
		})
	}
}

func TestMergeColumns(t *testing.T) {
	merged, err := table.MergeColumns(
		[]string{"S1", "S2"},
		[][]string{{"g1", "g2"}, {"g2", "g1"}},
		[][]float64{{10, 20}, {21, 11}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, merged.FeatureIDs)
	assert.Equal(t, [][]float64{{10, 11}, {20, 21}}, merged.Counts)

	_, err = table.MergeColumns(
		[]string{"S1", "S2"},
		[][]string{{"g1", "g2"}, {"g1", "g3"}},
		[][]float64{{1, 2}, {1, 2}},
	)
	require.ErrorContains(t, err, domain.ErrSampleMismatch.Error())

	_, err = table.MergeColumns(
		[]string{"S1", "S2"},
		[][]string{{"g1", "g2"}, {"g1"}},
		[][]float64{{1, 2}, {1}},
	)
	require.ErrorContains(t, err, domain.ErrSampleMismatch.Error())
}

func TestDesign_RoundTrip(t *testing.T) {
	in := &domain.DesignTable{
		Samples: []string{"ctrl_1", "ctrl_2", "kd_1", "kd_2"},
		Factors: []string{"condition", "batch"},
		Levels: [][]string{
			{"control", "control", "knockdown", "knockdown"},
			{"a", "b", "a", "b"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, table.WriteDesign(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "sample\tcondition\tbatch\nctrl_1\tcontrol\ta\n"))

	out, err := table.ReadDesign(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	levels, ok := out.Factor("batch")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "a", "b"}, levels)
}

func TestDesign_Malformed(t *testing.T) {
	_, err := table.ReadDesign(strings.NewReader("name\tcondition\nS1\tA\n"))
	require.ErrorContains(t, err, domain.ErrTableMalformed.Error())

	_, err = table.ReadDesign(strings.NewReader("sample\tcondition\nS1\tA\nS1\tB\n"))
	require.ErrorContains(t, err, domain.ErrTableMalformed.Error())
}

func TestDesign_Comments(t *testing.T) {
	d, err := table.ReadDesign(strings.NewReader("# exported from LIMS\nsample\tcondition\nS1\tA\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, d.Samples)
}

func TestResults_RoundTrip(t *testing.T) {
	in := []domain.DEResult{
		{FeatureID: "g1", BaseMean: 812.25, Log2FoldChange: 2.0000001, LfcSE: 0.125, Stat: 16.0000008, PValue: 1.2e-57, Padj: 3.6e-57},
		{FeatureID: "g2", BaseMean: 0, Log2FoldChange: math.NaN(), LfcSE: math.NaN(), Stat: math.NaN(), PValue: math.NaN(), Padj: math.NaN()},
	}

	var buf bytes.Buffer
	require.NoError(t, table.WriteResults(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "feature_id\tbaseMean\tlog2FoldChange\tlfcSE\tstat\tpvalue\tpadj\n"))
	assert.Contains(t, buf.String(), "g2\t0\tNaN\tNaN\tNaN\tNaN\tNaN\n")

	out, err := table.ReadResults(&buf)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, "g2", out[1].FeatureID)
	assert.True(t, math.IsNaN(out[1].Padj))
}

func TestResults_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "de", "results.tsv")
	rows := []domain.DEResult{{FeatureID: "g1", BaseMean: 1, Log2FoldChange: 0.5, LfcSE: 0.25, Stat: 2, PValue: 0.05, Padj: 0.1}}
	require.NoError(t, table.WriteResultsFile(path, rows))

	out, err := table.ReadResultsFile(path)
	require.NoError(t, err)
	assert.Equal(t, rows, out)
}

func TestAbundance_Read(t *testing.T) {
	input := "target_id\tlength\teff_length\test_counts\ttpm\n" +
		"ENST00000456328.2\t1657\t1458.5\t12.5\t3.25\n" +
		"ENST00000450305.2\t632\t433.5\t0\t0\n"

	rows, err := table.ReadAbundance(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []table.AbundanceRow{
		{TargetID: "ENST00000456328.2", Length: 1657, EffLength: 1458.5, EstCounts: 12.5, TPM: 3.25},
		{TargetID: "ENST00000450305.2", Length: 632, EffLength: 433.5, EstCounts: 0, TPM: 0},
	}, rows)

	var buf bytes.Buffer
	require.NoError(t, table.WriteAbundance(&buf, rows))
	again, err := table.ReadAbundance(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, again)
}

func TestAbundance_WrongHeader(t *testing.T) {
	_, err := table.ReadAbundance(strings.NewReader("target\tlength\teff_length\test_counts\ttpm\nt1\t1\t1\t1\t1\n"))
	require.ErrorContains(t, err, domain.ErrTableMalformed.Error())
}

func TestReadsPerGene(t *testing.T) {
	input := "N_unmapped\t1200\t1200\t1200\n" +
		"N_multimapping\t300\t300\t300\n" +
		"N_noFeature\t90\t2100\t95\n" +
		"N_ambiguous\t40\t2\t3\n" +
		"ENSG00000223972\t0\t0\t0\n" +
		"ENSG00000227232\t14\t1\t13\n"

	rows, err := table.ReadReadsPerGene(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, table.ReadsPerGeneRow{GeneID: "ENSG00000227232", Unstranded: 14, Forward: 1, Reverse: 13}, rows[1])

	for column, want := range map[int]int64{2: 14, 3: 1, 4: 13} {
		v, ok := rows[1].Value(column)
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	_, ok := rows[1].Value(5)
	assert.False(t, ok)

	_, err = table.ReadReadsPerGene(strings.NewReader("g1\tmany\t0\t0\n"))
	require.ErrorContains(t, err, domain.ErrTableMalformed.Error())
}
