package builtin_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rnaflow/internal/adapters/builtin"
	"go.trai.ch/rnaflow/internal/adapters/table"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/rnaflow/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
		require.NoError(t, os.WriteFile(path, []byte(content), domain.FilePerm))
	}
}

func rootEnv(root string) []string {
	return []string{domain.EnvThreads + "=2", domain.EnvRoot + "=" + root}
}

func run(t *testing.T, task *domain.Task, root string) (string, error) {
	t.Helper()
	ctrl := gomock.NewController(t)
	exec := builtin.NewExecutor(mocks.NewMockExecutor(ctrl))
	var stdout, stderr bytes.Buffer
	err := exec.Execute(context.Background(), task, rootEnv(root), &stdout, &stderr)
	return stdout.String() + stderr.String(), err
}

func TestExecutor_DelegatesShellTasks(t *testing.T) {
	ctrl := gomock.NewController(t)
	shell := mocks.NewMockExecutor(ctrl)
	exec := builtin.NewExecutor(shell)

	task := &domain.Task{Name: domain.NewInternedString("trim[sample=S1]"), Command: []string{"cutadapt"}}
	env := rootEnv("/work")
	var stdout, stderr bytes.Buffer
	shell.EXPECT().Execute(gomock.Any(), task, env, &stdout, &stderr).Return(nil)

	require.NoError(t, exec.Execute(context.Background(), task, env, &stdout, &stderr))
}

func TestExecutor_UnknownBuiltin(t *testing.T) {
	_, err := run(t, &domain.Task{Builtin: "featurecounts"}, t.TempDir())
	require.ErrorContains(t, err, domain.ErrUnknownBuiltin.Error())
}

func TestReadQC(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"raw/S1_1.fq": "@r1/1 1:N:0:ATCACG\nACGT\n+\nIIII\n@r2/1\nACG\n+\n5?5\n",
		"raw/S1_2.fq": "@r1/2 2:N:0:ATCACG\nTTTT\n+\n????\n@r2/2\nTT\n+\nII\n",
	})
	task := &domain.Task{
		Name:      domain.NewInternedString("readqc[sample=S1]"),
		Builtin:   domain.BuiltinReadQC,
		Wildcards: []domain.Wildcard{{Name: "sample", Value: "S1"}},
		NamedInputs: []domain.NamedPaths{
			{Name: "r1", Paths: []string{"raw/S1_1.fq"}},
			{Name: "r2", Paths: []string{"raw/S1_2.fq"}},
		},
		NamedOutputs: []domain.NamedPaths{{Name: "report", Paths: []string{"qc/S1.tsv"}}},
	}

	logs, err := run(t, task, root)
	require.NoError(t, err)
	assert.Contains(t, logs, "S1: 2 read pairs")

	got, err := os.ReadFile(filepath.Join(root, "qc", "S1.tsv"))
	require.NoError(t, err)
	assert.Equal(t,
		"sample\tmate\treads\tbases\tmean_length\tmean_quality\tq30_fraction\n"+
			"S1\tR1\t2\t7\t3.50\t32.86\t0.7143\n"+
			"S1\tR2\t2\t6\t3.00\t33.33\t1.0000\n",
		string(got))
}

func TestReadQC_Discordant(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"S1_1.fq": "@r1/1\nACGT\n+\nIIII\n",
		"S1_2.fq": "@r9/2\nACGT\n+\nIIII\n",
	})
	task := &domain.Task{
		Builtin: domain.BuiltinReadQC,
		NamedInputs: []domain.NamedPaths{
			{Name: "r1", Paths: []string{"S1_1.fq"}, Labels: []string{"S1"}},
			{Name: "r2", Paths: []string{"S1_2.fq"}, Labels: []string{"S1"}},
		},
		NamedOutputs: []domain.NamedPaths{{Name: "report", Paths: []string{"qc.tsv"}}},
	}

	logs, err := run(t, task, root)
	require.ErrorContains(t, err, domain.ErrCommandFailed.Error())
	require.ErrorContains(t, err, domain.ErrReadsDiscordant.Error())
	assert.Contains(t, logs, "readqc: ")
	assert.NoFileExists(t, filepath.Join(root, "qc.tsv"))
}

func TestCountMatrix(t *testing.T) {
	root := t.TempDir()
	summary := "N_unmapped\t10\t10\t10\nN_multimapping\t5\t5\t5\nN_noFeature\t1\t2\t3\nN_ambiguous\t0\t0\t0\n"
	writeFiles(t, root, map[string]string{
		"star/S1/ReadsPerGene.out.tab": summary + "g1\t14\t1\t13\ng2\t0\t0\t0\n",
		"star/S2/ReadsPerGene.out.tab": summary + "g1\t20\t2\t18\ng2\t7\t6\t1\n",
	})
	task := &domain.Task{
		Builtin: domain.BuiltinCountMatrix,
		NamedInputs: []domain.NamedPaths{{
			Name:   "tables",
			Paths:  []string{"star/S1/ReadsPerGene.out.tab", "star/S2/ReadsPerGene.out.tab"},
			Labels: []string{"S1", "S2"},
		}},
		NamedOutputs: []domain.NamedPaths{{Name: "matrix", Paths: []string{"counts.tsv"}}},
		Params:       map[string]string{"column": "4"},
	}

	logs, err := run(t, task, root)
	require.NoError(t, err)
	assert.Contains(t, logs, "2 features x 2 samples")

	matrix, err := table.ReadCountsFile(filepath.Join(root, "counts.tsv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, matrix.Samples)
	assert.Equal(t, []string{"g1", "g2"}, matrix.FeatureIDs)
	assert.Equal(t, [][]float64{{13, 18}, {0, 1}}, matrix.Counts)
}

func TestCountMatrix_Errors(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"S1.tab": "g1\t1\t1\t1\n",
		"S2.tab": "g2\t1\t1\t1\n",
	})
	task := func(params map[string]string) *domain.Task {
		return &domain.Task{
			Builtin: domain.BuiltinCountMatrix,
			NamedInputs: []domain.NamedPaths{
				{Name: "tables", Paths: []string{"S1.tab", "S2.tab"}, Labels: []string{"S1", "S2"}},
			},
			NamedOutputs: []domain.NamedPaths{{Name: "matrix", Paths: []string{"counts.tsv"}}},
			Params:       params,
		}
	}

	_, err := run(t, task(map[string]string{"column": "7"}), root)
	require.ErrorContains(t, err, domain.ErrInvalidRule.Error())

	_, err = run(t, task(nil), root)
	require.ErrorContains(t, err, domain.ErrSampleMismatch.Error())

	_, err = run(t, &domain.Task{Builtin: domain.BuiltinCountMatrix}, root)
	require.ErrorContains(t, err, domain.ErrInvalidRule.Error())
}

func TestAbundanceMatrix(t *testing.T) {
	root := t.TempDir()
	header := "target_id\tlength\teff_length\test_counts\ttpm\n"
	writeFiles(t, root, map[string]string{
		"quant/S1/abundance.tsv": header + "t1\t1657\t1458.5\t12.5\t3.25\nt2\t632\t433.5\t0\t0\n",
		"quant/S2/abundance.tsv": header + "t1\t1657\t1458.5\t9.2\t2.1\nt2\t632\t433.5\t3.7\t1.5\n",
	})
	task := &domain.Task{
		Builtin: domain.BuiltinAbundanceMatrix,
		NamedInputs: []domain.NamedPaths{{
			Name:   "tables",
			Paths:  []string{"quant/S1/abundance.tsv", "quant/S2/abundance.tsv"},
			Labels: []string{"S1", "S2"},
		}},
		NamedOutputs: []domain.NamedPaths{{Name: "matrix", Paths: []string{"tx_counts.tsv"}}},
	}

	_, err := run(t, task, root)
	require.NoError(t, err)

	matrix, err := table.ReadCountsFile(filepath.Join(root, "tx_counts.tsv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, matrix.FeatureIDs)
	assert.Equal(t, [][]float64{{13, 9}, {0, 4}}, matrix.Counts)
}

func deseqFixture(t *testing.T, root string) {
	t.Helper()
	counts := &domain.CountTable{Samples: []string{"ctrl_1", "ctrl_2", "kd_1", "kd_2"}}
	for i := range 12 {
		base := float64(200 + 37*i)
		counts.FeatureIDs = append(counts.FeatureIDs, fmt.Sprintf("g%02d", i))
		counts.Counts = append(counts.Counts, []float64{base + 11, base - 9, base - 7, base + 13})
	}
	counts.FeatureIDs = append(counts.FeatureIDs, "g_up")
	counts.Counts = append(counts.Counts, []float64{500, 540, 2100, 1980})
	require.NoError(t, table.WriteCountsFile(filepath.Join(root, "counts.tsv"), counts))

	writeFiles(t, root, map[string]string{
		"design.tsv": "sample\tcondition\nkd_1\tkd\nctrl_1\tctrl\nkd_2\tkd\nctrl_2\tctrl\n",
	})
}

func TestDESeq(t *testing.T) {
	root := t.TempDir()
	deseqFixture(t, root)
	task := &domain.Task{
		Builtin: domain.BuiltinDESeq,
		NamedInputs: []domain.NamedPaths{
			{Name: "counts", Paths: []string{"counts.tsv"}},
			{Name: "design", Paths: []string{"design.tsv"}},
		},
		NamedOutputs: []domain.NamedPaths{{Name: "results", Paths: []string{"de/kd_vs_ctrl.tsv"}}},
		Params:       map[string]string{"contrast": "condition,kd,ctrl"},
	}

	logs, err := run(t, task, root)
	require.NoError(t, err)
	assert.Contains(t, logs, "13 features tested")

	results, err := table.ReadResultsFile(filepath.Join(root, "de", "kd_vs_ctrl.tsv"))
	require.NoError(t, err)
	require.Len(t, results, 13)
	assert.Equal(t, "g_up", results[12].FeatureID)
	assert.Greater(t, results[12].Log2FoldChange, 1.5)
}

func TestDESeq_MissingContrast(t *testing.T) {
	root := t.TempDir()
	deseqFixture(t, root)
	task := &domain.Task{
		Builtin: domain.BuiltinDESeq,
		NamedInputs: []domain.NamedPaths{
			{Name: "counts", Paths: []string{"counts.tsv"}},
			{Name: "design", Paths: []string{"design.tsv"}},
		},
		NamedOutputs: []domain.NamedPaths{{Name: "results", Paths: []string{"de.tsv"}}},
	}

	logs, err := run(t, task, root)
	require.ErrorContains(t, err, domain.ErrInvalidContrast.Error())
	assert.Contains(t, logs, "deseq: ")
}
