package fs_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rnaflow/internal/adapters/fs"
	"go.trai.ch/rnaflow/internal/core/domain"
)

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte(content), domain.FilePerm))
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func TestHasher_Fingerprint(t *testing.T) {
	base := func() *domain.Task {
		return &domain.Task{
			Name:        domain.NewInternedString("trim[sample=S1]"),
			Command:     []string{"sh", "-c", "cutadapt -q 20 S1.fq > S1.trim.fq"},
			Inputs:      domain.NewInternedStrings([]string{"S1.fq"}),
			Outputs:     domain.NewInternedStrings([]string{"S1.trim.fq"}),
			Threads:     4,
			Environment: map[string]string{"A": "1", "B": "2"},
			Params:      map[string]string{"quality": "20"},
		}
	}

	hasher := fs.NewHasher()
	want, err := hasher.Fingerprint(base())
	require.NoError(t, err)
	assert.Len(t, want, 16)

	t.Run("Stable", func(t *testing.T) {
		got, err := hasher.Fingerprint(base())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("Threads And Log Ignored", func(t *testing.T) {
		task := base()
		task.Threads = 16
		task.Log = domain.NewInternedString("logs/trim.log")
		got, err := hasher.Fingerprint(task)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	changes := map[string]func(*domain.Task){
		"Command": func(task *domain.Task) { task.Command[2] = "cutadapt -q 30 S1.fq > S1.trim.fq" },
		"Inputs":  func(task *domain.Task) { task.Inputs = domain.NewInternedStrings([]string{"S2.fq"}) },
		"Outputs": func(task *domain.Task) { task.Outputs = domain.NewInternedStrings([]string{"x.fq"}) },
		"Env":     func(task *domain.Task) { task.Environment["B"] = "3" },
		"Params":  func(task *domain.Task) { task.Params["quality"] = "30" },
		"Builtin": func(task *domain.Task) { task.Builtin = "readqc" },
		"Checks":  func(task *domain.Task) { task.Checks = []string{"bam_sorted"} },
		"WorkDir": func(task *domain.Task) { task.WorkingDir = domain.NewInternedString("results") },
	}
	for name, change := range changes {
		t.Run(name, func(t *testing.T) {
			task := base()
			change(task)
			got, err := hasher.Fingerprint(task)
			require.NoError(t, err)
			assert.NotEqual(t, want, got)
		})
	}
}

func TestVerifier_MissingOutputs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "results", "a.tsv"), "a", time.Time{})

	v := fs.NewVerifier(fs.NewWalker())
	missing, err := v.MissingOutputs(root, []string{"results/a.tsv", "results/b.tsv"})
	require.NoError(t, err)
	assert.Equal(t, []string{"results/b.tsv"}, missing)
}

func TestVerifier_ModTimes(t *testing.T) {
	root := t.TempDir()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	writeFile(t, filepath.Join(root, "a.txt"), "a", t0)
	writeFile(t, filepath.Join(root, "b.txt"), "b", t0.Add(time.Hour))
	writeFile(t, filepath.Join(root, "index", "SA"), "sa", t0.Add(3*time.Hour))
	writeFile(t, filepath.Join(root, "index", "Genome"), "g", t0.Add(2*time.Hour))

	v := fs.NewVerifier(fs.NewWalker())

	newest, err := v.NewestModTime(root, []string{"a.txt", "b.txt", "index"})
	require.NoError(t, err)
	assert.True(t, newest.Equal(t0.Add(3*time.Hour)), "newest = %v", newest)

	oldest, err := v.OldestModTime(root, []string{"b.txt", "index"})
	require.NoError(t, err)
	assert.True(t, oldest.Equal(t0.Add(time.Hour)), "oldest = %v", oldest)

	_, err = v.OldestModTime(root, []string{"missing.txt"})
	require.ErrorContains(t, err, domain.ErrPathStatFailed.Error())
}

func TestResolver_ResolveInputs(t *testing.T) {
	root := t.TempDir()
	ref := t.TempDir()
	writeFile(t, filepath.Join(root, "raw", "S1_1.fq"), "", time.Time{})
	writeFile(t, filepath.Join(root, "raw", "S1_2.fq"), "", time.Time{})
	writeFile(t, filepath.Join(ref, "genome.fa"), "", time.Time{})

	r := fs.NewResolver()

	got, err := r.ResolveInputs([]string{"raw/*.fq", "raw/S1_1.fq", filepath.Join(ref, "genome.fa")}, root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "raw", "S1_1.fq"),
		filepath.Join(root, "raw", "S1_2.fq"),
		filepath.Join(ref, "genome.fa"),
	}, sortedCopy(got))

	_, err = r.ResolveInputs([]string{"raw/S2_1.fq"}, root)
	require.ErrorContains(t, err, domain.ErrInputNotFound.Error())
}

func TestWalker_SkipsStateDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "out", "a.txt"), "", time.Time{})
	writeFile(t, filepath.Join(root, ".rnaflow", "records", "x.json"), "", time.Time{})
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "", time.Time{})

	var files []string
	for path := range fs.NewWalker().WalkFiles(root) {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		files = append(files, rel)
	}
	assert.Equal(t, []string{filepath.Join("out", "a.txt")}, files)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	slices.Sort(out)
	return out
}
