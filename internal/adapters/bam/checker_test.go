package bam_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rbam "go.trai.ch/rnaflow/internal/adapters/bam"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

func writeBAM(t *testing.T, headerText string) string {
	t.Helper()
	header, err := sam.NewHeader([]byte(headerText), nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "Aligned.sortedByCoord.out.bam")
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := bam.NewWriter(f, header, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestChecker_Sorted(t *testing.T) {
	path := writeBAM(t, "@HD\tVN:1.3\tSO:coordinate\n@SQ\tSN:chr1\tLN:1000\n")

	require.NoError(t, rbam.NewChecker().Check(context.Background(), domain.CheckBAM, path))
}

func TestChecker_Unsorted(t *testing.T) {
	path := writeBAM(t, "@HD\tVN:1.3\tSO:queryname\n@SQ\tSN:chr1\tLN:1000\n")

	err := rbam.NewChecker().Check(context.Background(), domain.CheckBAM, path)
	require.ErrorContains(t, err, domain.ErrOutputCheckFailed.Error())

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	assert.Equal(t, "queryname", zErr.Metadata()["sort_order"])
	assert.Equal(t, path, zErr.Metadata()["path"])
}

func TestChecker_NotBAM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.bam")
	require.NoError(t, os.WriteFile(path, []byte("STAR crashed before writing"), domain.FilePerm))

	err := rbam.NewChecker().Check(context.Background(), domain.CheckBAM, path)
	require.ErrorContains(t, err, domain.ErrOutputCheckFailed.Error())
}

func TestChecker_SkipsOtherFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Log.final.out")
	require.NoError(t, os.WriteFile(path, []byte("not an alignment"), domain.FilePerm))

	require.NoError(t, rbam.NewChecker().Check(context.Background(), domain.CheckBAM, path))
}

func TestChecker_UnknownCheck(t *testing.T) {
	err := rbam.NewChecker().Check(context.Background(), "cram", "x.cram")
	require.ErrorContains(t, err, domain.ErrUnknownCheck.Error())
}
