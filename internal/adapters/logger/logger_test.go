package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rnaflow/internal/adapters/logger"
	"go.trai.ch/zerr"
)

// newTestLogger creates a logger with an injected bytes.Buffer for isolated testing.
func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	lg := logger.New()
	lg.SetOutput(buf)
	return lg, buf
}

func TestLogger_InfoWarn(t *testing.T) {
	t.Run("info", func(t *testing.T) {
		lg, buf := newTestLogger(t)
		lg.Info("some message")
		goldie.New(t).Assert(t, "info_basic", buf.Bytes())
	})

	t.Run("warn", func(t *testing.T) {
		lg, buf := newTestLogger(t)
		lg.Warn("disk almost full")
		goldie.New(t).Assert(t, "warn_basic", buf.Bytes())
	})
}

func TestLogger_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		goldenName string
	}{
		{
			name: "chain with metadata",
			err: zerr.With(
				zerr.Wrap(zerr.With(zerr.New("command failed"), "exit_code", 1), "task execution failed"),
				"task", "align[sample=S1]",
			),
			goldenName: "error_chain",
		},
		{
			name: "joined run failures",
			err: errors.Join(
				zerr.New("pipeline execution failed"),
				zerr.With(
					zerr.With(zerr.New("command failed"), "command", "STAR --runThreadN 4"),
					"log_tail", "EXITING because of FATAL ERROR in input reads\nSolution: check the formatting of input read files\n",
				),
			),
			goldenName: "error_joined",
		},
		{
			name: "standard error cause",
			err: zerr.With(
				zerr.Wrap(errors.New("open raw/S9_1.fq.gz: no such file or directory"), "input not found"),
				"path", "raw/S9_1.fq.gz",
			),
			goldenName: "error_std_cause",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, buf := newTestLogger(t)
			lg.Error(tt.err)
			goldie.New(t).Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestLogger_Error_Nil(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Error(nil)
	assert.Empty(t, buf.String())
}

func TestLogger_Error_MetadataOnPlainError(t *testing.T) {
	err := zerr.With(errors.New("exit status 2"), "exit_code", 2)
	out := logger.FormatError(err)
	assert.Equal(t, "Error: exit status 2\n       exit_code: 2", out)
}

func TestLogger_JSON(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.SetJSON(true)

	lg.Info("starting")
	lg.Error(errors.Join(zerr.New("pipeline execution failed"), zerr.With(zerr.New("command failed"), "exit_code", 3)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "starting", first["msg"])

	var last map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &last))
	assert.Equal(t, "ERROR", last["level"])
	errGroup, ok := last["error"].(map[string]any)
	require.True(t, ok, "zerr errors log as a group")
	assert.Equal(t, "command failed", errGroup["msg"])
	assert.InDelta(t, 3, errGroup["exit_code"], 0)
}

func TestLogger_SetOutputKeepsMode(t *testing.T) {
	lg, _ := newTestLogger(t)
	lg.SetJSON(true)

	var next bytes.Buffer
	lg.SetOutput(&next)
	lg.Warn("careful")
	assert.True(t, strings.HasPrefix(next.String(), "{"), "JSON mode must survive SetOutput")
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("RNAFLOW_LOG_FORMAT", "JSON")

	lg := logger.NewFromEnv()
	var buf bytes.Buffer
	lg.SetOutput(&buf)
	lg.Info("loaded run configuration from config.yaml")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "loaded run configuration from config.yaml", record["msg"])
}
