package domain

import "path/filepath"

const (
	// StateDirName is the name of the internal state directory inside the working directory.
	StateDirName = ".rnaflow"

	// StoreDirName is the name of the run record store directory.
	StoreDirName = "records"

	// LogDirName is the name of the directory holding logs of tasks without a declared log.
	LogDirName = "logs"

	// PipelineFileName is the default name of the pipeline definition file.
	PipelineFileName = "rnaflow.yaml"

	// RunConfigFileName is the default name of the run configuration file.
	RunConfigFileName = "config.yaml"

	// EnvPrefix prefixes environment variables that override run configuration keys.
	EnvPrefix = "RNAFLOW"

	// EnvThreads carries the number of threads granted to a task.
	EnvThreads = "THREADS"

	// EnvRunID carries the id of the current attempt of a task.
	EnvRunID = "RNAFLOW_RUN_ID"

	// EnvRoot carries the absolute working directory that task paths are relative to.
	EnvRoot = "RNAFLOW_ROOT"

	// EnvLogFormat selects the log format of the process: "json" or "pretty".
	EnvLogFormat = "RNAFLOW_LOG_FORMAT"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultStatePath returns the default root directory for rnaflow metadata.
func DefaultStatePath() string {
	return StateDirName
}

// DefaultStorePath returns the default path for the run record store.
// It joins .rnaflow and records.
func DefaultStorePath() string {
	return filepath.Join(StateDirName, StoreDirName)
}

// DefaultLogPath returns the log file used for a task that declares none.
// It joins .rnaflow, logs and a file name derived from the task name.
func DefaultLogPath(taskName string) string {
	return filepath.Join(StateDirName, LogDirName, SafeFileName(taskName)+".log")
}

// SafeFileName replaces characters of a task name that are awkward in file names.
func SafeFileName(name string) string {
	b := []byte(name)
	for i, c := range b {
		switch c {
		case '/', '\\', '[', ']', '=', ',', ' ', ':':
			b[i] = '_'
		}
	}
	return string(b)
}
