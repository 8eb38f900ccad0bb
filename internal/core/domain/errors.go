package domain

import "go.trai.ch/zerr"

// Graph and target errors.
var (
	// ErrTaskAlreadyExists is returned when attempting to add a task with a name that already exists.
	ErrTaskAlreadyExists = zerr.New("task already exists")

	// ErrDuplicateOutput is returned when two tasks declare the same output path.
	ErrDuplicateOutput = zerr.New("output is produced by more than one task")

	// ErrMissingDependency is returned when a task references a dependency that doesn't exist in the graph.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when a cycle is detected in the task dependency graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrTaskNotFound is returned when a requested target matches no task, rule or output.
	ErrTaskNotFound = zerr.New("target not found")

	// ErrNoTargetsSpecified is returned when no targets are specified for the run command.
	ErrNoTargetsSpecified = zerr.New("no targets specified")

	// ErrReservedTaskName is returned when a rule uses a reserved name (e.g., "all").
	ErrReservedTaskName = zerr.New("rule name 'all' is reserved")

	// ErrInvalidTaskName is returned when a rule name contains invalid characters.
	ErrInvalidTaskName = zerr.New("invalid rule name")
)

// Configuration errors. These are reported before any task executes.
var (
	// ErrConfigReadFailed is returned when a configuration file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when a configuration file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigNotFound is returned when a configuration file cannot be found.
	ErrConfigNotFound = zerr.New("config file not found")

	// ErrConfigInvalid is returned when the run configuration fails validation.
	ErrConfigInvalid = zerr.New("invalid run configuration")

	// ErrInvalidRule is returned when a rule declaration is malformed.
	ErrInvalidRule = zerr.New("invalid rule")

	// ErrUnknownWildcard is returned when a template references a wildcard that has no values.
	ErrUnknownWildcard = zerr.New("unknown wildcard")

	// ErrUnknownParam is returned when a template references a configuration key that is not set.
	ErrUnknownParam = zerr.New("unknown configuration parameter")

	// ErrUnknownPlaceholder is returned when a command references an undeclared input or output.
	ErrUnknownPlaceholder = zerr.New("unknown placeholder")

	// ErrUnknownBuiltin is returned when a rule names a builtin step that does not exist.
	ErrUnknownBuiltin = zerr.New("unknown builtin step")

	// ErrUnknownCheck is returned when a rule names an output check that does not exist.
	ErrUnknownCheck = zerr.New("unknown output check")
)

// Execution errors.
var (
	// ErrBuildExecutionFailed is returned when one or more requested outputs could not be produced.
	ErrBuildExecutionFailed = zerr.New("pipeline execution failed")

	// ErrTaskExecutionFailed is returned when a task execution fails.
	ErrTaskExecutionFailed = zerr.New("task execution failed")

	// ErrCommandFailed is returned when a task command exits with a non-zero status.
	ErrCommandFailed = zerr.New("command failed")

	// ErrInputNotFound is returned when a declared input file or directory is not found.
	ErrInputNotFound = zerr.New("input not found")

	// ErrUnsatisfiableInput is returned when an input does not exist and no task produces it.
	ErrUnsatisfiableInput = zerr.New("unsatisfiable dependency")

	// ErrMissingOutput is returned when a task finishes without producing a declared output.
	ErrMissingOutput = zerr.New("declared output was not produced")

	// ErrOutputCheckFailed is returned when a produced output fails validation.
	ErrOutputCheckFailed = zerr.New("output check failed")

	// ErrOutputPathOutsideRoot is returned when an output path is outside the working directory.
	ErrOutputPathOutsideRoot = zerr.New("output path is outside working directory")

	// ErrInputResolutionFailed is returned when input resolution fails.
	ErrInputResolutionFailed = zerr.New("failed to resolve inputs")

	// ErrStalenessCheckFailed is returned when output and input timestamps cannot be compared.
	ErrStalenessCheckFailed = zerr.New("failed to check staleness")

	// ErrRecordUpdateFailed is returned when updating the run record store fails.
	ErrRecordUpdateFailed = zerr.New("failed to update run record")

	// ErrFailedToGetRoot is returned when the working directory path cannot be determined.
	ErrFailedToGetRoot = zerr.New("failed to get absolute path of working directory")

	// ErrFailedToGetOutputPath is returned when an output path cannot be determined.
	ErrFailedToGetOutputPath = zerr.New("failed to get absolute path of output")

	// ErrFailedToResolveRelativePath is returned when a relative path cannot be resolved.
	ErrFailedToResolveRelativePath = zerr.New("failed to resolve relative path")

	// ErrFailedToCleanOutput is returned when cleaning an output file fails.
	ErrFailedToCleanOutput = zerr.New("failed to clean output file")

	// ErrFailedToPrepareOutput is returned when an output or log directory cannot be created.
	ErrFailedToPrepareOutput = zerr.New("failed to create output directory")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")
)

// Store errors.
var (
	// ErrStoreCreateFailed is returned when the run record store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create run record store directory")

	// ErrStoreReadFailed is returned when a run record cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read run record")

	// ErrStoreUnmarshalFailed is returned when a run record cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal run record")

	// ErrStoreMarshalFailed is returned when a run record cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal run record")

	// ErrStoreWriteFailed is returned when a run record cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write run record")
)

// Data errors raised by table readers and the differential expression recipe.
var (
	// ErrTableMalformed is returned when a delimited table cannot be parsed.
	ErrTableMalformed = zerr.New("malformed table")

	// ErrSampleMismatch is returned when count columns and design rows name different samples.
	ErrSampleMismatch = zerr.New("samples in count table and design table do not match")

	// ErrTooFewReplicates is returned when a condition has fewer samples than dispersion estimation needs.
	ErrTooFewReplicates = zerr.New("too few replicates for dispersion estimation")

	// ErrInvalidCounts is returned when a count matrix holds negative or non-integer values.
	ErrInvalidCounts = zerr.New("counts must be non-negative integers")

	// ErrInvalidFormula is returned when a design formula cannot be parsed or references unknown factors.
	ErrInvalidFormula = zerr.New("invalid design formula")

	// ErrInvalidContrast is returned when a contrast names an unknown factor or level.
	ErrInvalidContrast = zerr.New("invalid contrast")

	// ErrNoCommonFeatures is returned when no feature has positive counts in every sample.
	ErrNoCommonFeatures = zerr.New("no feature has positive counts in every sample")

	// ErrSizeFactorsMissing is returned when a step needs size factors that were not estimated.
	ErrSizeFactorsMissing = zerr.New("size factors have not been estimated")

	// ErrDispersionsMissing is returned when a step needs dispersions that were not estimated.
	ErrDispersionsMissing = zerr.New("dispersions have not been estimated")

	// ErrReadsDiscordant is returned when paired FASTQ files disagree on read names or counts.
	ErrReadsDiscordant = zerr.New("paired reads are discordant")

	// ErrReadsMalformed is returned when a FASTQ record cannot be parsed.
	ErrReadsMalformed = zerr.New("malformed FASTQ record")
)
