package domain

import "slices"

// Native steps a rule can select with "run:" instead of a shell command.
const (
	BuiltinReadQC          = "readqc"
	BuiltinCountMatrix     = "count-matrix"
	BuiltinAbundanceMatrix = "abundance-matrix"
	BuiltinDESeq           = "deseq"
)

// CheckBAM validates that .bam outputs are coordinate-sorted BAM files.
const CheckBAM = "bam"

// Builtins lists every native step name.
func Builtins() []string {
	return []string{BuiltinAbundanceMatrix, BuiltinCountMatrix, BuiltinDESeq, BuiltinReadQC}
}

// IsBuiltin reports whether name selects a native step.
func IsBuiltin(name string) bool {
	return slices.Contains(Builtins(), name)
}

// IsCheck reports whether name is a known output check.
func IsCheck(name string) bool {
	return name == CheckBAM
}
