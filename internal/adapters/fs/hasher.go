package fs

import (
	"fmt"
	"maps"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/rnaflow/internal/core/ports"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher fingerprints task definitions.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Fingerprint computes a hash over the parts of a task that decide what it produces.
// Thread count and log path are excluded so rescheduling never invalidates outputs.
func (h *Hasher) Fingerprint(task *domain.Task) (string, error) {
	hasher := xxhash.New()

	writeSection(hasher, task.Command)
	writeSection(hasher, task.InputPaths())
	writeSection(hasher, task.OutputPaths())
	writeSection(hasher, []string{task.Builtin, task.WorkingDir.String()})
	writeSection(hasher, sortedPairs(task.Params))
	writeSection(hasher, sortedPairs(task.Environment))
	writeSection(hasher, task.Checks)

	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}

func writeSection(hasher *xxhash.Digest, items []string) {
	for _, item := range items {
		_, _ = hasher.WriteString(item)
		_, _ = hasher.Write([]byte{0})
	}
	_, _ = hasher.Write([]byte{0}) // Section separator
}

func sortedPairs(m map[string]string) []string {
	pairs := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		pairs = append(pairs, k+"="+m[k])
	}
	return pairs
}
