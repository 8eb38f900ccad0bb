package fs

import (
	"errors"
	"os"
	"time"

	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/rnaflow/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Verifier = (*Verifier)(nil)

// Verifier inspects the existence and modification times of task files.
type Verifier struct {
	walker *Walker
}

// NewVerifier creates a new Verifier.
func NewVerifier(walker *Walker) *Verifier {
	return &Verifier{walker: walker}
}

// MissingOutputs returns the outputs that do not exist under root.
func (v *Verifier) MissingOutputs(root string, outputs []string) ([]string, error) {
	var missing []string
	for _, output := range outputs {
		path := Abs(root, output)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				missing = append(missing, output)
				continue
			}
			return nil, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
		}
	}
	return missing, nil
}

// NewestModTime returns the latest modification time among paths.
func (v *Verifier) NewestModTime(root string, paths []string) (time.Time, error) {
	return v.extremeModTime(root, paths, func(candidate, current time.Time) bool {
		return candidate.After(current)
	})
}

// OldestModTime returns the earliest modification time among paths.
func (v *Verifier) OldestModTime(root string, paths []string) (time.Time, error) {
	return v.extremeModTime(root, paths, func(candidate, current time.Time) bool {
		return candidate.Before(current)
	})
}

func (v *Verifier) extremeModTime(root string, paths []string, better func(candidate, current time.Time) bool) (time.Time, error) {
	var result time.Time
	consider := func(t time.Time) {
		if result.IsZero() || better(t, result) {
			result = t
		}
	}

	for _, p := range paths {
		path := Abs(root, p)
		info, err := os.Stat(path)
		if err != nil {
			return time.Time{}, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
		}
		if !info.IsDir() {
			consider(info.ModTime())
			continue
		}

		empty := true
		for _, fi := range v.walker.WalkFiles(path) {
			empty = false
			consider(fi.ModTime())
		}
		if empty {
			consider(info.ModTime())
		}
	}
	return result, nil
}
