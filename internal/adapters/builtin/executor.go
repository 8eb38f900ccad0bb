// Package builtin runs the native pipeline steps selected with "run:" and hands every
// other task to a shell executor.
package builtin

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/rnaflow/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Executor = (*Executor)(nil)

// request is the context of one native step invocation.
type request struct {
	task   *domain.Task
	root   string
	stdout io.Writer
}

type step func(ctx context.Context, req *request) error

// Executor implements ports.Executor for builtin steps.
type Executor struct {
	shell ports.Executor
	steps map[string]step
}

// NewExecutor creates an Executor that delegates shell tasks to shell.
func NewExecutor(shell ports.Executor) *Executor {
	return &Executor{
		shell: shell,
		steps: map[string]step{
			domain.BuiltinReadQC:          readQC,
			domain.BuiltinCountMatrix:     countMatrix,
			domain.BuiltinAbundanceMatrix: abundanceMatrix,
			domain.BuiltinDESeq:           deseq,
		},
	}
}

// Execute runs the task's builtin step, or its shell command when it has none.
// Relative task paths resolve against the RNAFLOW_ROOT entry of env, falling back to
// the task's working directory.
func (e *Executor) Execute(ctx context.Context, task *domain.Task, env []string, stdout, stderr io.Writer) error {
	if task.Builtin == "" {
		return e.shell.Execute(ctx, task, env, stdout, stderr)
	}
	run, ok := e.steps[task.Builtin]
	if !ok {
		return zerr.With(domain.ErrUnknownBuiltin, "step", task.Builtin)
	}

	req := &request{task: task, root: rootFrom(env, task), stdout: stdout}
	if err := run(ctx, req); err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", task.Builtin, err)
		return zerr.With(zerr.Wrap(err, domain.ErrCommandFailed.Error()), "step", task.Builtin)
	}
	return nil
}

func rootFrom(env []string, task *domain.Task) string {
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, domain.EnvRoot+"="); ok {
			return v
		}
	}
	return task.WorkingDir.String()
}

func (r *request) path(p string) string {
	if filepath.IsAbs(p) || r.root == "" {
		return p
	}
	return filepath.Join(r.root, p)
}

// input returns the resolved paths of a named input slot and the label of each path.
func (r *request) input(name string) ([]string, []string, error) {
	slot, ok := r.task.Input(name)
	if !ok || len(slot.Paths) == 0 {
		return nil, nil, zerr.With(zerr.With(domain.ErrInvalidRule, "step", r.task.Builtin), "missing_input", name)
	}
	paths := make([]string, len(slot.Paths))
	for i, p := range slot.Paths {
		paths[i] = r.path(p)
	}
	labels := slot.Labels
	if len(labels) != len(paths) {
		labels = make([]string, len(paths))
		for i, p := range slot.Paths {
			labels[i] = r.label(p)
		}
	}
	return paths, labels, nil
}

// label names a single, unexpanded input by the task's sample wildcard, else by its file name.
func (r *request) label(p string) string {
	if s, ok := r.task.Wildcard("sample"); ok {
		return s
	}
	return filepath.Base(p)
}

// output returns the resolved path of a single-path output slot.
func (r *request) output(name string) (string, error) {
	slot, ok := r.task.Output(name)
	if !ok || len(slot.Paths) != 1 {
		return "", zerr.With(zerr.With(domain.ErrInvalidRule, "step", r.task.Builtin), "missing_output", name)
	}
	return r.path(slot.Paths[0]), nil
}

func (r *request) param(name, fallback string) string {
	if v, ok := r.task.Params[name]; ok && v != "" {
		return v
	}
	return fallback
}

func (r *request) logf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.stdout, format+"\n", args...)
}
