package scheduler

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/rnaflow/internal/core/ports"
	"go.trai.ch/zerr"
)

func (state *schedulerRunState) executeTask(t *domain.Task, slots int, upstream bool) {
	// The span must end before the result is sent so renderers see it first.
	res := func() result {
		s := state.s
		reason, fingerprint, err := s.evaluate(state.graph, state.root, t, state.force, upstream)
		if err != nil {
			_, span := s.tracer.Start(state.ctx, t.Name.String())
			span.RecordError(err)
			span.End()
			return result{task: t.Name, err: err, slots: slots}
		}

		if reason == domain.ReasonUpToDate {
			_, span := s.tracer.Start(state.ctx, t.Name.String(), ports.WithUpToDate())
			span.End()
			return result{task: t.Name, upToDate: true, slots: slots}
		}

		ctx, span := s.tracer.Start(state.ctx, t.Name.String(), ports.WithReason(string(reason)))
		defer span.End()

		if err := s.runTask(ctx, state.root, t, fingerprint, slots, span); err != nil {
			span.RecordError(err)
			return result{task: t.Name, err: err, slots: slots}
		}
		return result{task: t.Name, slots: slots}
	}()

	state.resultsCh <- res
}

// runTask prepares the outputs, runs the task and verifies what it produced.
// On failure the declared outputs are removed.
func (s *Scheduler) runTask(ctx context.Context, root string, t *domain.Task, fingerprint string, slots int, span ports.Span) error {
	if err := prepareOutputs(root, t); err != nil {
		return err
	}

	runID := uuid.NewString()
	record := domain.RunRecord{
		TaskName:    t.Name.String(),
		Fingerprint: fingerprint,
		Status:      domain.RecordIncomplete,
		RunID:       runID,
		StartedAt:   time.Now(),
	}
	if err := s.store.Put(root, record); err != nil {
		return zerr.Wrap(err, domain.ErrRecordUpdateFailed.Error())
	}

	err := s.execute(ctx, root, t, runID, slots, span)
	if err == nil {
		err = s.verifyOutputs(ctx, root, t)
	}
	if err != nil {
		removeOutputs(root, t)
		return err
	}

	record.Status = domain.RecordComplete
	record.FinishedAt = time.Now()
	if err := s.store.Put(root, record); err != nil {
		return zerr.Wrap(err, domain.ErrRecordUpdateFailed.Error())
	}
	return nil
}

func (s *Scheduler) execute(ctx context.Context, root string, t *domain.Task, runID string, slots int, span ports.Span) (err error) {
	logPath := t.Log.String()
	if logPath == "" {
		logPath = domain.DefaultLogPath(t.Name.String())
	}
	logPath = absPath(root, logPath)
	if err := os.MkdirAll(filepath.Dir(logPath), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFailedToPrepareOutput.Error()), "file", logPath)
	}
	logFile, err := os.Create(logPath) //nolint:gosec // log paths come from the pipeline file
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFailedToPrepareOutput.Error()), "file", logPath)
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil && err == nil {
			err = zerr.With(zerr.Wrap(cerr, "failed to close task log"), "file", logPath)
		}
	}()

	task := *t
	task.WorkingDir = domain.NewInternedString(root)
	if wd := t.WorkingDir.String(); wd != "" {
		task.WorkingDir = domain.NewInternedString(absPath(root, wd))
	}
	env := []string{
		domain.EnvThreads + "=" + strconv.Itoa(slots),
		domain.EnvRunID + "=" + runID,
		domain.EnvRoot + "=" + root,
	}

	out := &lockedWriter{w: io.MultiWriter(span, logFile)}
	if err := s.executor.Execute(ctx, &task, env, out, out); err != nil {
		return zerr.With(err, "log", logPath)
	}
	return nil
}

// verifyOutputs checks that every declared output exists and passes the task's checks.
func (s *Scheduler) verifyOutputs(ctx context.Context, root string, t *domain.Task) error {
	missing, err := s.verifier.MissingOutputs(root, t.OutputPaths())
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return zerr.With(domain.ErrMissingOutput, "outputs", strings.Join(missing, ", "))
	}

	for _, check := range t.Checks {
		for _, out := range t.Outputs {
			if err := s.checker.Check(ctx, check, absPath(root, out.String())); err != nil {
				return err
			}
		}
	}
	return nil
}

// prepareOutputs validates that outputs lie inside root, removes stale copies and
// creates their parent directories.
func prepareOutputs(root string, t *domain.Task) error {
	for _, out := range t.Outputs {
		outPath := out.String()
		outAbs := absPath(root, outPath)

		rel, err := filepath.Rel(root, outAbs)
		if err != nil {
			return zerr.With(
				zerr.Wrap(err, domain.ErrFailedToResolveRelativePath.Error()),
				"file", outPath,
			)
		}
		if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return zerr.With(domain.ErrOutputPathOutsideRoot, "file", outPath)
		}

		if err := os.RemoveAll(outAbs); err != nil {
			return zerr.With(
				zerr.Wrap(err, domain.ErrFailedToCleanOutput.Error()),
				"file", outPath,
			)
		}
		if err := os.MkdirAll(filepath.Dir(outAbs), domain.DirPerm); err != nil {
			return zerr.With(
				zerr.Wrap(err, domain.ErrFailedToPrepareOutput.Error()),
				"file", outPath,
			)
		}
	}
	return nil
}

// removeOutputs deletes whatever a failed attempt left behind. Errors are ignored since
// the next attempt cleans the same paths again.
func removeOutputs(root string, t *domain.Task) {
	for _, out := range t.Outputs {
		outAbs := absPath(root, out.String())
		if rel, err := filepath.Rel(root, outAbs); err == nil && !strings.HasPrefix(rel, "..") {
			_ = os.RemoveAll(outAbs)
		}
	}
}

func absPath(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// lockedWriter serializes writes from the stdout and stderr copiers of one task.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
