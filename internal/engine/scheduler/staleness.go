package scheduler

import (
	"errors"
	"path/filepath"

	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

// PlanEntry is a task a run would execute and the reason it is stale.
type PlanEntry struct {
	Task   string
	Rule   string
	Reason domain.Reason
}

// Plan returns, in execution order, the tasks a run of targets would execute.
// Nothing is executed and no file is touched.
func (s *Scheduler) Plan(graph *domain.Graph, targets []string, force bool) ([]PlanEntry, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(graph.Root())
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrFailedToGetRoot.Error())
	}
	_, order, err := selectTasks(graph, targets)
	if err != nil {
		return nil, err
	}

	willRun := make(map[domain.InternedString]bool, len(order))
	var entries []PlanEntry
	var errs error
	for _, name := range order {
		task, _ := graph.GetTask(name)
		upstream := false
		for _, dep := range task.Dependencies {
			upstream = upstream || willRun[dep]
		}

		reason, _, err := s.evaluate(graph, root, &task, force, upstream)
		if err != nil {
			errs = errors.Join(errs, zerr.With(err, "task", name.String()))
			continue
		}
		if reason == domain.ReasonUpToDate {
			continue
		}
		willRun[name] = true
		entries = append(entries, PlanEntry{Task: name.String(), Rule: task.Rule.String(), Reason: reason})
	}
	return entries, errs
}

// evaluate decides whether a task has to run. The checks apply in order: forced,
// upstream, missing output, incomplete previous run, changed definition, no outputs,
// input newer than the oldest output. Inputs are required to exist unless a task of the
// same run is about to produce them.
func (s *Scheduler) evaluate(graph *domain.Graph, root string, t *domain.Task, force, upstream bool) (domain.Reason, string, error) {
	fingerprint, err := s.hasher.Fingerprint(t)
	if err != nil {
		return "", "", err
	}
	if force {
		return domain.ReasonForced, fingerprint, s.checkInputs(graph, root, t, true)
	}
	if upstream {
		return domain.ReasonUpstream, fingerprint, s.checkInputs(graph, root, t, true)
	}
	if err := s.checkInputs(graph, root, t, false); err != nil {
		return "", fingerprint, err
	}

	outputs := t.OutputPaths()
	missing, err := s.verifier.MissingOutputs(root, outputs)
	if err != nil {
		return "", fingerprint, zerr.Wrap(err, domain.ErrStalenessCheckFailed.Error())
	}
	if len(missing) > 0 {
		return domain.ReasonMissingOutput, fingerprint, nil
	}

	record, err := s.store.Get(root, t.Name.String())
	if err != nil {
		return "", fingerprint, err
	}
	if record != nil {
		if record.Status != domain.RecordComplete {
			return domain.ReasonIncomplete, fingerprint, nil
		}
		if record.Fingerprint != fingerprint {
			return domain.ReasonDefinitionChanged, fingerprint, nil
		}
	}

	if len(outputs) == 0 {
		return domain.ReasonNoOutputs, fingerprint, nil
	}
	inputs := t.InputPaths()
	if len(inputs) == 0 {
		return domain.ReasonUpToDate, fingerprint, nil
	}

	newest, err := s.verifier.NewestModTime(root, inputs)
	if err != nil {
		return "", fingerprint, zerr.Wrap(err, domain.ErrStalenessCheckFailed.Error())
	}
	oldest, err := s.verifier.OldestModTime(root, outputs)
	if err != nil {
		return "", fingerprint, zerr.Wrap(err, domain.ErrStalenessCheckFailed.Error())
	}
	if newest.After(oldest) {
		return domain.ReasonInputNewer, fingerprint, nil
	}
	return domain.ReasonUpToDate, fingerprint, nil
}

// checkInputs requires every input to exist. With pending set, inputs some task
// produces are allowed to be absent since they will exist once the producer ran.
func (s *Scheduler) checkInputs(graph *domain.Graph, root string, t *domain.Task, pending bool) error {
	for _, in := range t.InputPaths() {
		_, produced := graph.Producer(in)
		if pending && produced {
			continue
		}
		if _, err := s.resolver.ResolveInputs([]string{in}, root); err != nil {
			if !produced {
				return zerr.With(zerr.Wrap(err, domain.ErrUnsatisfiableInput.Error()), "input", in)
			}
			return zerr.With(err, "input", in)
		}
	}
	return nil
}
