// Package scheduler implements the task execution scheduler.
package scheduler

import (
	"context"
	"errors"
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/rnaflow/internal/core/ports"
	"go.trai.ch/zerr"
)

// Options controls a run.
type Options struct {
	// Parallelism is the thread budget shared by running tasks.
	Parallelism int
	// Force re-executes every selected task regardless of staleness.
	Force bool
}

// Scheduler manages the execution of tasks in the dependency graph.
type Scheduler struct {
	executor ports.Executor
	store    ports.RunRecordStore
	hasher   ports.Hasher
	resolver ports.InputResolver
	verifier ports.Verifier
	checker  ports.OutputChecker
	tracer   ports.Tracer

	mu         sync.RWMutex
	taskStatus map[domain.InternedString]domain.TaskStatus
}

// NewScheduler creates a new Scheduler with the given dependencies.
func NewScheduler(
	executor ports.Executor,
	store ports.RunRecordStore,
	hasher ports.Hasher,
	resolver ports.InputResolver,
	verifier ports.Verifier,
	checker ports.OutputChecker,
	tracer ports.Tracer,
) *Scheduler {
	return &Scheduler{
		executor:   executor,
		store:      store,
		hasher:     hasher,
		resolver:   resolver,
		verifier:   verifier,
		checker:    checker,
		tracer:     tracer,
		taskStatus: make(map[domain.InternedString]domain.TaskStatus),
	}
}

// initTaskStatuses initializes the status of tasks in the run to Pending.
func (s *Scheduler) initTaskStatuses(tasks []domain.InternedString) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.taskStatus)
	for _, task := range tasks {
		s.taskStatus[task] = domain.StatusPending
	}
}

// updateStatus updates the status of a task.
func (s *Scheduler) updateStatus(name domain.InternedString, status domain.TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskStatus[name] = status
}

// Statuses returns the status of every task of the last run.
func (s *Scheduler) Statuses() map[string]domain.TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.TaskStatus, len(s.taskStatus))
	for name, status := range s.taskStatus {
		out[name.String()] = status
	}
	return out
}

// Run executes the requested targets and everything they depend on.
// Failures abort only the dependents of the failed task; the returned error joins
// every task failure.
func (s *Scheduler) Run(ctx context.Context, graph *domain.Graph, targets []string, opts Options) error {
	if err := graph.Validate(); err != nil {
		return err
	}
	root, err := filepath.Abs(graph.Root())
	if err != nil {
		return zerr.Wrap(err, domain.ErrFailedToGetRoot.Error())
	}

	selected, order, err := selectTasks(graph, targets)
	if err != nil {
		return err
	}

	depMap := make(map[string][]string, len(order))
	for _, name := range order {
		task, _ := graph.GetTask(name)
		depMap[name.String()] = domain.Strings(task.Dependencies)
	}
	s.tracer.EmitPlan(ctx, domain.Strings(order), depMap, targets)

	s.initTaskStatuses(order)
	state := s.newRunState(ctx, graph, root, selected, opts)
	return state.runExecutionLoop()
}

// selectTasks returns the targets and their dependency closure, as a set and in
// topological order.
func selectTasks(graph *domain.Graph, targets []string) (map[domain.InternedString]bool, []domain.InternedString, error) {
	if len(targets) == 0 {
		return nil, nil, domain.ErrNoTargetsSpecified
	}
	names, err := graph.ResolveTargets(targets)
	if err != nil {
		return nil, nil, err
	}

	selected := make(map[domain.InternedString]bool)
	queue := slices.Clone(names)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if selected[current] {
			continue
		}
		selected[current] = true
		task, _ := graph.GetTask(current)
		queue = append(queue, task.Dependencies...)
	}

	order := make([]domain.InternedString, 0, len(selected))
	for task := range graph.Walk() {
		if selected[task.Name] {
			order = append(order, task.Name)
		}
	}
	return selected, order, nil
}

type result struct {
	task     domain.InternedString
	err      error
	upToDate bool
	slots    int
}

type schedulerRunState struct {
	graph     *domain.Graph
	root      string
	inDegree  map[domain.InternedString]int
	tasks     map[domain.InternedString]domain.Task
	ready     []domain.InternedString
	executed  map[domain.InternedString]bool
	active    int
	free      int
	budget    int
	force     bool
	resultsCh chan result
	errs      error
	ctx       context.Context
	s         *Scheduler
}

func (s *Scheduler) newRunState(
	ctx context.Context,
	graph *domain.Graph,
	root string,
	selected map[domain.InternedString]bool,
	opts Options,
) *schedulerRunState {
	budget := max(opts.Parallelism, 1)
	inDegree := make(map[domain.InternedString]int, len(selected))
	tasks := make(map[domain.InternedString]domain.Task, len(selected))

	for name := range selected {
		task, _ := graph.GetTask(name)
		tasks[name] = task

		degree := 0
		for _, dep := range task.Dependencies {
			if selected[dep] {
				degree++
			}
		}
		inDegree[name] = degree
	}

	var ready []domain.InternedString
	for _, name := range slices.SortedFunc(maps.Keys(inDegree), compareNames) {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	return &schedulerRunState{
		graph:     graph,
		root:      root,
		inDegree:  inDegree,
		tasks:     tasks,
		ready:     ready,
		executed:  make(map[domain.InternedString]bool),
		free:      budget,
		budget:    budget,
		force:     opts.Force,
		resultsCh: make(chan result, len(selected)),
		ctx:       ctx,
		s:         s,
	}
}

func (state *schedulerRunState) runExecutionLoop() error {
	done := state.ctx.Done()
	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		if state.ctx.Err() != nil && state.active == 0 {
			return errors.Join(state.errs, state.ctx.Err())
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-done:
			done = nil
		}
	}

	if state.ctx.Err() != nil {
		state.errs = errors.Join(state.errs, state.ctx.Err())
	}

	return state.errs
}

func (state *schedulerRunState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

// slots is the share of the thread budget a task occupies while it runs.
func (state *schedulerRunState) slots(t *domain.Task) int {
	return min(max(t.Threads, 1), state.budget)
}

// schedule starts ready tasks in order while the head of the queue fits the free budget.
func (state *schedulerRunState) schedule() {
	for len(state.ready) > 0 && state.ctx.Err() == nil {
		taskName := state.ready[0]
		t := state.tasks[taskName]
		need := state.slots(&t)
		if need > state.free {
			return
		}
		state.ready = state.ready[1:]

		state.active++
		state.free -= need
		state.s.updateStatus(taskName, domain.StatusRunning)

		upstream := slices.ContainsFunc(t.Dependencies, func(dep domain.InternedString) bool {
			return state.executed[dep]
		})
		go state.executeTask(&t, need, upstream)
	}
}

func (state *schedulerRunState) handleResult(res result) {
	state.active--
	state.free += res.slots

	if res.err != nil {
		enhancedErr := zerr.With(zerr.Wrap(res.err, domain.ErrTaskExecutionFailed.Error()), "task", res.task.String())
		state.errs = errors.Join(state.errs, enhancedErr)
		state.s.updateStatus(res.task, domain.StatusFailed)
		state.skipDependents(res.task)
		return
	}

	if res.upToDate {
		state.s.updateStatus(res.task, domain.StatusUpToDate)
	} else {
		state.executed[res.task] = true
		state.s.updateStatus(res.task, domain.StatusCompleted)
	}

	for _, dep := range state.graph.Dependents(res.task) {
		if _, ok := state.tasks[dep]; ok {
			state.inDegree[dep]--
			if state.inDegree[dep] == 0 {
				state.ready = append(state.ready, dep)
			}
		}
	}
}

// skipDependents marks every task downstream of a failed task as skipped.
func (state *schedulerRunState) skipDependents(failed domain.InternedString) {
	queue := slices.Clone(state.graph.Dependents(failed))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, ok := state.tasks[name]; !ok {
			continue
		}
		state.s.updateStatus(name, domain.StatusSkipped)
		delete(state.tasks, name)
		queue = append(queue, state.graph.Dependents(name)...)
	}
}

func compareNames(a, b domain.InternedString) int {
	switch {
	case a.String() < b.String():
		return -1
	case a.String() > b.String():
		return 1
	}
	return 0
}
