// Package domain contains the core domain models for the pipeline task graph.
package domain

import (
	"iter"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// AllTarget selects every task in the graph.
const AllTarget = "all"

// UnsatisfiedInput is an input path that does not exist and that no task produces.
type UnsatisfiedInput struct {
	Task InternedString
	Path string
}

// Graph is an explicit DAG of tasks.
// Edges are derived from output to input path matching when the graph is validated.
type Graph struct {
	root           string
	tasks          map[InternedString]Task
	producers      map[InternedString]InternedString
	rules          map[InternedString][]InternedString
	dependents     map[InternedString][]InternedString
	executionOrder []InternedString
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		tasks:      make(map[InternedString]Task),
		producers:  make(map[InternedString]InternedString),
		rules:      make(map[InternedString][]InternedString),
		dependents: make(map[InternedString][]InternedString),
	}
}

// SetRoot sets the working directory every task path is relative to.
func (g *Graph) SetRoot(root string) {
	g.root = root
}

// Root returns the working directory of the graph.
func (g *Graph) Root() string {
	return g.root
}

// AddTask adds a task to the graph.
// It returns an error if the name is taken or if one of its outputs already has a producer.
func (g *Graph) AddTask(t *Task) error {
	if _, exists := g.tasks[t.Name]; exists {
		return zerr.With(ErrTaskAlreadyExists, "task_name", t.Name.String())
	}
	for _, out := range t.Outputs {
		if owner, taken := g.producers[out]; taken {
			err := zerr.With(ErrDuplicateOutput, "output", out.String())
			err = zerr.With(err, "task", t.Name.String())
			return zerr.With(err, "producer", owner.String())
		}
	}
	for _, out := range t.Outputs {
		g.producers[out] = t.Name
	}
	if !t.Rule.IsZero() {
		g.rules[t.Rule] = append(g.rules[t.Rule], t.Name)
	}
	g.tasks[t.Name] = *t
	return nil
}

// GetTask returns the task with the given name.
func (g *Graph) GetTask(name InternedString) (Task, bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// TaskCount returns the number of tasks in the graph.
func (g *Graph) TaskCount() int {
	return len(g.tasks)
}

// Producer returns the task that declares path as an output.
func (g *Graph) Producer(path string) (InternedString, bool) {
	name, ok := g.producers[NewInternedString(filepath.Clean(path))]
	return name, ok
}

// Dependents returns the tasks that depend directly on name.
// It assumes Validate() has been called and returned nil.
func (g *Graph) Dependents(name InternedString) []InternedString {
	return g.dependents[name]
}

// Validate derives dependencies from output to input matching, checks that explicit
// dependencies exist and that the graph is acyclic, and populates the execution order.
func (g *Graph) Validate() error {
	names := slices.SortedFunc(maps.Keys(g.tasks), compareNames)

	for _, name := range names {
		if err := g.linkInputs(name); err != nil {
			return err
		}
	}

	g.executionOrder = make([]InternedString, 0, len(g.tasks))
	visited := make(map[InternedString]int) // 0: unvisited, 1: visiting, 2: visited
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		visited[u] = 1
		path = append(path, u)

		task, exists := g.tasks[u]
		if !exists {
			return zerr.With(ErrMissingDependency, "dependency", u.String())
		}

		for _, dep := range task.Dependencies {
			if visited[dep] == 1 {
				return buildCycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.executionOrder = append(g.executionOrder, u)
		return nil
	}

	for _, name := range names {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	g.dependents = make(map[InternedString][]InternedString, len(g.tasks))
	for _, name := range g.executionOrder {
		for _, dep := range g.tasks[name].Dependencies {
			g.dependents[dep] = append(g.dependents[dep], name)
		}
	}
	return nil
}

// linkInputs adds an edge to the producer of each input of the named task.
func (g *Graph) linkInputs(name InternedString) error {
	task := g.tasks[name]
	for _, in := range task.Inputs {
		producer, ok := g.producers[in]
		if !ok {
			continue
		}
		if producer == name {
			return zerr.With(ErrCycleDetected, "cycle", name.String()+" -> "+name.String())
		}
		if !slices.Contains(task.Dependencies, producer) {
			task.Dependencies = append(task.Dependencies, producer)
		}
	}
	g.tasks[name] = task
	return nil
}

func buildCycleError(path []InternedString, dep InternedString) error {
	start := slices.Index(path, dep)
	parts := make([]string, 0, len(path)-start+1)
	for _, node := range path[start:] {
		parts = append(parts, node.String())
	}
	parts = append(parts, dep.String())
	return zerr.With(ErrCycleDetected, "cycle", strings.Join(parts, " -> "))
}

// Walk returns an iterator that yields tasks in execution order.
// It assumes Validate() has been called and returned nil.
func (g *Graph) Walk() iter.Seq[Task] {
	return func(yield func(Task) bool) {
		for _, name := range g.executionOrder {
			if !yield(g.tasks[name]) {
				return
			}
		}
	}
}

// ResolveTargets maps user targets to task names.
// A target is "all", a task name, a rule name (every instance of it) or an output path.
func (g *Graph) ResolveTargets(targets []string) ([]InternedString, error) {
	if slices.Contains(targets, AllTarget) {
		return slices.Clone(g.executionOrder), nil
	}

	var out []InternedString
	seen := make(map[InternedString]bool)
	add := func(names ...InternedString) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}

	for _, target := range targets {
		name := NewInternedString(target)
		if _, ok := g.tasks[name]; ok {
			add(name)
			continue
		}
		if instances, ok := g.rules[name]; ok {
			add(instances...)
			continue
		}
		if producer, ok := g.Producer(g.relativePath(target)); ok {
			add(producer)
			continue
		}
		return nil, zerr.With(ErrTaskNotFound, "target", target)
	}
	return out, nil
}

// Unsatisfied lists inputs that no task produces and for which exists reports false.
func (g *Graph) Unsatisfied(exists func(path string) bool) []UnsatisfiedInput {
	var missing []UnsatisfiedInput
	for task := range g.Walk() {
		for _, in := range task.Inputs {
			if _, produced := g.producers[in]; produced {
				continue
			}
			if !exists(in.String()) {
				missing = append(missing, UnsatisfiedInput{Task: task.Name, Path: in.String()})
			}
		}
	}
	return missing
}

func (g *Graph) relativePath(p string) string {
	if !filepath.IsAbs(p) || g.root == "" {
		return filepath.Clean(p)
	}
	rel, err := filepath.Rel(g.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Clean(p)
	}
	return rel
}

func compareNames(a, b InternedString) int {
	return strings.Compare(a.String(), b.String())
}
