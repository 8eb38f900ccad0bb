// Package config provides the pipeline and run configuration loaders for rnaflow.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/rnaflow/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// SampleDimension is the wildcard dimension bound to the configured sample names.
const SampleDimension = "sample"

var (
	validRuleNameRegex  = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	validDimensionRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	wildcardValueRegex  = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// DefaultShell runs shell rule commands when the pipeline does not declare one.
func DefaultShell() []string {
	return []string{"sh", "-c"}
}

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using YAML files.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load reads the pipeline file and materializes every rule into tasks for the
// given run configuration. The returned graph is validated.
func (l *Loader) Load(pipelinePath string, cfg *domain.RunConfig) (*domain.Graph, error) {
	var pipeline Pipelinefile
	if err := readAndUnmarshalYAML(pipelinePath, &pipeline); err != nil {
		return nil, err
	}

	root, err := resolveRoot(pipelinePath, cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	dims, err := dimensions(pipeline.Wildcards, cfg)
	if err != nil {
		return nil, err
	}

	shell := pipeline.Shell
	if len(shell) == 0 {
		shell = DefaultShell()
	}

	if len(pipeline.Rules) == 0 {
		l.Logger.Warn(fmt.Sprintf("%s declares no rules", pipelinePath))
	}

	g := domain.NewGraph()
	g.SetRoot(root)

	for _, name := range slices.Sorted(maps.Keys(pipeline.Rules)) {
		e := &expander{
			rule:  name,
			dto:   pipeline.Rules[name],
			dims:  dims,
			cfg:   cfg,
			shell: shell,
		}
		tasks, err := e.expand()
		if err != nil {
			return nil, zerr.With(err, "rule", name)
		}
		for _, task := range tasks {
			if err := g.AddTask(task); err != nil {
				return nil, err
			}
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// dimensions collects the values of every wildcard dimension.
func dimensions(wildcards map[string][]string, cfg *domain.RunConfig) (map[string][]string, error) {
	dims := make(map[string][]string, len(wildcards)+1)
	dims[SampleDimension] = cfg.SampleNames()

	for name, values := range wildcards {
		if name == SampleDimension {
			return nil, zerr.With(domain.ErrConfigInvalid, "reason", "the sample dimension is defined by the sample table")
		}
		if !validDimensionRegex.MatchString(name) || name == "log" || name == "threads" {
			return nil, zerr.With(zerr.With(domain.ErrConfigInvalid, "reason", "invalid wildcard dimension name"), "wildcard", name)
		}
		if len(values) == 0 {
			return nil, zerr.With(zerr.With(domain.ErrConfigInvalid, "reason", "wildcard dimension has no values"), "wildcard", name)
		}
		for _, v := range values {
			if !wildcardValueRegex.MatchString(v) {
				err := zerr.With(domain.ErrConfigInvalid, "reason", "invalid wildcard value")
				return nil, zerr.With(zerr.With(err, "wildcard", name), "value", v)
			}
		}
		dims[name] = slices.Clone(values)
	}
	return dims, nil
}

// expander materializes the tasks of one rule.
type expander struct {
	rule  string
	dto   *RuleDTO
	dims  map[string][]string
	cfg   *domain.RunConfig
	shell []string
}

func (e *expander) expand() ([]*domain.Task, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	bindings := cartesian(e.dto.Foreach, e.dims)
	tasks := make([]*domain.Task, 0, len(bindings))
	for _, binding := range bindings {
		task, err := e.buildTask(binding)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (e *expander) validate() error {
	if e.dto == nil {
		return zerr.With(domain.ErrInvalidRule, "reason", "empty rule")
	}
	if e.rule == domain.AllTarget {
		return zerr.With(domain.ErrReservedTaskName, "rule", e.rule)
	}
	if !validRuleNameRegex.MatchString(e.rule) {
		return zerr.With(domain.ErrInvalidTaskName, "rule", e.rule)
	}

	switch {
	case e.dto.Shell != "" && e.dto.Run != "":
		return zerr.With(domain.ErrInvalidRule, "reason", "shell and run are mutually exclusive")
	case e.dto.Shell == "" && e.dto.Run == "":
		return zerr.With(domain.ErrInvalidRule, "reason", "one of shell or run is required")
	case e.dto.Run != "" && !domain.IsBuiltin(e.dto.Run):
		return zerr.With(zerr.With(domain.ErrUnknownBuiltin, "run", e.dto.Run), "known", strings.Join(domain.Builtins(), ", "))
	}

	if len(e.dto.Output) == 0 {
		return zerr.With(domain.ErrInvalidRule, "reason", "rule declares no outputs")
	}

	for _, check := range e.dto.Checks {
		if !domain.IsCheck(check) {
			return zerr.With(domain.ErrUnknownCheck, "check", check)
		}
	}

	seen := make(map[string]bool, len(e.dto.Foreach))
	for _, dim := range e.dto.Foreach {
		if _, ok := e.dims[dim]; !ok {
			return zerr.With(domain.ErrUnknownWildcard, "wildcard", dim)
		}
		if seen[dim] {
			return zerr.With(zerr.With(domain.ErrInvalidRule, "reason", "dimension repeated in foreach"), "wildcard", dim)
		}
		seen[dim] = true
	}
	return nil
}

func (e *expander) buildTask(binding []domain.Wildcard) (*domain.Task, error) {
	values := make(map[string]string, len(binding))
	for _, w := range binding {
		values[w.Name] = w.Value
	}
	name := domain.TaskName(e.rule, binding)

	namedInputs := make([]domain.NamedPaths, 0, len(e.dto.Input))
	var inputs []string
	for _, entry := range e.dto.Input {
		slot, err := e.expandInput(entry, values)
		if err != nil {
			return nil, zerr.With(err, "input", entry.Name)
		}
		namedInputs = append(namedInputs, slot)
		inputs = append(inputs, slot.Paths...)
	}

	namedOutputs := make([]domain.NamedPaths, 0, len(e.dto.Output))
	var outputs []string
	for _, entry := range e.dto.Output {
		slot := domain.NamedPaths{Name: entry.Name}
		for _, tmpl := range entry.Templates {
			p, err := e.boundPath(tmpl, values)
			if err != nil {
				return nil, zerr.With(err, "output", entry.Name)
			}
			slot.Paths = append(slot.Paths, p)
		}
		namedOutputs = append(namedOutputs, slot)
		outputs = append(outputs, slot.Paths...)
	}

	logPath := domain.DefaultLogPath(name)
	if e.dto.Log != "" {
		p, err := e.boundPath(e.dto.Log, values)
		if err != nil {
			return nil, zerr.With(err, "field", "log")
		}
		logPath = p
	}

	threads := max(e.dto.Threads, 1)
	if e.cfg.Threads > 0 {
		threads = min(threads, e.cfg.Threads)
	}

	env, err := e.renderValues(e.dto.Env, values)
	if err != nil {
		return nil, zerr.With(err, "field", "env")
	}
	params, err := e.renderValues(e.dto.Params, values)
	if err != nil {
		return nil, zerr.With(err, "field", "params")
	}

	task := &domain.Task{
		Name:         domain.NewInternedString(name),
		Rule:         domain.NewInternedString(e.rule),
		Wildcards:    binding,
		Inputs:       canonicalizeStrings(inputs),
		Outputs:      canonicalizeStrings(outputs),
		NamedInputs:  namedInputs,
		NamedOutputs: namedOutputs,
		Log:          domain.NewInternedString(logPath),
		Threads:      threads,
		Environment:  env,
		Builtin:      e.dto.Run,
		Params:       params,
		Checks:       slices.Clone(e.dto.Checks),
		WorkingDir:   domain.NewInternedString("."),
	}

	if e.dto.WorkingDir != "" {
		dir, err := e.boundPath(e.dto.WorkingDir, values)
		if err != nil {
			return nil, zerr.With(err, "field", "workingDir")
		}
		task.WorkingDir = domain.NewInternedString(dir)
	}

	if e.dto.Shell != "" {
		cmd, err := render(e.dto.Shell, e.commandResolver(task, values))
		if err != nil {
			return nil, zerr.With(err, "field", "shell")
		}
		task.Command = append(slices.Clone(e.shell), cmd)
	}

	return task, nil
}

// expandInput renders an input slot. Wildcards the rule does not iterate over
// expand the slot to one path per value, labelled with that value.
func (e *expander) expandInput(entry PathEntry, values map[string]string) (domain.NamedPaths, error) {
	slot := domain.NamedPaths{Name: entry.Name}
	labelled := false

	for _, tmpl := range entry.Templates {
		names, err := wildcardNames(tmpl)
		if err != nil {
			return slot, err
		}

		var free []string
		for _, n := range names {
			if _, bound := values[n]; bound {
				continue
			}
			if _, ok := e.dims[n]; !ok {
				return slot, zerr.With(domain.ErrUnknownWildcard, "wildcard", n)
			}
			free = append(free, n)
		}

		if len(free) == 0 {
			p, err := e.renderPath(tmpl, values)
			if err != nil {
				return slot, err
			}
			slot.Paths = append(slot.Paths, p)
			slot.Labels = append(slot.Labels, "")
			continue
		}

		labelled = true
		for _, combo := range cartesian(free, e.dims) {
			merged := maps.Clone(values)
			labels := make([]string, len(combo))
			for i, w := range combo {
				merged[w.Name] = w.Value
				labels[i] = w.Value
			}
			p, err := e.renderPath(tmpl, merged)
			if err != nil {
				return slot, err
			}
			slot.Paths = append(slot.Paths, p)
			slot.Labels = append(slot.Labels, strings.Join(labels, ","))
		}
	}

	if !labelled {
		slot.Labels = nil
	}
	return slot, nil
}

// boundPath renders a template whose wildcards must all be foreach dimensions.
func (e *expander) boundPath(tmpl string, values map[string]string) (string, error) {
	names, err := wildcardNames(tmpl)
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if _, bound := values[n]; !bound {
			err := zerr.With(domain.ErrInvalidRule, "reason", "wildcard is not a foreach dimension")
			return "", zerr.With(err, "wildcard", n)
		}
	}
	return e.renderPath(tmpl, values)
}

func (e *expander) renderPath(tmpl string, values map[string]string) (string, error) {
	p, err := render(tmpl, e.pathResolver(values))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(p) == "" {
		return "", zerr.With(zerr.With(domain.ErrInvalidRule, "reason", "path renders empty"), "template", tmpl)
	}
	return filepath.Clean(p), nil
}

func (e *expander) renderValues(in map[string]string, values map[string]string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for k, tmpl := range in {
		v, err := render(tmpl, e.pathResolver(values))
		if err != nil {
			return nil, zerr.With(err, "key", k)
		}
		out[k] = v
	}
	return out, nil
}

func (e *expander) pathResolver(values map[string]string) resolveFunc {
	return func(kind, arg string) (string, error) {
		switch kind {
		case kindWildcard:
			if v, ok := values[arg]; ok {
				return v, nil
			}
			return "", zerr.With(domain.ErrUnknownWildcard, "wildcard", arg)
		case kindParam:
			return e.param(arg)
		default:
			return "", zerr.With(domain.ErrUnknownPlaceholder, "placeholder", kind+":"+arg)
		}
	}
}

func (e *expander) commandResolver(task *domain.Task, values map[string]string) resolveFunc {
	return func(kind, arg string) (string, error) {
		switch kind {
		case kindWildcard:
			switch arg {
			case "log":
				return task.Log.String(), nil
			case "threads":
				return strconv.Itoa(task.Threads), nil
			}
			if v, ok := values[arg]; ok {
				return v, nil
			}
			return "", zerr.With(domain.ErrUnknownWildcard, "wildcard", arg)
		case kindInput:
			slot, ok := task.Input(arg)
			if !ok {
				return "", zerr.With(domain.ErrUnknownPlaceholder, "placeholder", "i:"+arg)
			}
			return strings.Join(slot.Paths, " "), nil
		case kindOutput:
			slot, ok := task.Output(arg)
			if !ok {
				return "", zerr.With(domain.ErrUnknownPlaceholder, "placeholder", "o:"+arg)
			}
			return strings.Join(slot.Paths, " "), nil
		case kindValue:
			if v, ok := task.Wildcard(arg); ok {
				return v, nil
			}
			return "", zerr.With(domain.ErrUnknownWildcard, "wildcard", arg)
		case kindParam:
			return e.param(arg)
		default:
			return "", zerr.With(domain.ErrUnknownPlaceholder, "placeholder", kind+":"+arg)
		}
	}
}

func (e *expander) param(key string) (string, error) {
	v, ok := e.cfg.Lookup(key)
	if !ok {
		return "", zerr.With(domain.ErrUnknownParam, "key", key)
	}
	return v, nil
}

// cartesian enumerates every combination of the given dimensions, in order.
func cartesian(dims []string, values map[string][]string) [][]domain.Wildcard {
	result := [][]domain.Wildcard{nil}
	for _, dim := range dims {
		next := make([][]domain.Wildcard, 0, len(result)*len(values[dim]))
		for _, prefix := range result {
			for _, v := range values[dim] {
				combo := append(slices.Clone(prefix), domain.Wildcard{Name: dim, Value: v})
				next = append(next, combo)
			}
		}
		result = next
	}
	return result
}

func canonicalizeStrings(strs []string) []domain.InternedString {
	if len(strs) == 0 {
		return nil
	}

	sorted := slices.Clone(strs)
	slices.Sort(sorted)

	unique := slices.Compact(sorted)
	return domain.NewInternedStrings(unique)
}

func resolveRoot(pipelinePath, workDir string) (string, error) {
	root := workDir
	if root == "" {
		root = filepath.Dir(pipelinePath)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrFailedToGetRoot.Error()), "path", root)
	}
	return abs, nil
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is provided by the operator
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return zerr.With(domain.ErrConfigNotFound, "path", configPath)
		}
		return zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", configPath)
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return zerr.With(zerr.Wrap(parseErr, domain.ErrConfigParseFailed.Error()), "path", configPath)
	}

	return nil
}
