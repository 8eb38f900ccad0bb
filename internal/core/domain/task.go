package domain

import (
	"slices"
	"strings"
)

// Wildcard is one bound dimension of a task instance, e.g. sample=S1.
type Wildcard struct {
	Name  string
	Value string
}

// NamedPaths is a named input or output slot of a task.
// A slot expanded over a wildcard dimension holds one path per value, and Labels
// carries the wildcard values that produced each path.
type NamedPaths struct {
	Name   string
	Paths  []string
	Labels []string
}

// Task is one concrete unit of work materialized from a rule.
// Inputs and Outputs hold the flattened, cleaned paths of all named slots.
type Task struct {
	Name         InternedString
	Rule         InternedString
	Wildcards    []Wildcard
	Command      []string
	Inputs       []InternedString
	Outputs      []InternedString
	NamedInputs  []NamedPaths
	NamedOutputs []NamedPaths
	Log          InternedString
	Threads      int
	Environment  map[string]string
	WorkingDir   InternedString
	Builtin      string
	Params       map[string]string
	Checks       []string
	Dependencies []InternedString
}

// InputPaths returns the flattened input paths as strings.
func (t *Task) InputPaths() []string {
	return Strings(t.Inputs)
}

// OutputPaths returns the flattened output paths as strings.
func (t *Task) OutputPaths() []string {
	return Strings(t.Outputs)
}

// Input returns the named input slot.
func (t *Task) Input(name string) (NamedPaths, bool) {
	return findSlot(t.NamedInputs, name)
}

// Output returns the named output slot.
func (t *Task) Output(name string) (NamedPaths, bool) {
	return findSlot(t.NamedOutputs, name)
}

// Wildcard returns the value bound to the given dimension.
func (t *Task) Wildcard(name string) (string, bool) {
	for _, w := range t.Wildcards {
		if w.Name == name {
			return w.Value, true
		}
	}
	return "", false
}

func findSlot(slots []NamedPaths, name string) (NamedPaths, bool) {
	i := slices.IndexFunc(slots, func(s NamedPaths) bool { return s.Name == name })
	if i < 0 {
		return NamedPaths{}, false
	}
	return slots[i], true
}

// TaskName builds the canonical instance name for a rule bound to the given wildcards:
// "rule" when there are none, otherwise "rule[dim=value,...]".
func TaskName(rule string, wildcards []Wildcard) string {
	if len(wildcards) == 0 {
		return rule
	}
	var b strings.Builder
	b.WriteString(rule)
	b.WriteByte('[')
	for i, w := range wildcards {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(w.Name)
		b.WriteByte('=')
		b.WriteString(w.Value)
	}
	b.WriteByte(']')
	return b.String()
}
