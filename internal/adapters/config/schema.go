package config

import (
	"gopkg.in/yaml.v3"
)

// Pipelinefile represents the structure of the rnaflow.yaml pipeline definition.
type Pipelinefile struct {
	Version   string              `yaml:"version"`
	Shell     []string            `yaml:"shell"`
	Wildcards map[string][]string `yaml:"wildcards"`
	Rules     map[string]*RuleDTO `yaml:"rules"`
}

// RuleDTO represents a rule definition in the pipeline file.
type RuleDTO struct {
	Foreach    []string          `yaml:"foreach"`
	Input      PathMap           `yaml:"input"`
	Output     PathMap           `yaml:"output"`
	Log        string            `yaml:"log"`
	Threads    int               `yaml:"threads"`
	Env        map[string]string `yaml:"env"`
	WorkingDir string            `yaml:"workingDir"`
	Shell      string            `yaml:"shell"`
	Run        string            `yaml:"run"`
	Params     map[string]string `yaml:"params"`
	Checks     []string          `yaml:"checks"`
}

// PathEntry is one named input or output slot of a rule.
type PathEntry struct {
	Name      string
	Templates []string
}

// PathMap is an ordered mapping of slot names to one or more path templates.
type PathMap []PathEntry

// UnmarshalYAML decodes a mapping while keeping the declaration order of its keys.
// Values are either a single template or a list of templates.
func (m *PathMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &yaml.TypeError{Errors: []string{"input and output must be mappings of name to path"}}
	}

	entries := make(PathMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var entry PathEntry
		if err := node.Content[i].Decode(&entry.Name); err != nil {
			return err
		}

		value := node.Content[i+1]
		switch value.Kind {
		case yaml.SequenceNode:
			if err := value.Decode(&entry.Templates); err != nil {
				return err
			}
		default:
			var single string
			if err := value.Decode(&single); err != nil {
				return err
			}
			entry.Templates = []string{single}
		}
		entries = append(entries, entry)
	}

	*m = entries
	return nil
}
