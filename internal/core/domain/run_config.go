package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Sample is a named unit of sequencing data with its paired read files.
type Sample struct {
	Name string `mapstructure:"name" validate:"required,wildcard"`
	R1   string `mapstructure:"r1" validate:"required"`
	R2   string `mapstructure:"r2" validate:"required"`
}

// RunConfig is the run configuration loaded once per invocation.
// It is never mutated after loading.
type RunConfig struct {
	WorkDir string         `mapstructure:"workdir"`
	Threads int            `mapstructure:"threads" validate:"min=1"`
	Seed    *int64         `mapstructure:"seed" validate:"required"`
	Design  string         `mapstructure:"design"`
	Samples []Sample       `mapstructure:"samples" validate:"required,min=1,unique=Name,dive"`
	Params  map[string]any `mapstructure:",remain"`
}

// SampleNames returns the configured sample names in sorted order.
func (c *RunConfig) SampleNames() []string {
	names := make([]string, len(c.Samples))
	for i, s := range c.Samples {
		names[i] = s.Name
	}
	slices.Sort(names)
	return names
}

// Sample looks up a sample by name.
func (c *RunConfig) Sample(name string) (Sample, bool) {
	i := slices.IndexFunc(c.Samples, func(s Sample) bool { return s.Name == name })
	if i < 0 {
		return Sample{}, false
	}
	return c.Samples[i], true
}

// Lookup resolves a dotted key such as "star.outFilterMultimapNmax" or "samples.S1.r1"
// to its string form. Keys of free-form parameter blocks are matched case-insensitively.
func (c *RunConfig) Lookup(key string) (string, bool) {
	parts := strings.Split(key, ".")
	switch strings.ToLower(parts[0]) {
	case "threads":
		return strconv.Itoa(c.Threads), len(parts) == 1
	case "seed":
		if c.Seed == nil || len(parts) != 1 {
			return "", false
		}
		return strconv.FormatInt(*c.Seed, 10), true
	case "workdir":
		return c.WorkDir, len(parts) == 1
	case "design":
		return c.Design, len(parts) == 1 && c.Design != ""
	case "samples":
		return c.lookupSample(parts[1:])
	}

	var cur any = c.Params
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = lookupFold(m, p)
		if !ok {
			return "", false
		}
	}
	return formatParam(cur)
}

func (c *RunConfig) lookupSample(parts []string) (string, bool) {
	if len(parts) != 2 {
		return "", false
	}
	s, ok := c.Sample(parts[0])
	if !ok {
		return "", false
	}
	switch parts[1] {
	case "r1":
		return s.R1, true
	case "r2":
		return s.R2, true
	case "name":
		return s.Name, true
	}
	return "", false
}

func lookupFold(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func formatParam(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := formatParam(item)
			if !ok {
				return "", false
			}
			items = append(items, s)
		}
		return strings.Join(items, " "), true
	case map[string]any:
		return "", false
	default:
		return fmt.Sprint(val), true
	}
}
