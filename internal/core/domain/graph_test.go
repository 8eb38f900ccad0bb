package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

func fileTask(name string, inputs, outputs []string) *domain.Task {
	return &domain.Task{
		Name:    domain.NewInternedString(name),
		Inputs:  domain.NewInternedStrings(inputs),
		Outputs: domain.NewInternedStrings(outputs),
	}
}

func TestGraph_Cycle(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*domain.Graph)
		wantErr     bool
		errContains string
	}{
		{
			name: "Explicit Self Dependency",
			setup: func(g *domain.Graph) {
				_ = g.AddTask(&domain.Task{
					Name:         domain.NewInternedString("A"),
					Dependencies: []domain.InternedString{domain.NewInternedString("A")},
				})
			},
			wantErr:     true,
			errContains: "cycle detected",
		},
		{
			name: "Task Consumes Its Own Output",
			setup: func(g *domain.Graph) {
				_ = g.AddTask(fileTask("A", []string{"a.txt"}, []string{"a.txt"}))
			},
			wantErr:     true,
			errContains: "cycle detected",
		},
		{
			name: "Two Tasks Through Files",
			setup: func(g *domain.Graph) {
				_ = g.AddTask(fileTask("A", []string{"b.txt"}, []string{"a.txt"}))
				_ = g.AddTask(fileTask("B", []string{"a.txt"}, []string{"b.txt"}))
			},
			wantErr:     true,
			errContains: "cycle detected",
		},
		{
			name: "Chain Through Files",
			setup: func(g *domain.Graph) {
				_ = g.AddTask(fileTask("trim", []string{"raw.fq"}, []string{"trimmed.fq"}))
				_ = g.AddTask(fileTask("align", []string{"trimmed.fq"}, []string{"aligned.bam"}))
				_ = g.AddTask(fileTask("count", []string{"aligned.bam"}, []string{"counts.tsv"}))
			},
			wantErr: false,
		},
		{
			name: "Missing Explicit Dependency",
			setup: func(g *domain.Graph) {
				_ = g.AddTask(&domain.Task{
					Name:         domain.NewInternedString("A"),
					Dependencies: []domain.InternedString{domain.NewInternedString("ghost")},
				})
			},
			wantErr:     true,
			errContains: "missing dependency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := domain.NewGraph()
			tt.setup(g)
			err := g.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGraph_CycleMetadata(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddTask(fileTask("A", []string{"b.txt"}, []string{"a.txt"})))
	require.NoError(t, g.AddTask(fileTask("B", []string{"a.txt"}, []string{"b.txt"})))

	err := g.Validate()
	require.Error(t, err)

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok, "expected *zerr.Error, got %T", err)
	assert.Equal(t, "A -> B -> A", zErr.Metadata()["cycle"])
}

func TestGraph_DuplicateOutput(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddTask(fileTask("a", nil, []string{"counts.tsv"})))

	err := g.AddTask(fileTask("b", nil, []string{"counts.tsv"}))
	require.ErrorContains(t, err, domain.ErrDuplicateOutput.Error())

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	assert.Equal(t, "counts.tsv", zErr.Metadata()["output"])
	assert.Equal(t, "a", zErr.Metadata()["producer"])

	err = g.AddTask(fileTask("a", nil, []string{"other.tsv"}))
	require.ErrorContains(t, err, domain.ErrTaskAlreadyExists.Error())
}

func TestGraph_DerivedDependencies(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddTask(fileTask("count", []string{"s1.bam", "s2.bam"}, []string{"counts.tsv"})))
	require.NoError(t, g.AddTask(fileTask("align[sample=S1]", []string{"ref.fa", "s1.fq"}, []string{"s1.bam"})))
	require.NoError(t, g.AddTask(fileTask("align[sample=S2]", []string{"ref.fa", "s2.fq"}, []string{"s2.bam"})))
	require.NoError(t, g.Validate())

	count, ok := g.GetTask(domain.NewInternedString("count"))
	require.True(t, ok)
	assert.Equal(t, []string{"align[sample=S1]", "align[sample=S2]"}, domain.Strings(count.Dependencies))

	assert.Equal(t, []string{"count"}, domain.Strings(g.Dependents(domain.NewInternedString("align[sample=S1]"))))

	var order []string
	for task := range g.Walk() {
		order = append(order, task.Name.String())
	}
	assert.Equal(t, []string{"align[sample=S1]", "align[sample=S2]", "count"}, order)

	// Validating twice must not duplicate derived edges.
	require.NoError(t, g.Validate())
	count, _ = g.GetTask(domain.NewInternedString("count"))
	assert.Len(t, count.Dependencies, 2)
}

func TestGraph_TopologicalSort(t *testing.T) {
	// A needs B and C, both need D.
	g := domain.NewGraph()
	require.NoError(t, g.AddTask(fileTask("A", []string{"b", "c"}, []string{"a"})))
	require.NoError(t, g.AddTask(fileTask("B", []string{"d"}, []string{"b"})))
	require.NoError(t, g.AddTask(fileTask("C", []string{"d"}, []string{"c"})))
	require.NoError(t, g.AddTask(fileTask("D", nil, []string{"d"})))
	require.NoError(t, g.Validate())

	seen := make(map[string]bool)
	var order []string
	for task := range g.Walk() {
		for _, dep := range task.Dependencies {
			assert.True(t, seen[dep.String()], "dependency %s must come before %s", dep, task.Name)
		}
		seen[task.Name.String()] = true
		order = append(order, task.Name.String())
	}
	assert.Equal(t, "D", order[0])
	assert.Equal(t, "A", order[3])
}

func TestGraph_ResolveTargets(t *testing.T) {
	g := domain.NewGraph()
	g.SetRoot("/work")
	trim1 := fileTask("trim[sample=S1]", []string{"S1.fq"}, []string{"results/S1.trim.fq"})
	trim1.Rule = domain.NewInternedString("trim")
	trim2 := fileTask("trim[sample=S2]", []string{"S2.fq"}, []string{"results/S2.trim.fq"})
	trim2.Rule = domain.NewInternedString("trim")
	require.NoError(t, g.AddTask(trim1))
	require.NoError(t, g.AddTask(trim2))
	require.NoError(t, g.Validate())

	tests := []struct {
		name    string
		targets []string
		want    []string
		wantErr error
	}{
		{name: "All", targets: []string{"all"}, want: []string{"trim[sample=S1]", "trim[sample=S2]"}},
		{name: "Task Name", targets: []string{"trim[sample=S2]"}, want: []string{"trim[sample=S2]"}},
		{name: "Rule Name", targets: []string{"trim"}, want: []string{"trim[sample=S1]", "trim[sample=S2]"}},
		{name: "Relative Output", targets: []string{"./results/S1.trim.fq"}, want: []string{"trim[sample=S1]"}},
		{name: "Absolute Output", targets: []string{"/work/results/S2.trim.fq"}, want: []string{"trim[sample=S2]"}},
		{name: "Deduplicated", targets: []string{"trim[sample=S1]", "results/S1.trim.fq"}, want: []string{"trim[sample=S1]"}},
		{name: "Unknown", targets: []string{"nope"}, wantErr: domain.ErrTaskNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.ResolveTargets(tt.targets)
			if tt.wantErr != nil {
				require.ErrorContains(t, err, tt.wantErr.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, domain.Strings(got))
		})
	}
}

func TestGraph_Unsatisfied(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddTask(fileTask("index", []string{"genome.fa", "genes.gtf"}, []string{"index/SA"})))
	require.NoError(t, g.AddTask(fileTask("align", []string{"index/SA", "reads.fq"}, []string{"out.bam"})))
	require.NoError(t, g.Validate())

	existing := map[string]bool{"genome.fa": true, "reads.fq": true}
	missing := g.Unsatisfied(func(p string) bool { return existing[p] })

	require.Len(t, missing, 1)
	assert.Equal(t, "index", missing[0].Task.String())
	assert.Equal(t, "genes.gtf", missing[0].Path)
}
