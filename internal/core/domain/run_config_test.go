package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/rnaflow/internal/core/domain"
)

func TestRunConfig_Lookup(t *testing.T) {
	seed := int64(42)
	cfg := &domain.RunConfig{
		WorkDir: "/data/run1",
		Threads: 8,
		Seed:    &seed,
		Samples: []domain.Sample{
			{Name: "S2", R1: "raw/S2_1.fq.gz", R2: "raw/S2_2.fq.gz"},
			{Name: "S1", R1: "raw/S1_1.fq.gz", R2: "raw/S1_2.fq.gz"},
		},
		Params: map[string]any{
			"trim": map[string]any{
				"quality":     20,
				"adapter_fwd": "AGATCGGAAGAGC",
				"min_length":  float64(25.5),
			},
			"star": map[string]any{
				"outfiltermultimapnmax": 20,
				"extra":                 []any{"--outSAMstrandField", "intronMotif"},
			},
		},
	}

	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{key: "threads", want: "8", wantOK: true},
		{key: "seed", want: "42", wantOK: true},
		{key: "workdir", want: "/data/run1", wantOK: true},
		{key: "samples.S1.r1", want: "raw/S1_1.fq.gz", wantOK: true},
		{key: "samples.S2.r2", want: "raw/S2_2.fq.gz", wantOK: true},
		{key: "samples.S3.r1", wantOK: false},
		{key: "samples.S1.r3", wantOK: false},
		{key: "trim.quality", want: "20", wantOK: true},
		{key: "trim.adapter_fwd", want: "AGATCGGAAGAGC", wantOK: true},
		{key: "trim.min_length", want: "25.5", wantOK: true},
		{key: "star.outFilterMultimapNmax", want: "20", wantOK: true},
		{key: "star.extra", want: "--outSAMstrandField intronMotif", wantOK: true},
		{key: "star", wantOK: false},
		{key: "missing.key", wantOK: false},
		{key: "design", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := cfg.Lookup(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRunConfig_Samples(t *testing.T) {
	cfg := &domain.RunConfig{
		Samples: []domain.Sample{{Name: "ctrl_2"}, {Name: "ctrl_1"}, {Name: "kd_1"}},
	}

	assert.Equal(t, []string{"ctrl_1", "ctrl_2", "kd_1"}, cfg.SampleNames())

	s, ok := cfg.Sample("kd_1")
	assert.True(t, ok)
	assert.Equal(t, "kd_1", s.Name)

	_, ok = cfg.Sample("kd_2")
	assert.False(t, ok)
}

func TestTaskName(t *testing.T) {
	assert.Equal(t, "star_index", domain.TaskName("star_index", nil))
	assert.Equal(t, "bigwig[sample=S1,strand=str1]", domain.TaskName("bigwig", []domain.Wildcard{
		{Name: "sample", Value: "S1"},
		{Name: "strand", Value: "str1"},
	}))
}

func TestTask_Slots(t *testing.T) {
	task := domain.Task{
		Wildcards: []domain.Wildcard{{Name: "sample", Value: "S1"}},
		NamedInputs: []domain.NamedPaths{
			{Name: "r1", Paths: []string{"S1_1.fq"}},
			{Name: "r2", Paths: []string{"S1_2.fq"}},
		},
		NamedOutputs: []domain.NamedPaths{{Name: "bam", Paths: []string{"S1.bam"}}},
	}

	in, ok := task.Input("r2")
	assert.True(t, ok)
	assert.Equal(t, []string{"S1_2.fq"}, in.Paths)

	_, ok = task.Input("bam")
	assert.False(t, ok)

	out, ok := task.Output("bam")
	assert.True(t, ok)
	assert.Equal(t, []string{"S1.bam"}, out.Paths)

	v, ok := task.Wildcard("sample")
	assert.True(t, ok)
	assert.Equal(t, "S1", v)
}
