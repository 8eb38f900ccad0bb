package domain_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/rnaflow/internal/core/domain"
)

func TestLayoutPaths(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "DefaultStatePath",
			got:      domain.DefaultStatePath(),
			expected: ".rnaflow",
		},
		{
			name:     "DefaultStorePath",
			got:      domain.DefaultStorePath(),
			expected: filepath.Join(".rnaflow", "records"),
		},
		{
			name:     "DefaultLogPath",
			got:      domain.DefaultLogPath("align[sample=S1,mate=1]"),
			expected: filepath.Join(".rnaflow", "logs", "align_sample_S1_mate_1_.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}
