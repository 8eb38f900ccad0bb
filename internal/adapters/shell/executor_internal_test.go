package shell

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveEnvironment(t *testing.T) {
	tests := []struct {
		name     string
		sysEnv   []string
		schedEnv []string
		taskEnv  map[string]string
		expected []string
	}{
		{
			name:     "System Only (Filtered)",
			sysEnv:   []string{"USER=test", "SSH_AUTH_SOCK=/tmp/ssh", "PATH=/bin", "AWS_SECRET=key"},
			expected: []string{"PATH=/bin", "USER=test"},
		},
		{
			name:     "Scheduler Adds Threads",
			sysEnv:   []string{"PATH=/bin"},
			schedEnv: []string{"THREADS=4", "RNAFLOW_RUN_ID=abc"},
			expected: []string{"PATH=/bin", "RNAFLOW_RUN_ID=abc", "THREADS=4"},
		},
		{
			name:     "Task Overrides",
			sysEnv:   []string{"PATH=/bin", "LANG=en_US.UTF-8"},
			schedEnv: []string{"THREADS=4"},
			taskEnv:  map[string]string{"LANG": "C", "PATH": "/opt/star/bin"},
			expected: []string{"LANG=C", "PATH=/opt/star/bin", "THREADS=4"},
		},
		{
			name:     "Malformed Entries Ignored",
			sysEnv:   []string{"PATH", "HOME=/home/u"},
			schedEnv: []string{"BROKEN"},
			expected: []string{"HOME=/home/u"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveEnvironment(tt.sysEnv, tt.schedEnv, tt.taskEnv))
		})
	}
}

func TestTailBuffer(t *testing.T) {
	tail := newTailBuffer(3)
	for _, chunk := range []string{"one\ntw", "o\nthree\n", "four\r\nfi"} {
		_, _ = tail.Write([]byte(chunk))
	}
	assert.Equal(t, "three\nfour\nfi", tail.String())

	empty := newTailBuffer(2)
	assert.Empty(t, empty.String())
}

func TestTailBuffer_KeepsLastLines(t *testing.T) {
	tail := newTailBuffer(TailLines)
	var b strings.Builder
	for i := range 50 {
		b.WriteString("line ")
		b.WriteByte(byte('a' + i%26))
		b.WriteByte('\n')
	}
	_, _ = tail.Write([]byte(b.String()))

	lines := strings.Split(tail.String(), "\n")
	assert.Len(t, lines, TailLines)
	assert.Equal(t, "line x", lines[len(lines)-1])
}

func TestTailBuffer_BoundsLinesWithoutNewline(t *testing.T) {
	tail := newTailBuffer(2)
	progress := []byte(strings.Repeat("\r 42% [=====>    ]", 100))
	for range 100 {
		_, _ = tail.Write(progress)
	}
	assert.LessOrEqual(t, len(tail.partial), tailLineBytes)
	assert.True(t, strings.HasSuffix(tail.String(), "\r 42% [=====>    ]"))

	_, _ = tail.Write([]byte("\ndone\n"))
	lines := strings.Split(tail.String(), "\n")
	assert.Equal(t, "done", lines[1])
	assert.LessOrEqual(t, len(lines[0]), tailLineBytes)
}

func TestLookPath(t *testing.T) {
	_, err := lookPath("sh", nil)
	assert.Error(t, err)

	p, err := lookPath("sh", []string{"PATH=/nonexistent:/bin:/usr/bin"})
	if assert.NoError(t, err) {
		assert.True(t, strings.HasSuffix(p, "/sh"))
	}
}
