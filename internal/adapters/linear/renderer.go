// Package linear provides a line-oriented renderer for pipeline runs. Every line
// carries its task name, so interleaved output of parallel tasks stays attributable
// in batch logs.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/rnaflow/internal/core/ports"
	"go.trai.ch/rnaflow/internal/ui/output"
	"go.trai.ch/rnaflow/internal/ui/style"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer implements ports.Renderer. Tool output goes to stdout as "[task] line",
// lifecycle lines go to stderr.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	term   *termenv.Output

	mu      sync.Mutex
	spans   map[string]*taskLines
	total   int
	started int
}

// taskLines holds the state of one running task: its name, when it started and the
// unterminated tail of its output.
type taskLines struct {
	name    string
	start   time.Time
	partial []byte
}

// NewRenderer creates a new Renderer. Nil writers default to the process streams.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Renderer{
		stdout: stdout,
		stderr: stderr,
		term:   output.New(stderr),
		spans:  make(map[string]*taskLines),
	}
}

// Start is a no-op; lines are written as events arrive.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop writes out the partial lines of tasks that never completed.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.spans {
		r.flushLocked(t)
	}
	return nil
}

// Wait is a no-op; there is nothing to drain.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit announces the run and remembers its size for progress counters.
func (r *Renderer) OnPlanEmit(tasks []string, _ map[string][]string, targets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total = len(tasks)
	r.started = 0
	r.printf("Planning %d task(s) for target(s): %s\n", len(tasks), strings.Join(targets, ", "))
}

// OnTaskStart tracks the span. Tasks that execute get a start line with their
// position in the run and the reason they run.
func (r *Renderer) OnTaskStart(spanID, name, reason string, startTime time.Time, upToDate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.spans[spanID] = &taskLines{name: name, start: startTime}
	if upToDate {
		return
	}

	r.started++
	line := r.label(name).String() + " Starting"
	if r.total > 0 {
		line += fmt.Sprintf(" (%d/%d)", r.started, r.total)
	}
	if reason != "" {
		line += ": " + reason
	} else {
		line += "..."
	}
	r.printf("%s\n", line)
}

// OnTaskLog writes every complete line of data and keeps the rest for later.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.spans[spanID]
	if !ok {
		return
	}

	t.partial = append(t.partial, data...)
	for {
		i := bytes.IndexByte(t.partial, '\n')
		if i < 0 {
			break
		}
		r.writeLineLocked(t.name, t.partial[:i])
		t.partial = t.partial[i+1:]
	}
	if len(t.partial) == 0 {
		t.partial = nil
	}
}

// OnTaskComplete writes the remaining output of the task and its outcome.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, err error, upToDate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.spans[spanID]
	if !ok {
		return
	}
	delete(r.spans, spanID)
	r.flushLocked(t)

	elapsed := endTime.Sub(t.start).Round(time.Millisecond)
	switch {
	case err != nil:
		mark := r.term.String(style.Cross).Foreground(termenv.ANSIRed)
		r.printf("%s %s Failed after %v: %v\n", r.label(t.name), mark, elapsed, err)
	case upToDate:
		mark := r.term.String(style.Check).Faint()
		r.printf("%s %s Up to date\n", r.label(t.name), mark)
	default:
		mark := r.term.String(style.Check).Foreground(termenv.ANSIGreen)
		r.printf("%s %s Completed in %v\n", r.label(t.name), mark, elapsed)
	}
}

func (r *Renderer) label(name string) termenv.Style {
	return r.term.String("[" + name + "]").Faint()
}

// printf must be called with r.mu held.
func (r *Renderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.stderr, format, args...)
}

// flushLocked writes the unterminated output of t as a final line.
func (r *Renderer) flushLocked(t *taskLines) {
	if len(t.partial) > 0 {
		r.writeLineLocked(t.name, t.partial)
		t.partial = nil
	}
}

// writeLineLocked writes one line of tool output. Carriage returns of progress
// meters are dropped and blank lines skipped.
func (r *Renderer) writeLineLocked(name string, line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.stdout, "[%s] %s\n", name, line)
}
