package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"go.trai.ch/rnaflow/internal/ui/output"
	"go.trai.ch/rnaflow/internal/ui/style"
)

// TaskKey is the attribute that names the pipeline task a record belongs to.
// It is rendered as a "[task]" prefix, matching the run renderer's lines.
const TaskKey = "task"

// PrettyHandler is a slog.Handler writing one colored line per record.
type PrettyHandler struct {
	out   *termenv.Output
	mu    *sync.Mutex
	level slog.Leveler
	task  string
	attrs []string
	group string
}

// NewPrettyHandler creates a PrettyHandler writing to w, or to stderr when w is nil.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}

	return &PrettyHandler{
		out:   output.New(w),
		mu:    &sync.Mutex{},
		level: level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle writes the record. Multi-line messages keep their line breaks.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	task := h.task
	attrs := slices.Clone(h.attrs)
	r.Attrs(func(attr slog.Attr) bool {
		if h.group == "" && attr.Key == TaskKey {
			task = attr.Value.String()
			return true
		}
		attrs = appendAttr(attrs, h.group, attr)
		return true
	})

	if task != "" {
		b.WriteString("[" + task + "] ")
	}

	var color termenv.Color
	switch {
	case r.Level >= slog.LevelError:
		b.WriteString(style.Cross + " ")
		color = termenv.RGBColor(string(style.Red))
	case r.Level >= slog.LevelWarn:
		b.WriteString(style.Warning + " ")
		color = termenv.RGBColor(string(style.Yellow))
	default:
		color = termenv.RGBColor(string(style.Slate))
	}
	b.WriteString(r.Message)

	if len(attrs) > 0 {
		b.WriteString(" " + strings.Join(attrs, " "))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.WriteString(h.out.String(b.String()).Foreground(color).String() + "\n")
	return err
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = slices.Clone(h.attrs)
	for _, attr := range attrs {
		if h.group == "" && attr.Key == TaskKey {
			next.task = attr.Value.String()
			continue
		}
		next.attrs = appendAttr(next.attrs, h.group, attr)
	}
	return &next
}

// WithGroup returns a handler that qualifies later attribute keys with name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = qualify(h.group, name)
	return &next
}

// appendAttr renders attr as key=value, flattening nested groups into dotted keys.
func appendAttr(dst []string, group string, attr slog.Attr) []string {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	if attr.Value.Kind() == slog.KindGroup {
		prefix := group
		if attr.Key != "" {
			prefix = qualify(group, attr.Key)
		}
		for _, child := range attr.Value.Group() {
			dst = appendAttr(dst, prefix, child)
		}
		return dst
	}
	return append(dst, qualify(group, attr.Key)+"="+quote(attr.Value.String()))
}

func qualify(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

// quote leaves bare values alone and quotes those with spaces or quotes, so
// file paths and sample names stay readable.
func quote(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		return strconv.Quote(v)
	}
	return v
}
