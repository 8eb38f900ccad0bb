package logger

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// messager describes an error that can report its own message without the chain.
type messager interface {
	Message() string
}

// multiError is implemented by errors.Join results.
type multiError interface {
	Unwrap() []error
}

type errorField struct {
	key   string
	value string
}

// errorEntry is one link of an error chain: its own message and metadata.
type errorEntry struct {
	message string
	fields  []errorField
}

// collectErrorEntries walks a single error chain. Links without a message of their
// own (metadata attached to a plain error) hand their fields to the next link.
func collectErrorEntries(err error) []errorEntry {
	var entries []errorEntry
	var pending []errorField

	for current := err; current != nil; {
		if _, ok := current.(multiError); ok {
			entries = append(entries, errorEntry{message: current.Error(), fields: pending})
			pending = nil
			break
		}

		m, ok := current.(messager)
		if !ok {
			entries = append(entries, errorEntry{message: current.Error(), fields: pending})
			pending = nil
			break
		}

		fields := slices.Concat(pending, metadataFields(current))
		if m.Message() == "" {
			pending = fields
		} else {
			entries = append(entries, errorEntry{message: m.Message(), fields: fields})
			pending = nil
		}
		current = errors.Unwrap(current)
	}

	if len(pending) > 0 && len(entries) > 0 {
		last := &entries[len(entries)-1]
		last.fields = append(last.fields, pending...)
	}
	return entries
}

func metadataFields(err error) []errorField {
	z, ok := err.(*zerr.Error)
	if !ok {
		return nil
	}
	meta := z.Metadata()
	fields := make([]errorField, 0, len(meta))
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		fields = append(fields, errorField{key: k, value: fmt.Sprint(meta[k])})
	}
	return fields
}

// formatErrorEntries renders a chain as a headline followed by its causes.
func formatErrorEntries(entries []errorEntry) string {
	var lines []string
	for i, entry := range entries {
		msgLines := strings.Split(entry.message, "\n")
		indent := "      "
		switch i {
		case 0:
			lines = append(lines, "Error: "+msgLines[0])
			indent = "       "
		case 1:
			lines = append(lines, "", "  Caused by:")
			fallthrough
		default:
			lines = append(lines, "    → "+msgLines[0])
		}
		for _, line := range msgLines[1:] {
			lines = append(lines, indent+line)
		}
		for _, f := range entry.fields {
			lines = append(lines, formatField(indent, f)...)
		}
	}
	return strings.Join(lines, "\n")
}

func formatField(indent string, f errorField) []string {
	valueLines := strings.Split(strings.TrimRight(f.value, "\n"), "\n")
	if len(valueLines) == 1 {
		return []string{indent + f.key + ": " + valueLines[0]}
	}
	lines := make([]string, 0, len(valueLines)+1)
	lines = append(lines, indent+f.key+":")
	for _, v := range valueLines {
		lines = append(lines, indent+"  | "+v)
	}
	return lines
}

// flattenJoined expands errors.Join trees into their leaves.
func flattenJoined(err error) []error {
	if m, ok := err.(multiError); ok {
		var out []error
		for _, child := range m.Unwrap() {
			out = append(out, flattenJoined(child)...)
		}
		return out
	}
	return []error{err}
}

// formatError renders every leaf of err as its own block.
func formatError(err error) string {
	leaves := flattenJoined(err)
	blocks := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		if leaf == nil {
			continue
		}
		blocks = append(blocks, formatErrorEntries(collectErrorEntries(leaf)))
	}
	return strings.Join(blocks, "\n\n")
}
