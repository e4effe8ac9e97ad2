// Package debug holds helpers producing readable dumps of parsed book
// structures.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

const indent = "  "

// TreeWriter accumulates an indented tree of lines, one indent step per
// depth level. Create instances with NewTreeWriter.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

// Line writes a single formatted line at the requested depth.
func (tw TreeWriter) Line(depth int, format string, args ...any) {
	for range depth {
		tw.w.WriteString(indent)
	}
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// Field writes a labeled value at the requested depth. The value is always
// quoted so empty fields and hidden whitespace show up in the dump.
func (tw TreeWriter) Field(depth int, label, value string) {
	for range depth {
		tw.w.WriteString(indent)
	}
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(strconv.Quote(value))
	tw.w.WriteByte('\n')
}
