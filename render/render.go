// Package render prints analysis findings as compiler-style diagnostics:
// an error header, then for each involved source position the offending
// line with a caret underneath and a short label.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wrybill/memcheck"
	"github.com/wrybill/memcheck/internal/format"
	"github.com/wrybill/memcheck/ir"
)

// Renderer writes diagnostics. Source excerpts are read lazily from the
// files named in spans and cached; spans whose files cannot be read are
// rendered without an excerpt.
type Renderer struct {
	w     io.Writer
	files map[string][]string
}

func New(w io.Writer) *Renderer {
	return &Renderer{w: w, files: make(map[string][]string)}
}

// Diagnostics renders every finding of the result, use-after-free first.
func Diagnostics(w io.Writer, res *memcheck.Result) {
	r := New(w)
	for _, rec := range res.UseAfterFree() {
		r.UseAfterFree(rec)
	}
	for _, rec := range res.MultiDrops() {
		r.MultiDrop(rec)
	}
}

func (r *Renderer) UseAfterFree(rec memcheck.UseAfterFreeRecord) {
	r.header("use after free", subject(rec.DropVar))
	r.span(rec.DropSpan, "first drop here")
	r.span(rec.UseSpan, "then dereference here")
	fmt.Fprintln(r.w)
}

func (r *Renderer) MultiDrop(rec memcheck.MultiDropRecord) {
	r.header("double drop", subject(rec.FirstVar))
	r.span(rec.FirstDrop, "first drop here")
	r.span(rec.ThenDrop, "then dropped again here")
	fmt.Fprintln(r.w)
}

func subject(varName string) string {
	if varName == "" {
		return "value"
	}
	return fmt.Sprintf("`%s`", varName)
}

func (r *Renderer) header(kind, subject string) {
	fmt.Fprintf(r.w, "%s: %s of %s\n",
		format.Red("error"), format.Bold(kind), format.Bold(subject))
}

func (r *Renderer) span(s ir.Span, label string) {
	if !s.IsValid() {
		fmt.Fprintf(r.w, "  %s <unknown>: %s\n", format.Blue("-->"), label)
		return
	}
	fmt.Fprintf(r.w, "  %s %s\n", format.Blue("-->"), s)

	line, ok := r.sourceLine(s)
	if !ok {
		fmt.Fprintf(r.w, "   %s %s\n", format.Blue("|"), format.Yellow("^ "+label))
		return
	}
	gutter := fmt.Sprintf("%4d", s.Line)
	pad := strings.Repeat(" ", len(gutter))
	fmt.Fprintf(r.w, "%s %s\n", pad, format.Blue("|"))
	fmt.Fprintf(r.w, "%s %s %s\n", format.Blue(gutter), format.Blue("|"), line)
	fmt.Fprintf(r.w, "%s %s %s%s\n", pad, format.Blue("|"),
		strings.Repeat(" ", caretOffset(line, s.Col)), format.Yellow("^ "+label))
}

// caretOffset converts a 1-based column to a rune offset into line, clamped
// to the line length.
func caretOffset(line string, col int) int {
	if col < 1 {
		return 0
	}
	n := len([]rune(line))
	if col-1 > n {
		return n
	}
	return col - 1
}

func (r *Renderer) sourceLine(s ir.Span) (string, bool) {
	lines, ok := r.files[s.File]
	if !ok {
		data, err := os.ReadFile(s.File)
		if err != nil {
			r.files[s.File] = nil
		} else {
			r.files[s.File] = strings.Split(string(data), "\n")
		}
		lines = r.files[s.File]
	}
	if lines == nil || s.Line < 1 || s.Line > len(lines) {
		return "", false
	}
	return strings.TrimRight(lines[s.Line-1], "\r"), true
}

// Summary prints the one-line run summary.
func Summary(w io.Writer, res *memcheck.Result) {
	s := res.Summary()
	status := format.Green("ok")
	if s.UseAfterFree > 0 || s.MultiDrop > 0 {
		status = format.Red(fmt.Sprintf("%d finding(s)", s.UseAfterFree+s.MultiDrop))
	}
	fmt.Fprintf(w, "%s: %d entries, %d functions, %d contexts, %d objects; %d use-after-free, %d double-drop\n",
		status, s.Entries, s.Functions, s.Contexts, s.Objects, s.UseAfterFree, s.MultiDrop)
}
