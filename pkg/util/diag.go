// Package util implements diagnostic collection and reporting for the
// preprocessor. Recoverable conditions are recorded through a Sink and
// rendered at the end of a run; only input errors are fatal.
package util

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/xplshn/gcpp/pkg/token"
)

type Severity int

const (
	SevNote Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevNote:
		return "note"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// Diag is one recoverable condition attached to a source position. File is
// the path the position refers to; empty means the main input.
type Diag struct {
	Severity Severity
	Msg      string
	Pos      token.Pos
	File     string
}

// Sink receives diagnostics from the pipeline stages and the directive
// engine. The core never writes to a user-facing surface directly.
type Sink interface {
	Report(d Diag)
}

// Collector is the default Sink: an ordered in-memory record of everything
// reported during one translation-unit run. Safe for use from the concurrent
// pipeline stages.
type Collector struct {
	mu    sync.Mutex
	diags []Diag
}

func (c *Collector) Report(d Diag) {
	c.mu.Lock()
	c.diags = append(c.diags, d)
	c.mu.Unlock()
}

func (c *Collector) Diags() []Diag {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.diags
}

// FileSink tags every diagnostic passing through with a file path before
// forwarding it. The streaming stages and recursive include processing use
// it so one Collector can serve a whole translation unit.
type FileSink struct {
	Inner Sink
	File  string
}

func (s *FileSink) Report(d Diag) {
	if d.File == "" {
		d.File = s.File
	}
	s.Inner.Report(d)
}

func (c *Collector) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.diags {
		if d.Severity == SevError {
			n++
		}
	}
	return n
}

func (c *Collector) WarningCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.diags {
		if d.Severity == SevWarning {
			n++
		}
	}
	return n
}

// Notef, Warnf and Errorf are shorthands for reporting formatted diagnostics.

func Notef(s Sink, pos token.Pos, format string, args ...any) {
	s.Report(Diag{Severity: SevNote, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func Warnf(s Sink, pos token.Pos, format string, args ...any) {
	s.Report(Diag{Severity: SevWarning, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func Errorf(s Sink, pos token.Pos, format string, args ...any) {
	s.Report(Diag{Severity: SevError, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

const (
	cRed    = "\x1b[31m"
	cYellow = "\x1b[33m"
	cCyan   = "\x1b[36m"
	cGreen  = "\x1b[32m"
	cNone   = "\x1b[0m"
)

// Reporter renders collected diagnostics to a terminal, with the source line
// and a caret under the offending column when the source is available.
type Reporter struct {
	File    string
	Content []rune
	color   bool
}

func NewReporter(file string, content []rune) *Reporter {
	return &Reporter{
		File:    file,
		Content: content,
		color:   term.IsTerminal(int(os.Stderr.Fd())),
	}
}

func (r *Reporter) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + cNone
}

// Print writes one diagnostic to stderr.
func (r *Reporter) Print(d Diag) {
	sev := d.Severity.String()
	switch d.Severity {
	case SevError:
		sev = r.paint(cRed, sev)
	case SevWarning:
		sev = r.paint(cYellow, sev)
	default:
		sev = r.paint(cCyan, sev)
	}

	if d.Pos.IsCommandLine() {
		fmt.Fprintf(os.Stderr, "<command-line>: %s: %s\n", sev, d.Msg)
		return
	}
	file := d.File
	if file == "" {
		file = r.File
	}
	fmt.Fprintf(os.Stderr, "%s:%d:%d: %s: %s\n", file, d.Pos.Line, d.Pos.Column, sev, d.Msg)
	if file == r.File {
		r.printSourceLine(d.Pos)
	}
}

// PrintAll renders every collected diagnostic in order.
func (r *Reporter) PrintAll(c *Collector) {
	for _, d := range c.Diags() {
		r.Print(d)
	}
}

func (r *Reporter) printSourceLine(pos token.Pos) {
	if len(r.Content) == 0 || pos.Line <= 0 {
		return
	}
	lineStart := 0
	line := pos.Line
	for i, ch := range r.Content {
		if line <= 1 {
			break
		}
		if ch == '\n' {
			line--
			lineStart = i + 1
		}
	}
	if line > 1 {
		return // position beyond the stored source
	}
	lineEnd := len(r.Content)
	for i := lineStart; i < len(r.Content); i++ {
		if r.Content[i] == '\n' {
			lineEnd = i
			break
		}
	}
	text := string(r.Content[lineStart:lineEnd])
	width := terminalWidth()
	if len(text) > width-2 {
		text = text[:width-2]
	}
	fmt.Fprintf(os.Stderr, "  %s\n", text)
	if pos.Column >= 1 && pos.Column <= len(text)+1 {
		fmt.Fprintf(os.Stderr, "  %s%s\n", strings.Repeat(" ", pos.Column-1), r.paint(cGreen, "^"))
	}
}

// Fatal reports an unrecoverable input error and exits. Reserved for the
// missing/unreadable-file class; everything else degrades to diagnostics.
func Fatal(format string, args ...any) {
	red := cRed
	none := cNone
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		red, none = "", ""
	}
	fmt.Fprintf(os.Stderr, "gcpp: %serror:%s ", red, none)
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width < 20 {
		return 80
	}
	return width
}
