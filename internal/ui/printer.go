package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Printer writes progress and result lines, styled when w is a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a Printer for w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, color: IsTerminal(w)}
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *Printer) render(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Println writes an unstyled line.
func (p *Printer) Println(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Success writes a line in the success style.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(SuccessText, fmt.Sprintf(format, args...)))
}

// Warn writes a line in the warning style.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(WarningText, fmt.Sprintf(format, args...)))
}

// Title renders s as a heading.
func (p *Printer) Title(s string) string { return p.render(Title, s) }

// Label renders s as a field name.
func (p *Printer) Label(s string) string { return p.render(Label, s) }

// Accent renders s highlighted.
func (p *Printer) Accent(s string) string { return p.render(AccentText, s) }

// Muted renders s dimmed.
func (p *Printer) Muted(s string) string { return p.render(MutedText, s) }

// Status renders a server status or run outcome with its color.
func (p *Printer) Status(status string) string {
	return p.render(StatusStyle(status), status)
}
