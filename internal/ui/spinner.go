package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/huh/spinner"
)

// Spin runs fn while title is shown on w. On a terminal the wait is drawn
// as a spinner and fn's progress writer discards its lines; otherwise
// title is printed as a plain line and progress goes to w.
func Spin(w io.Writer, title string, fn func(progress io.Writer) error) error {
	if !IsTerminal(w) {
		fmt.Fprintln(w, title)
		return fn(w)
	}

	var err error
	spinErr := spinner.New().
		Title(title).
		Output(w).
		Action(func() {
			err = fn(io.Discard)
		}).
		Run()
	if spinErr != nil {
		return spinErr
	}
	return err
}
