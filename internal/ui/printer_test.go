package ui

import (
	"bytes"
	"testing"
)

func TestPrinter_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Success("Server %q ready at %s", "web-1", "203.0.113.10")
	p.Warn("DNS skipped")
	p.Println("%s %s", p.Label("Status:"), p.Status("running"))

	want := "Server \"web-1\" ready at 203.0.113.10\nDNS skipped\nStatus: running\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if IsTerminal(&buf) {
		t.Error("a buffer is not a terminal")
	}
}
