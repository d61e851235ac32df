package remote

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
)

// ShellIO are the streams attached to an interactive session.
type ShellIO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Shell opens an interactive session on t with the system ssh binary, or
// runs command there when it is non-empty. Unknown host keys are
// accepted. When ssh reports a changed host key (the address was reused
// by a new server) the user is asked whether to forget the old key and
// retry.
func (m *Manager) Shell(ctx context.Context, t Target, command []string, stdio ShellIO) error {
	return m.shell(ctx, t, command, stdio, true)
}

func (m *Manager) shell(ctx context.Context, t Target, command []string, stdio ShellIO, allowRetry bool) error {
	args := append(m.sshArgs(t),
		"-o", "ServerAliveInterval=60",
		"-o", "ServerAliveCountMax=3",
		t.User+"@"+t.Host,
	)
	args = append(args, command...)

	var stderrBuf bytes.Buffer
	err := m.runLocal(ctx, "ssh", args, stdio.Stdin, stdio.Stdout, io.MultiWriter(stdio.Stderr, &stderrBuf))
	if err == nil {
		return nil
	}

	if !allowRetry || !strings.Contains(stderrBuf.String(), "REMOTE HOST IDENTIFICATION HAS CHANGED") {
		return fmt.Errorf("ssh connection failed: %w", err)
	}

	fmt.Fprintf(stdio.Stderr, "\nHost key has changed (IP may have been reused by a new server).\n")
	fmt.Fprintf(stdio.Stderr, "Clear the old key and retry? [Y/n]: ")

	response, _ := bufio.NewReader(stdio.Stdin).ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	if response != "" && response != "y" && response != "yes" {
		return fmt.Errorf("ssh connection failed due to host key conflict")
	}

	fmt.Fprintf(stdio.Stderr, "Clearing old host key for %s...\n", t.Host)
	clearArgs := []string{"-f", m.opts.KnownHostsPath, "-R", t.Host}
	if err := m.runLocal(ctx, "ssh-keygen", clearArgs, nil, io.Discard, io.Discard); err != nil {
		return fmt.Errorf("failed to clear host key: %w", err)
	}

	fmt.Fprintf(stdio.Stderr, "Retrying SSH connection...\n")
	return m.shell(ctx, t, command, stdio, false)
}
