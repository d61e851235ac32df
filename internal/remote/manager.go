package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"nathanbeddoewebdev/hzdeploy/internal/domain"

	"github.com/rs/zerolog"
)

// Method names the mechanism used for a transfer.
type Method string

const (
	MethodRsync Method = "rsync"
	MethodSFTP  Method = "sftp"
)

const defaultConnectTimeout = 10 * time.Second

// Options configure a Manager.
type Options struct {
	// PrivateKeyPath is the key used for authentication and passed to
	// rsync's ssh transport.
	PrivateKeyPath string
	// KnownHostsPath is the trust-on-first-use host key store.
	KnownHostsPath string
	// AgentSocket is the ssh-agent socket (SSH_AUTH_SOCK). Optional.
	AgentSocket string
	// ConnectTimeout bounds each connection attempt. Defaults to 10s.
	ConnectTimeout time.Duration
	// Log receives transfer and host key events. A logger carried by the
	// operation's context (zerolog.Ctx) takes its place, so a run's
	// server fields appear on its transfers.
	Log zerolog.Logger
}

// CommandRunner runs a local program.
type CommandRunner func(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error

// Manager performs SSH operations against provisioned servers.
type Manager struct {
	opts     Options
	dialer   *dialer
	release  func()
	lookPath func(string) (string, error)
	runLocal CommandRunner
}

// NewManager loads credentials and the host key store. It fails with
// domain.ErrInvalidInput when no usable key is available.
func NewManager(opts Options) (*Manager, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.KnownHostsPath == "" {
		return nil, fmt.Errorf("%w: known_hosts path is required", domain.ErrInvalidInput)
	}

	hostKey, err := trustOnFirstUse(opts.KnownHostsPath)
	if err != nil {
		return nil, err
	}
	auth, release, err := authMethods(opts.PrivateKeyPath, opts.AgentSocket, opts.Log)
	if err != nil {
		return nil, err
	}

	return &Manager{
		opts:     opts,
		dialer:   &dialer{auth: auth, hostKey: hostKey, connectTimeout: opts.ConnectTimeout},
		release:  release,
		lookPath: exec.LookPath,
		runLocal: runCommand,
	}, nil
}

// Close releases the ssh-agent connection, if any.
func (m *Manager) Close() error {
	if m.release != nil {
		m.release()
	}
	return nil
}

// logger returns the logger for an operation on t.
func (m *Manager) logger(ctx context.Context, t Target) zerolog.Logger {
	l := m.opts.Log
	if cl := zerolog.Ctx(ctx); cl.GetLevel() != zerolog.Disabled {
		l = *cl
	}
	return l.With().Str("host", t.Host).Str("user", t.User).Logger()
}

// Probe connects to t and runs `true`. A nil error means the server
// accepts logins for t.User.
func (m *Manager) Probe(ctx context.Context, t Target) error {
	c, err := m.dialer.dial(ctx, t, m.logger(ctx, t))
	if err != nil {
		return err
	}
	defer c.Close()

	return c.run(ctx, "true", io.Discard, io.Discard)
}

// Exec runs command on t, streaming output.
func (m *Manager) Exec(ctx context.Context, t Target, command string, stdout, stderr io.Writer) error {
	c, err := m.dialer.dial(ctx, t, m.logger(ctx, t))
	if err != nil {
		return err
	}
	defer c.Close()

	return c.run(ctx, command, stdout, stderr)
}

// RunScript uploads the local script to /tmp and runs it with sudo bash,
// streaming its output. Any failure wraps domain.ErrTransferFailed.
func (m *Manager) RunScript(ctx context.Context, t Target, scriptPath string, stdout, stderr io.Writer) error {
	f, err := os.Open(scriptPath)
	if err != nil {
		return fmt.Errorf("%w: open startup script: %w", domain.ErrTransferFailed, err)
	}
	defer f.Close()

	log := m.logger(ctx, t)
	c, err := m.dialer.dial(ctx, t, log)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
	}
	defer c.Close()

	remotePath := path.Join("/tmp", "hzdeploy-"+filepath.Base(scriptPath))
	if err := c.writeFile(remotePath, f, 0o700, log); err != nil {
		return fmt.Errorf("%w: upload startup script: %w", domain.ErrTransferFailed, err)
	}

	log.Info().Str("script", remotePath).Msg("running startup script")
	if err := c.run(ctx, "sudo bash "+shellQuote(remotePath), stdout, stderr); err != nil {
		log.Warn().Err(err).Str("script", remotePath).Msg("startup script failed")
		return fmt.Errorf("%w: startup script: %w", domain.ErrTransferFailed, err)
	}
	return nil
}

// Upload copies localPath into the remote user's home directory, using
// rsync when it is installed locally and SFTP otherwise. Any failure
// wraps domain.ErrTransferFailed.
func (m *Manager) Upload(ctx context.Context, t Target, localPath string) (Method, error) {
	localPath = filepath.Clean(localPath)
	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
	}

	log := m.logger(ctx, t)
	if _, err := m.lookPath("rsync"); err == nil {
		log.Debug().Str("method", string(MethodRsync)).Str("path", localPath).Msg("uploading")
		args := rsyncArgs(m.sshTransport(t), localPath, remoteSpec(t, ""))
		if err := m.runLocal(ctx, "rsync", args, nil, io.Discard, os.Stderr); err != nil {
			return MethodRsync, fmt.Errorf("%w: rsync: %w", domain.ErrTransferFailed, err)
		}
		return MethodRsync, nil
	}

	log.Debug().Str("method", string(MethodSFTP)).Str("path", localPath).Msg("uploading")
	err := m.withSFTP(ctx, t, log, func(c *client) error {
		sc, err := c.sftp()
		if err != nil {
			return err
		}
		defer sc.Close()

		home, err := sc.Getwd()
		if err != nil {
			return fmt.Errorf("resolve remote home: %w", err)
		}
		return uploadTree(sc, localPath, path.Join(home, filepath.Base(localPath)), log)
	})
	if err != nil {
		return MethodSFTP, fmt.Errorf("%w: sftp: %w", domain.ErrTransferFailed, err)
	}
	return MethodSFTP, nil
}

// Download copies remotePath to localPath with the same method
// preference as Upload. Relative remote paths resolve against the remote
// home directory.
func (m *Manager) Download(ctx context.Context, t Target, remotePath, localPath string) (Method, error) {
	log := m.logger(ctx, t)
	if _, err := m.lookPath("rsync"); err == nil {
		log.Debug().Str("method", string(MethodRsync)).Str("path", remotePath).Msg("downloading")
		args := rsyncArgs(m.sshTransport(t), remoteSpec(t, remotePath), localPath)
		if err := m.runLocal(ctx, "rsync", args, nil, io.Discard, os.Stderr); err != nil {
			return MethodRsync, fmt.Errorf("%w: rsync: %w", domain.ErrTransferFailed, err)
		}
		return MethodRsync, nil
	}

	log.Debug().Str("method", string(MethodSFTP)).Str("path", remotePath).Msg("downloading")
	err := m.withSFTP(ctx, t, log, func(c *client) error {
		sc, err := c.sftp()
		if err != nil {
			return err
		}
		defer sc.Close()

		src := remotePath
		if !path.IsAbs(src) {
			home, err := sc.Getwd()
			if err != nil {
				return fmt.Errorf("resolve remote home: %w", err)
			}
			src = path.Join(home, src)
		}

		dst := localPath
		if info, err := os.Stat(localPath); err == nil && info.IsDir() {
			dst = filepath.Join(localPath, path.Base(src))
		}
		return downloadTree(sc, src, dst, log)
	})
	if err != nil {
		return MethodSFTP, fmt.Errorf("%w: sftp: %w", domain.ErrTransferFailed, err)
	}
	return MethodSFTP, nil
}

func (m *Manager) withSFTP(ctx context.Context, t Target, log zerolog.Logger, fn func(*client) error) error {
	c, err := m.dialer.dial(ctx, t, log)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// sshArgs are the options shared by every invocation of the system ssh
// binary, directly or through rsync.
func (m *Manager) sshArgs(t Target) []string {
	args := []string{
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "UserKnownHostsFile=" + m.opts.KnownHostsPath,
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(m.opts.ConnectTimeout.Seconds())),
	}
	if m.opts.PrivateKeyPath != "" {
		args = append(args, "-i", m.opts.PrivateKeyPath)
	}
	if t.Port != 0 && t.Port != defaultPort {
		args = append(args, "-p", fmt.Sprint(t.Port))
	}
	return args
}

func (m *Manager) sshTransport(t Target) string {
	parts := []string{"ssh"}
	for _, arg := range m.sshArgs(t) {
		parts = append(parts, shellQuote(arg))
	}
	return strings.Join(parts, " ")
}

func rsyncArgs(transport, src, dst string) []string {
	return []string{"-az", "-e", transport, src, dst}
}

// remoteSpec formats an rsync remote location. An empty path is the
// remote home directory.
func remoteSpec(t Target, p string) string {
	host := t.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return t.User + "@" + host + ":" + p
}

// shellQuote quotes s for a POSIX shell unless it is made only of safe
// characters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:@,+", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func runCommand(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with status %d", name, exitErr.ExitCode())
		}
		return err
	}
	return nil
}
