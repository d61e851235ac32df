// Package remote talks to provisioned servers over SSH: reachability
// probes, command execution, script delivery and file transfer.
package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

const defaultPort = 22

// Target is a remote login.
type Target struct {
	Host string
	Port int
	User string
}

func (t Target) addr() string {
	port := t.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

func (t Target) String() string {
	return t.User + "@" + t.addr()
}

// dialer opens authenticated SSH connections.
type dialer struct {
	auth           []ssh.AuthMethod
	hostKey        hostKeyCheck
	connectTimeout time.Duration
}

// client is one SSH connection.
type client struct {
	conn   *ssh.Client
	target Target
}

// dial connects to t. The TCP connect and the SSH handshake are both
// bounded by the connect timeout. Host key events are logged to log.
func (d *dialer) dial(ctx context.Context, t Target, log zerolog.Logger) (*client, error) {
	cfg := &ssh.ClientConfig{
		User: t.User,
		Auth: d.auth,
		HostKeyCallback: func(hostname string, addr net.Addr, key ssh.PublicKey) error {
			return d.hostKey(hostname, addr, key, log)
		},
		Timeout: d.connectTimeout,
	}

	addr := t.addr()
	nd := net.Dialer{Timeout: d.connectTimeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if d.connectTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(d.connectTimeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return &client{conn: ssh.NewClient(c, chans, reqs), target: t}, nil
}

// run executes command in a new session, streaming its output. Context
// cancellation closes the session.
func (c *client) run(ctx context.Context, command string, stdout, stderr io.Writer) error {
	session, err := c.conn.NewSession()
	if err != nil {
		return fmt.Errorf("new session on %s: %w", c.target.Host, err)
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("command %q on %s: %w", command, c.target.Host, err)
		}
		return nil
	}
}

// writeFile uploads r to remotePath over SFTP.
func (c *client) writeFile(remotePath string, r io.Reader, mode os.FileMode, log zerolog.Logger) error {
	sc, err := c.sftp()
	if err != nil {
		return err
	}
	defer sc.Close()

	return writeRemoteFile(sc, remotePath, r, mode, log)
}

func (c *client) sftp() (*sftp.Client, error) {
	sc, err := sftp.NewClient(c.conn)
	if err != nil {
		return nil, fmt.Errorf("sftp client: %w", err)
	}
	return sc, nil
}

func (c *client) Close() error {
	return c.conn.Close()
}
