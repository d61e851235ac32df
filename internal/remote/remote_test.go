package remote

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nathanbeddoewebdev/hzdeploy/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func newHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return key
}

func writePrivateKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func TestTrustOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssh", "known_hosts")
	check, err := trustOnFirstUse(path)
	require.NoError(t, err)

	var logs bytes.Buffer
	log := zerolog.New(&logs).With().Str("server", "web-1").Logger()
	cb := func(hostname string, addr net.Addr, key ssh.PublicKey) error {
		return check(hostname, addr, key, log)
	}

	addr := &net.TCPAddr{IP: net.ParseIP("203.0.113.5"), Port: 22}
	key := newHostKey(t)

	require.NoError(t, cb("203.0.113.5:22", addr, key), "first contact is accepted")
	require.NoError(t, cb("203.0.113.5:22", addr, key), "known key is accepted")
	assert.Equal(t, 1, strings.Count(logs.String(), "recorded new host key"))
	assert.Contains(t, logs.String(), `"server":"web-1"`)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"), "host recorded exactly once")
	assert.True(t, strings.HasPrefix(string(data), "203.0.113.5 ssh-ed25519 "))

	err = cb("203.0.113.5:22", addr, newHostKey(t))
	assert.ErrorIs(t, err, ErrHostKeyChanged)
}

func TestAuthMethods(t *testing.T) {
	t.Run("key file", func(t *testing.T) {
		methods, release, err := authMethods(writePrivateKey(t, ""), "", zerolog.Nop())
		require.NoError(t, err)
		defer release()
		assert.Len(t, methods, 1)
	})

	t.Run("missing key and no agent", func(t *testing.T) {
		_, _, err := authMethods(filepath.Join(t.TempDir(), "absent"), "", zerolog.Nop())
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("passphrase protected", func(t *testing.T) {
		_, _, err := authMethods(writePrivateKey(t, "secret"), "", zerolog.Nop())
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, _, err := authMethods("", "", zerolog.Nop())
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unreachable agent falls back to key", func(t *testing.T) {
		methods, release, err := authMethods(writePrivateKey(t, ""), filepath.Join(t.TempDir(), "agent.sock"), zerolog.Nop())
		require.NoError(t, err)
		defer release()
		assert.Len(t, methods, 1)
	})
}

func TestNewManager_RequiresKey(t *testing.T) {
	_, err := NewManager(Options{
		PrivateKeyPath: filepath.Join(t.TempDir(), "missing"),
		KnownHostsPath: filepath.Join(t.TempDir(), "known_hosts"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func testManager(runner CommandRunner, rsyncInstalled bool) *Manager {
	return &Manager{
		opts: Options{
			PrivateKeyPath: "/home/alice/.ssh/id_ed25519",
			KnownHostsPath: "/home/alice/.ssh/known_hosts",
			ConnectTimeout: 10 * time.Second,
		},
		lookPath: func(name string) (string, error) {
			if rsyncInstalled {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
		runLocal: runner,
	}
}

type recordedCall struct {
	name string
	args []string
}

func TestUpload_PrefersRsync(t *testing.T) {
	var calls []recordedCall
	m := testManager(func(_ context.Context, name string, args []string, _ io.Reader, _, _ io.Writer) error {
		calls = append(calls, recordedCall{name, args})
		return nil
	}, true)

	dir := t.TempDir()
	method, err := m.Upload(context.Background(), Target{Host: "203.0.113.5", User: "deploy"}, dir+"/")
	require.NoError(t, err)
	assert.Equal(t, MethodRsync, method)

	want := []recordedCall{{
		name: "rsync",
		args: []string{
			"-az", "-e",
			"ssh -o StrictHostKeyChecking=accept-new -o UserKnownHostsFile=/home/alice/.ssh/known_hosts -o ConnectTimeout=10 -i /home/alice/.ssh/id_ed25519",
			filepath.Clean(dir),
			"deploy@203.0.113.5:",
		},
	}}
	if diff := cmp.Diff(want, calls, cmp.AllowUnexported(recordedCall{})); diff != "" {
		t.Errorf("rsync invocation mismatch (-want +got):\n%s", diff)
	}
}

func TestUpload_LogsCarryRunFields(t *testing.T) {
	noop := func(context.Context, string, []string, io.Reader, io.Writer, io.Writer) error { return nil }
	target := Target{Host: "203.0.113.5", User: "deploy"}

	t.Run("context logger", func(t *testing.T) {
		m := testManager(noop, true)
		m.opts.Log = zerolog.Nop()

		var logs bytes.Buffer
		ctx := zerolog.New(&logs).With().Str("server", "web-1").Str("server_id", "42").Logger().WithContext(context.Background())
		_, err := m.Upload(ctx, target, t.TempDir())
		require.NoError(t, err)

		out := logs.String()
		assert.Contains(t, out, `"server":"web-1"`)
		assert.Contains(t, out, `"server_id":"42"`)
		assert.Contains(t, out, `"host":"203.0.113.5"`)
		assert.Contains(t, out, `"user":"deploy"`)
		assert.Contains(t, out, `"method":"rsync"`)
	})

	t.Run("manager logger without context logger", func(t *testing.T) {
		var logs bytes.Buffer
		m := testManager(noop, true)
		m.opts.Log = zerolog.New(&logs).With().Str("component", "remote").Logger()

		_, err := m.Upload(context.Background(), target, t.TempDir())
		require.NoError(t, err)
		assert.Contains(t, logs.String(), `"component":"remote"`)
		assert.Contains(t, logs.String(), `"host":"203.0.113.5"`)
	})
}

func TestUpload_RsyncFailure(t *testing.T) {
	m := testManager(func(context.Context, string, []string, io.Reader, io.Writer, io.Writer) error {
		return fmt.Errorf("rsync exited with status 12")
	}, true)

	_, err := m.Upload(context.Background(), Target{Host: "203.0.113.5", User: "deploy"}, t.TempDir())
	assert.ErrorIs(t, err, domain.ErrTransferFailed)
}

func TestUpload_MissingSource(t *testing.T) {
	m := testManager(nil, true)

	_, err := m.Upload(context.Background(), Target{Host: "203.0.113.5", User: "deploy"}, filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, domain.ErrTransferFailed)
}

func TestDownload_Rsync(t *testing.T) {
	var got []string
	m := testManager(func(_ context.Context, _ string, args []string, _ io.Reader, _, _ io.Writer) error {
		got = args
		return nil
	}, true)

	method, err := m.Download(context.Background(), Target{Host: "2001:db8::1", User: "deploy", Port: 2222}, "app/logs", "/tmp/logs")
	require.NoError(t, err)
	assert.Equal(t, MethodRsync, method)
	assert.Equal(t, "deploy@[2001:db8::1]:app/logs", got[3])
	assert.Equal(t, "/tmp/logs", got[4])
	assert.Contains(t, got[2], "-p 2222")
}

func TestShell_ClearsChangedHostKey(t *testing.T) {
	var calls []recordedCall
	m := testManager(func(_ context.Context, name string, args []string, _ io.Reader, _, stderr io.Writer) error {
		calls = append(calls, recordedCall{name, args})
		if name == "ssh" && len(calls) == 1 {
			fmt.Fprintln(stderr, "@ WARNING: REMOTE HOST IDENTIFICATION HAS CHANGED! @")
			return fmt.Errorf("ssh exited with status 255")
		}
		return nil
	}, false)

	var stderr bytes.Buffer
	err := m.Shell(context.Background(), Target{Host: "203.0.113.5", User: "deploy"}, []string{"uptime"}, ShellIO{
		Stdin:  strings.NewReader("y\n"),
		Stdout: io.Discard,
		Stderr: &stderr,
	})
	require.NoError(t, err)

	require.Len(t, calls, 3)
	assert.Equal(t, "ssh", calls[0].name)
	assert.Equal(t, recordedCall{"ssh-keygen", []string{"-f", "/home/alice/.ssh/known_hosts", "-R", "203.0.113.5"}}, calls[1])
	assert.Equal(t, "ssh", calls[2].name)
	assert.Equal(t, []string{"deploy@203.0.113.5", "uptime"}, calls[2].args[len(calls[2].args)-2:])
	assert.Contains(t, stderr.String(), "Clear the old key and retry?")
}

func TestShell_DeclineClear(t *testing.T) {
	calls := 0
	m := testManager(func(_ context.Context, _ string, _ []string, _ io.Reader, _, stderr io.Writer) error {
		calls++
		fmt.Fprintln(stderr, "REMOTE HOST IDENTIFICATION HAS CHANGED")
		return fmt.Errorf("ssh exited with status 255")
	}, false)

	err := m.Shell(context.Background(), Target{Host: "203.0.113.5", User: "deploy"}, nil, ShellIO{
		Stdin:  strings.NewReader("n\n"),
		Stdout: io.Discard,
		Stderr: io.Discard,
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestShellQuote(t *testing.T) {
	tests := map[string]string{
		"":                        "''",
		"/tmp/hzdeploy-setup.sh":  "/tmp/hzdeploy-setup.sh",
		"UserKnownHostsFile=/a b": "'UserKnownHostsFile=/a b'",
		"it's":                    `'it'\''s'`,
	}
	for in, want := range tests {
		if got := shellQuote(in); got != want {
			t.Errorf("shellQuote(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRelRemote(t *testing.T) {
	got, err := relRemote("/home/deploy/app", "/home/deploy/app/sub/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "sub/file.txt", got)

	got, err = relRemote("/home/deploy/app/", "/home/deploy/app")
	require.NoError(t, err)
	assert.Equal(t, ".", got)

	_, err = relRemote("/home/deploy/app", "/home/deploy/application")
	assert.Error(t, err)
}

func newMemSFTP(t *testing.T) *sftp.Client {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	go server.Serve()

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client
}

func TestUploadAndDownloadTree(t *testing.T) {
	sc := newMemSFTP(t)

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "compose.yaml"), []byte("services: {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "config", "app.env"), []byte("PORT=8080\n"), 0o600))

	require.NoError(t, uploadTree(sc, src, "/home/deploy/app", zerolog.Nop()))

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, downloadTree(sc, "/home/deploy/app", dst, zerolog.Nop()))

	got, err := os.ReadFile(filepath.Join(dst, "compose.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "services: {}\n", string(got))

	got, err = os.ReadFile(filepath.Join(dst, "config", "app.env"))
	require.NoError(t, err)
	assert.Equal(t, "PORT=8080\n", string(got))
}
