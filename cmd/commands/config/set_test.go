package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"nathanbeddoewebdev/hzdeploy/internal/config"
	dnsdomain "nathanbeddoewebdev/hzdeploy/internal/dns/domain"
	dnsproviders "nathanbeddoewebdev/hzdeploy/internal/dns/providers"
	"nathanbeddoewebdev/hzdeploy/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestConfig points the config package at a temp file and returns its path.
func setupTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	config.SetPath(path)
	t.Cleanup(config.ResetPath)
	return path
}

// registerDNSProvider registers a stub in the global DNS registry.
func registerDNSProvider(t *testing.T, name string) {
	t.Helper()
	dnsproviders.Reset()
	t.Cleanup(dnsproviders.Reset)
	dnsproviders.Register(name, func(dnsproviders.Credentials) (dnsdomain.Provider, error) {
		return nil, nil
	})
}

// execConfig runs the config command with args and returns its output.
func execConfig(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), err
}

func TestSet_ServerType(t *testing.T) {
	path := setupTestConfig(t)

	stdout, err := execConfig(t, "set", "server-type", " cx32 ")
	require.NoError(t, err)
	assert.Contains(t, stdout, `server-type set to "cx32"`)

	prefs, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "cx32", prefs.ServerType)
}

func TestSet_DNSProvider(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "registered", value: "cloudflare", want: "cloudflare"},
		{name: "case insensitive", value: "CloudFlare", want: "cloudflare"},
		{name: "unknown", value: "route53", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := setupTestConfig(t)
			registerDNSProvider(t, "cloudflare")

			_, err := execConfig(t, "set", "dns-provider", tt.value)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidInput)
				assert.Contains(t, err.Error(), "unknown DNS provider")
				return
			}
			require.NoError(t, err)

			prefs, err := config.LoadFrom(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, prefs.DNSProvider)
		})
	}
}

func TestSet_RejectsRootUser(t *testing.T) {
	setupTestConfig(t)

	_, err := execConfig(t, "set", "remote-user", "root")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSet_EmptyValueClears(t *testing.T) {
	path := setupTestConfig(t)
	require.NoError(t, (&config.Preferences{Image: "debian-12"}).SaveTo(path))

	stdout, err := execConfig(t, "set", "image", "")
	require.NoError(t, err)
	assert.Contains(t, stdout, "image cleared")

	prefs, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Empty(t, prefs.Image)
}

func TestSet_UnknownKey(t *testing.T) {
	setupTestConfig(t)

	_, err := execConfig(t, "set", "bogus-key", "value")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "unknown configuration key")
}

func TestGet(t *testing.T) {
	path := setupTestConfig(t)

	stdout, err := execConfig(t, "get", "location")
	require.NoError(t, err)
	assert.Equal(t, "not set\n", stdout)

	require.NoError(t, (&config.Preferences{Location: "hel1"}).SaveTo(path))

	stdout, err = execConfig(t, "get", "LOCATION")
	require.NoError(t, err)
	assert.Equal(t, "hel1\n", stdout)
}

func TestGet_UnknownKey(t *testing.T) {
	setupTestConfig(t)

	_, err := execConfig(t, "get", "bogus-key")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestList(t *testing.T) {
	path := setupTestConfig(t)
	require.NoError(t, (&config.Preferences{ServerType: "cx32"}).SaveTo(path))

	stdout, err := execConfig(t, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 1+len(config.Keys))
	assert.Contains(t, lines[1], "server-type")
	assert.Contains(t, lines[1], "cx32")
	assert.Contains(t, lines[1], config.EnvServerType)
	assert.Contains(t, lines[2], "(not set)")
}
