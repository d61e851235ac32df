package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"nathanbeddoewebdev/hzdeploy/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execRoot(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.WarnLevel) })

	var outBuf, errBuf bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), err
}

func TestRoot_ListsCommands(t *testing.T) {
	stdout, err := execRoot(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"provision", "deploy", "manage", "auth", "config"} {
		assert.Contains(t, stdout, name)
	}
}

func TestSetup_LogLevel(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execRoot(t, "--log-level", "debug", "config", "--help")
	require.NoError(t, err)

	_, err = execRoot(t, "--log-level", "loud", "config", "list")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSetup_EnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HZDEPLOY_TEST_PRESET", "kept")

	path := filepath.Join(dir, "custom.env")
	require.NoError(t, os.WriteFile(path, []byte("HZDEPLOY_TEST_VALUE=from-file\nHZDEPLOY_TEST_PRESET=overwritten\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("HZDEPLOY_TEST_VALUE") })

	cmd := rootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--env-file", path}))
	require.NoError(t, setup(cmd, nil))

	assert.Equal(t, "from-file", os.Getenv("HZDEPLOY_TEST_VALUE"))
	assert.Equal(t, "kept", os.Getenv("HZDEPLOY_TEST_PRESET"))
}

func TestSetup_MissingEnvFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := rootCmd()
	require.NoError(t, setup(cmd, nil), "a missing default .env is ignored")

	cmd = rootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--env-file", "missing.env"}))
	assert.ErrorIs(t, setup(cmd, nil), domain.ErrInvalidInput)
}
