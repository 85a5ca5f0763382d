package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titannode/titannode/internal/config"
	"github.com/titannode/titannode/internal/credentials"
	"github.com/titannode/titannode/internal/orchestrator"
	"github.com/titannode/titannode/internal/version"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	// Keep the host environment out of credential lookups.
	t.Setenv("REFRESH_TOKEN", "")
	for i := 1; i <= 5; i++ {
		t.Setenv(credentials.NumberedKeyPrefix+string(rune('0'+i)), "")
	}

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	defer slog.SetDefault(slog.Default())
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", stdout)
}

func TestRunRequiresCredentials(t *testing.T) {
	dir := t.TempDir()

	stdout, _, err := executeCLI(t, "run",
		"--env", filepath.Join(dir, "missing.env"),
		"--proxies", "",
		"--no-color",
	)
	require.ErrorIs(t, err, credentials.ErrNoCredentials)
	assert.Contains(t, stdout, "[ERROR] failed to load credentials")
}

func TestRunRejectsTooFewProxies(t *testing.T) {
	dir := t.TempDir()
	env := writeFile(t, dir, ".env", "REFRESH_TOKEN_1=a\nREFRESH_TOKEN_2=b\nREFRESH_TOKEN_3=c\n")
	proxies := writeFile(t, dir, "proxies.txt", "http://10.0.0.1:8080\nhttp://10.0.0.2:8080\n")

	stdout, _, err := executeCLI(t, "run", "--env", env, "--proxies", proxies, "--no-color")
	require.ErrorIs(t, err, orchestrator.ErrInsufficientProxies)
	assert.Contains(t, stdout, "refusing to start")
	assert.NotContains(t, stdout, "launching identities")
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "connection:\n  max_reconnect_attempts: -1\n")

	_, _, err := executeCLI(t, "run", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestRunRejectsBadLogLevel(t *testing.T) {
	_, _, err := executeCLI(t, "run", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestOrchestratorConfig(t *testing.T) {
	cfg := config.Default()
	cfg.API.PollInterval = 5 * time.Minute
	cfg.Logging.Dir = "/var/log/titannode"

	oc := orchestratorConfig(cfg, slog.LevelDebug)

	assert.Equal(t, 15*time.Second, oc.Stagger)
	assert.Equal(t, 30*time.Second, oc.Supervisor.KeepaliveInterval)
	assert.Equal(t, 300*time.Second, oc.Supervisor.ReconnectBaseWait)
	assert.Equal(t, 5, oc.Supervisor.MaxReconnectAttempts)
	assert.Equal(t, 5*time.Minute, oc.Supervisor.PollInterval)
	assert.Equal(t, 256, oc.Supervisor.MessageBufferSize)
	assert.Len(t, oc.Session, 4)
	assert.Equal(t, "/var/log/titannode", oc.Files.Dir)
	assert.Equal(t, slog.LevelDebug, oc.Files.Level)
}
