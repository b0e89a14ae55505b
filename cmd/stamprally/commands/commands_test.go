package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/stamprally/cmd/stamprally/commands"
)

const testConfig = `scan:
  cooldown_scope: "off"
logging:
  level: error
`

// env is an isolated data directory plus config file.
type env struct {
	dir    string
	config string
}

func newEnv(t *testing.T) env {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "stamprally.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o600))

	return env{dir: filepath.Join(dir, "data"), config: cfgPath}
}

func (e env) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := commands.NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.config, "--data-dir", e.dir}, args...))

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	cmd := commands.NewRootCommand()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	for _, want := range []string{
		"scan", "status", "checkpoints", "history", "reset",
		"qr", "render", "validate", "serve", "mcp", "version",
	} {
		assert.Contains(t, names, want)
	}
}

func TestScanCommand_ArgsPersistAcrossInvocations(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	out, err := e.run(t, "", "scan", "checkpoint:coffee")
	require.NoError(t, err)
	assert.Contains(t, out, "(0/6)")

	out, err = e.run(t, "", "scan", "checkpoint:signin", `{"id":"coffee"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Stamp collected at")
	assert.Contains(t, out, "(2/6)")

	out, err = e.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "(2/6)")
	assert.Contains(t, out, "collected")
	assert.Contains(t, out, "Next:")
}

func TestScanCommand_ReadsStdin(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	out, err := e.run(t, "checkpoint:signin\nhello there\nesports\n", "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "Unrecognized code")
	assert.Contains(t, out, "(2/6)")
}

func TestResetCommand_Confirmation(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	_, err := e.run(t, "", "scan", "signin")
	require.NoError(t, err)

	_, err = e.run(t, "n\n", "reset")
	require.ErrorIs(t, err, commands.ErrResetAborted)

	out, err := e.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "(1/6)")

	out, err = e.run(t, "yes\n", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Continue?")
	assert.Contains(t, out, "(0/6)")

	_, err = e.run(t, "", "scan", "signin")
	require.NoError(t, err)

	out, err = e.run(t, "", "reset", "--yes")
	require.NoError(t, err)
	assert.NotContains(t, out, "Continue?")
	assert.Contains(t, out, "(0/6)")
}

func TestHistoryCommand(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	out, err := e.run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No scans yet.")

	_, err = e.run(t, "", "scan", "signin", "signin")
	require.NoError(t, err)

	out, err = e.run(t, "", "history", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "already_completed")
	assert.NotContains(t, out, "accepted")

	_, err = e.run(t, "", "history", "--limit", "-1")
	require.ErrorIs(t, err, commands.ErrNegativeLimit)

	out, err = e.run(t, "", "history", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")

	out, err = e.run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No scans yet.")
}

func TestCheckpointsCommand(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	out, err := e.run(t, "", "checkpoints")
	require.NoError(t, err)
	assert.Contains(t, out, "signin")
	assert.Contains(t, out, "Total: 6")

	out, err = e.run(t, "", "checkpoints", "--search", "esports")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 1")

	_, err = e.run(t, "", "checkpoints", "--sort", "distance")
	require.ErrorIs(t, err, commands.ErrUnknownSortKey)
}

func TestQRCommand(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	out, err := e.run(t, "", "qr", "signin")
	require.NoError(t, err)
	assert.Equal(t, "checkpoint:signin\n", out)

	out, err = e.run(t, "", "qr", "--format", "json", "esports")
	require.NoError(t, err)

	var doc map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, map[string]string{"type": "checkpoint", "id": "esports"}, doc)

	out, err = e.run(t, "", "qr", "--all", "--format", "direct")
	require.NoError(t, err)
	assert.Contains(t, out, "breeze")

	_, err = e.run(t, "", "qr")
	require.ErrorIs(t, err, commands.ErrNoCheckpoint)

	_, err = e.run(t, "", "qr", "nowhere")
	require.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	out, err := e.run(t, "", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "No progress record stored yet.")

	_, err = e.run(t, "", "scan", "signin")
	require.NoError(t, err)

	out, err = e.run(t, "", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"gateCompleted":"yes"}`), 0o600))

	_, err = e.run(t, "", "validate", bad)
	require.Error(t, err)

	out, err = e.run(t, "", "validate", "--schema")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
}

func TestRenderCommand(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	_, err := e.run(t, "", "scan", "signin", "coffee")
	require.NoError(t, err)

	output := filepath.Join(t.TempDir(), "out", "progress.html")

	_, err = e.run(t, "", "render", "--output", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Stamp Rally Progress")
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	out, err := e.run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "stamprally "))
}
