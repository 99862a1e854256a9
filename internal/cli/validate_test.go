package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout, stderr,
// and the command error.
func execute(args ...string) (string, string, error) {
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeDefinitions(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "missions.cue"), []byte(src), 0o644))
	return dir
}

const validMissionCUE = `
mission: "alpha": {
	title: "Alpha"
	objectives: [{id: "o1", type: "network-scan", target: "net"}]
}
`

func TestValidate_ValidDirectory(t *testing.T) {
	dir := writeDefinitions(t, validMissionCUE)

	out, _, err := execute("validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 mission(s) valid")
}

func TestValidate_MissingTitle(t *testing.T) {
	dir := writeDefinitions(t, `mission: "broken": {
	objectives: [{id: "o1", type: "network-scan", target: "net"}]
}
`)

	out, _, err := execute("validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "title")
}

func TestValidate_UnknownObjectiveType(t *testing.T) {
	dir := writeDefinitions(t, `mission: "broken": {
	title: "Broken"
	objectives: [{id: "o1", type: "teleport", target: "net"}]
}
`)

	out, _, err := execute("validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "teleport")
}

func TestValidate_MissingDirectory(t *testing.T) {
	_, _, err := execute("validate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate_JSONOutput(t *testing.T) {
	dir := writeDefinitions(t, validMissionCUE)

	out, _, err := execute("validate", dir, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidate_JSONOutputOnFailure(t *testing.T) {
	dir := writeDefinitions(t, `mission: "broken": {
	objectives: [{id: "o1", type: "network-scan", target: "net"}]
}
`)

	out, _, err := execute("validate", dir, "--format", "json")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
}
