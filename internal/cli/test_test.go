package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureScenarios = "../../testdata/scenarios"

const pickScenario = `
name: pick
description: "Base accepts a valid reply"
source: |
  schema: Pick: {
    fields: {
      x: {rule: "interval", min: 0, max: 10}
    }
  }
schema: Pick
template: "Pick a number."
replies:
  - { x: 3 }
strategy:
  kind: base
expect:
  ok: true
  calls: 1
`

func TestTestCommand_Fixtures(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", fixtureScenarios)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 7, resp.Data.Total)
	assert.Equal(t, 7, resp.Data.Passed)
	for _, s := range resp.Data.Scenarios {
		assert.True(t, s.Pass, "%s: %v", s.Name, s.Errors)
	}
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, "test", fixtureScenarios, "--filter", "fallback_*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ fallback_to_backup\n")
	assert.Contains(t, out, "✓ fallback_overrides\n")
	assert.NotContains(t, out, "repair")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pick.yaml", pickScenario)

	_, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	golden, err := os.ReadFile(filepath.Join(dir, "golden", "pick.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"pick"`)

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All scenarios passed")

	// A changed reply no longer matches the recorded trace.
	writeFile(t, dir, "pick.yaml", strings.Replace(pickScenario, "{ x: 3 }", "{ x: 4 }", 1))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ pick")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "--- golden")
	assert.Contains(t, out, "+++ actual")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pick.yaml", strings.Replace(pickScenario, "ok: true", "ok: false", 1))

	out, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)

	_, err = execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "notes.txt", "")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	writeFile(t, filepath.Join(dir, "golden"), "a.golden", "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)

	files, err = findScenarioFiles(dir, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}
