package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/generator"
	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/strategy"
)

type runResponse struct {
	Status string    `json:"status"`
	Data   RunResult `json:"data"`
	Error  *CLIError `json:"error"`
	RunID  string    `json:"run_id"`
}

func pick(x int64) ir.IRValue {
	return ir.NewIRObject(ir.O("x", ir.IRInt(x)))
}

// runWith executes the run command against a scripted generator.
func runWith(t *testing.T, gen generator.Generator, format string, args ...string) (string, error) {
	t.Helper()
	cmd := newRunCommand(&RunOptions{
		SchemaOptions: SchemaOptions{RootOptions: &RootOptions{Format: format}},
		Generator:     gen,
		RunIDs:        strategy.NewFixedGenerator("run-1", "run-2", "run-3"),
	})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{fixtureSchemas, "-s", "Pick", "-t", "Pick a number."}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand_Valid(t *testing.T) {
	out, err := runWith(t, generator.NewScripted(pick(7)), "json")
	require.NoError(t, err)

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.OK)
	assert.Equal(t, 1, resp.Data.Calls)
	assert.JSONEq(t, `{"x": 7}`, string(resp.Data.Reply))
	assert.Empty(t, resp.RunID, "run id is only reported for recorded runs")
}

func TestRunCommand_Text(t *testing.T) {
	out, err := runWith(t, generator.NewScripted(pick(3)), "text")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"x\": 3\n}\n", out)
}

func TestRunCommand_Repairs(t *testing.T) {
	gen := generator.NewScripted(pick(50), pick(4))
	out, err := runWith(t, gen, "json", "--depth", "1")
	require.NoError(t, err)

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.OK)
	assert.Equal(t, 2, resp.Data.Calls)
	assert.JSONEq(t, `{"x": 4}`, string(resp.Data.Reply))
}

func TestRunCommand_Exhausted(t *testing.T) {
	out, err := runWith(t, generator.NewScripted(pick(50)), "json", "--strategy", "base")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeExhausted, resp.Error.Code)
	assert.Equal(t, `"x" is invalid.`, resp.Error.Message)
}

func TestRunCommand_Records(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	out, err := runWith(t, generator.NewScripted(pick(50), pick(2)), "json", "--db", db)
	require.NoError(t, err)

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "run-1", resp.RunID)

	// Replay serves the recorded replies without touching the generator.
	out, err = runWith(t, nil, "json", "--db", db, "--replay", "run-1")
	require.NoError(t, err)
	var replay runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &replay))
	assert.Empty(t, replay.RunID)
	assert.True(t, replay.Data.OK)
	assert.Equal(t, 2, replay.Data.Calls)
	assert.JSONEq(t, `{"x": 2}`, string(replay.Data.Reply))
}

func TestRunCommand_Fallback(t *testing.T) {
	gen := generator.NewScripted(pick(50), pick(4))
	out, err := runWith(t, gen, "json", "--strategy", "fallback", "--fallback-template", "Pick a smaller number.")
	require.NoError(t, err)

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.OK)
	assert.Equal(t, 2, resp.Data.Calls)
	assert.JSONEq(t, `{"x": 4}`, string(resp.Data.Reply))

	prompts := gen.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "Pick a number.")
	assert.Contains(t, prompts[1], "Pick a smaller number.")
}

func TestRunCommand_FallbackExhausted(t *testing.T) {
	out, err := runWith(t, generator.NewScripted(pick(50)), "json", "--strategy", "fallback", "--fallback-template", "Pick a smaller number.")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.Calls)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeExhausted, resp.Error.Code)
}

func TestRunCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown strategy", []string{"--strategy", "magic"}, ErrCodeConfig},
		{"replay without store", []string{"--replay", "run-1"}, ErrCodeConfig},
		{"bad mode", []string{"--mode", "half"}, ErrCodeConfig},
		{"unknown schema", []string{"-s", "Nope"}, ErrCodeNoSchema},
		{"bad var", []string{"--var", "novalue"}, ErrCodeBadInput},
		{"fallback without template", []string{"--strategy", "fallback"}, ErrCodeConfig},
		{"fallback template missing var", []string{"--strategy", "fallback", "--fallback-template", "Pick for {who}."}, ErrCodeBadInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runWith(t, generator.NewScripted(pick(1)), "json", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp runResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestRunCommand_MissingTemplate(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", fixtureSchemas, "-s", "Pick"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template")
}
