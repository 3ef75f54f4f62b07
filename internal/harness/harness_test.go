package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/rule"
)

func parse(t *testing.T, data string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(data), "")
	require.NoError(t, err)
	return s
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(parse(t, minimalScenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "test-run-default", result.RunID)
	assert.True(t, result.Outcome.OK)
	assert.Equal(t, 1, result.Outcome.Calls)

	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, DefaultGenerator, ev.Generator)
	assert.Equal(t, "Pick a number.", ev.Prompt)
	assert.True(t, ir.Equal(ir.NewIRObject(ir.O("x", ir.IRInt(3))), ev.Reply))

	require.Len(t, result.Prompts, 1)
	assert.True(t, strings.HasPrefix(result.Prompts[0], "Pick a number.\n"))
}

func TestRun_ExpectationMismatch(t *testing.T) {
	data := strings.Replace(minimalScenario, "expect:\n  ok: true\n",
		"expect:\n  ok: true\n  reply: { x: 4 }\n  calls: 2\n", 1)

	result, err := Run(parse(t, data))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expect.reply mismatch")
	assert.Equal(t, "expect.calls: expected 2, got 1", result.Errors[1])
}

func TestRun_FailureExpectation(t *testing.T) {
	data := `
name: out_of_range
description: "Base gives up after its retries"
source: |
  schema: Pick: fields: x: {rule: "interval", min: 0, max: 10}
schema: Pick
template: "Pick a number."
replies:
  - { x: 11 }
strategy:
  kind: base
  retries: 1
  backoff: 0s
expect:
  ok: false
  short: '"x" is invalid.'
  kind: constraint_violation
  calls: 2
assertions:
  - type: waits
    waits: [0s]
`
	result, err := Run(parse(t, data))
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.False(t, result.Outcome.OK)
	assert.Equal(t, `"x" must be a number between 0 and 10`, result.Outcome.Long)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, int64(2), result.Trace[1].Seq)
}

func TestRun_AssertionFailuresAreCollected(t *testing.T) {
	data := minimalScenario + `assertions:
  - type: generator_calls
    generator: default
    count: 5
  - type: prompt_contains
    call: 1
    text: "Pick a letter."
`
	result, err := Run(parse(t, data))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "assertions[0]")
	assert.Contains(t, result.Errors[1], "assertions[1]")
}

func TestRun_FixedRunID(t *testing.T) {
	data := minimalScenario + "run_id: test-run-fixed\n"

	result, err := Run(parse(t, data))
	require.NoError(t, err)
	assert.Equal(t, "test-run-fixed", result.RunID)
	assert.Len(t, result.Trace, 1)
}

func TestRun_UnknownSchema(t *testing.T) {
	data := strings.Replace(minimalScenario, "schema: Pick\n", "schema: Missing\n", 1)

	_, err := Run(parse(t, data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown schema "Missing"`)
	assert.Contains(t, err.Error(), "Pick")
}

func TestRun_BadSource(t *testing.T) {
	data := strings.Replace(minimalScenario, `x: {rule: "interval", min: 0, max: 10}`, `x: {rule: "no_such_rule"}`, 1)

	_, err := Run(parse(t, data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile schemas")
}

func TestRunWithRegistry_NilMeansDefault(t *testing.T) {
	s := parse(t, minimalScenario)

	a, err := RunWithRegistry(s, nil)
	require.NoError(t, err)
	b, err := RunWithRegistry(s, rule.DefaultRegistry())
	require.NoError(t, err)

	assert.Equal(t, a.Outcome, b.Outcome)
	assert.Equal(t, a.Trace, b.Trace)
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("../../testdata/scenarios/fallback_to_backup.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Snapshot(s.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
