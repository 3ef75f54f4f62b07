package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceResult(gens ...string) *Result {
	r := NewResult()
	for i, g := range gens {
		r.Trace = append(r.Trace, TraceEvent{Seq: int64(i + 1), Generator: g, Prompt: "Pick a number."})
		r.Prompts = append(r.Prompts, "Pick a number.\nReply with JSON.")
	}
	return r
}

func TestAssertPromptContains(t *testing.T) {
	r := traceResult("default", "default")

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertPromptContains, Call: 2, Text: "Reply with JSON."},
	}, nil)
	assert.Empty(t, errs)

	errs = EvaluateAssertions(r, []Assertion{
		{Type: AssertPromptContains, Call: 1, Text: "FIX:"},
		{Type: AssertPromptContains, Call: 3, Text: "Pick"},
	}, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[0]")
	assert.Contains(t, errs[0], `prompt of call 1 to contain "FIX:"`)
	assert.Contains(t, errs[1], "assertions[1]")
	assert.Contains(t, errs[1], "2 calls made")
}

func TestAssertGeneratorCalls(t *testing.T) {
	r := traceResult("default", "backup", "default")

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertGeneratorCalls, Generator: "default", Count: 2},
		{Type: AssertGeneratorCalls, Generator: "backup", Count: 1},
		{Type: AssertGeneratorCalls, Generator: "other", Count: 0},
	}, nil))

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertGeneratorCalls, Generator: "backup", Count: 2},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "2 calls to backup")
	assert.Contains(t, errs[0], "Actual: 1 calls")
}

func TestAssertCallOrder(t *testing.T) {
	r := traceResult("default", "default", "backup")

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertCallOrder, Generators: []string{"default", "default", "backup"}},
	}, nil))

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertCallOrder, Generators: []string{"default", "backup"}},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Expected: [default backup]")
	assert.Contains(t, errs[0], "Actual: [default default backup]")
}

func TestAssertWaits(t *testing.T) {
	r := traceResult("default")
	actx := &AssertionContext{Waits: []time.Duration{time.Second, 2 * time.Second}}

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertWaits, Waits: []time.Duration{time.Second, 2 * time.Second}},
	}, actx))

	errs := EvaluateAssertions(r, []Assertion{{Type: AssertWaits}}, actx)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Actual: [1s 2s]")

	// no context means nothing waited
	assert.Empty(t, EvaluateAssertions(r, []Assertion{{Type: AssertWaits}}, nil))
}

func TestUnknownAssertionType(t *testing.T) {
	errs := EvaluateAssertions(traceResult(), []Assertion{{Type: "trace_contains"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "trace_contains"`)
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertCallOrder,
		Expected: "[backup]",
		Actual:   "[default]",
		Trace:    traceResult("default").Trace,
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: call_order")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, `[1] default "Pick a number."`)
}
