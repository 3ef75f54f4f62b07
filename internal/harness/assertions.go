package harness

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// AssertionContext carries run state the trace alone does not show.
type AssertionContext struct {
	// Waits are the backoff durations requested during the run, in order.
	Waits []time.Duration
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %q\n", i+1, event.Generator, event.Prompt)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. Evaluation does not stop at the first failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	if actx == nil {
		actx = &AssertionContext{}
	}
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertPromptContains:
			err = assertPromptContains(result, a)
		case AssertGeneratorCalls:
			err = assertGeneratorCalls(result.Trace, a)
		case AssertCallOrder:
			err = assertCallOrder(result.Trace, a)
		case AssertWaits:
			err = assertWaits(actx.Waits, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertPromptContains checks that the full prompt of call a.Call (1-based)
// contains a.Text.
func assertPromptContains(result *Result, a Assertion) error {
	if a.Call < 1 || a.Call > len(result.Prompts) {
		return &AssertionError{
			Type:     AssertPromptContains,
			Expected: fmt.Sprintf("call %d", a.Call),
			Actual:   fmt.Sprintf("%d calls made", len(result.Prompts)),
			Trace:    result.Trace,
		}
	}
	if !strings.Contains(result.Prompts[a.Call-1], a.Text) {
		return &AssertionError{
			Type:     AssertPromptContains,
			Expected: fmt.Sprintf("prompt of call %d to contain %q", a.Call, a.Text),
			Actual:   "not found",
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertGeneratorCalls checks that a generator was called exactly a.Count
// times.
func assertGeneratorCalls(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Generator == a.Generator {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertGeneratorCalls,
			Expected: fmt.Sprintf("%d calls to %s", a.Count, a.Generator),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertCallOrder checks that the generators called, in order, are exactly
// a.Generators.
func assertCallOrder(trace []TraceEvent, a Assertion) error {
	got := make([]string, len(trace))
	for i, event := range trace {
		got[i] = event.Generator
	}
	if !slices.Equal(got, a.Generators) {
		return &AssertionError{
			Type:     AssertCallOrder,
			Expected: fmt.Sprintf("%v", a.Generators),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertWaits checks the backoff waits requested during the run.
func assertWaits(waits []time.Duration, a Assertion) error {
	if !slices.Equal(waits, a.Waits) {
		return &AssertionError{
			Type:     AssertWaits,
			Expected: fmt.Sprintf("%v", a.Waits),
			Actual:   fmt.Sprintf("%v", waits),
		}
	}
	return nil
}
