// Package harness runs strategy scenarios against scripted generators.
//
// A scenario declares schemas, a prompt template, the replies each generator
// will give, a strategy tree, and the outcome the tree must reach. The
// harness builds the tree, runs it once and compares the final attempt and
// the call trace with the expectation.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: repair_second_round
//	description: "Repair succeeds on the second round"
//	schemas:
//	  - ../schemas/numbers.cue
//	schema: Pick
//	template: "Pick a number for {who}."
//	vars: { who: Ann }
//	replies:
//	  - { x: 50 }
//	  - '```json {"x": 60} ```'   # strings are raw generator text
//	  - { x: 10 }
//	strategy:
//	  kind: auto_repair
//	  depth: 2
//	  repair_retries: 0
//	  inner: { kind: base }
//	expect:
//	  ok: true
//	  reply: { x: 10 }
//	  calls: 3
//	assertions:
//	  - type: prompt_contains
//	    call: 2
//	    text: "The JSON below is invalid."
//
// Strategy kinds are base, fallback (inner + fallback) and auto_repair
// (inner). A base node calls the default generator, scripted by replies,
// unless it names one of the generators map.
//
// # Assertion Types
//
//   - prompt_contains: the full prompt of call N contains a text
//   - generator_calls: a generator was called exactly N times
//   - call_order: the generators called, in order, are exactly a list
//   - waits: the backoff waits requested, in order, are exactly a list
//
// # Deterministic Testing
//
// Every scenario runs with:
//   - Scripted generators that repeat their last reply once exhausted
//   - A fixed run id (scenario run_id, or "test-run-default")
//   - A recording sleeper: waits are recorded, never slept
//   - A fresh in-memory SQLite exchange store, from which the trace is read
//
// The same scenario therefore always produces the same trace, which
// RunWithGolden compares against testdata/golden/<name>.golden.
//
// CheckRecords is the schema-level counterpart: every record's synthesised
// and hand-written examples must validate against the record.
package harness
