package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tether/internal/compiler"
	"github.com/roach88/tether/internal/generator"
	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/prompt"
	"github.com/roach88/tether/internal/rule"
	"github.com/roach88/tether/internal/schema"
	"github.com/roach88/tether/internal/store"
	"github.com/roach88/tether/internal/strategy"
	"github.com/roach88/tether/internal/testutil"
)

// Harness holds everything one scenario run needs.
type Harness struct {
	scenario   *Scenario
	store      *store.Store
	catalog    *compiler.Catalog
	generators map[string]generator.Generator
	sleeper    *testutil.RecordingSleeper
	runIDs     *testutil.FixedRunIDGenerator
	logger     *slog.Logger
}

// scriptedGenerator names a scripted generator in the exchange log.
type scriptedGenerator struct {
	name string
	*generator.Scripted
}

func (g scriptedGenerator) Name() string { return g.name }

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory exchange store. Generators
// are scripted, waits are recorded instead of slept and the run id is fixed,
// so the same scenario always produces the same trace.
//
// Execution flow:
//  1. Compile the scenario's schemas
//  2. Build scripted generators, recorded to the store
//  3. Build the strategy tree and run it once
//  4. Read the trace back from the store
//  5. Check the expectation and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunWithRegistry(scenario, nil)
}

// RunWithRegistry is Run with a custom rule registry. A nil registry means
// rule.DefaultRegistry().
func RunWithRegistry(scenario *Scenario, reg *rule.Registry) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	catalog, err := compileSchemas(scenario, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schemas: %w", err)
	}

	h := &Harness{
		scenario: scenario,
		store:    st,
		catalog:  catalog,
		sleeper:  testutil.NewRecordingSleeper(),
		runIDs:   testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	if err := h.buildGenerators(); err != nil {
		return nil, err
	}

	top, err := h.buildStrategy("strategy", &scenario.Strategy)
	if err != nil {
		return nil, err
	}
	ov, err := h.buildOverrides("overrides", scenario.Overrides)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	attempt := top.Run(ctx, prompt.Vars(scenario.Vars), ov)
	if attempt.Err != nil {
		return nil, fmt.Errorf("strategy run failed: %w", attempt.Err)
	}

	result := NewResult()
	result.RunID = h.runIDs.Generate()
	result.Outcome = outcomeOf(attempt)
	if err := h.collectTrace(ctx, result); err != nil {
		return nil, err
	}

	if err := h.checkExpectation(result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Waits: h.sleeper.Waits(),
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"calls", result.Outcome.Calls,
	)
	return result, nil
}

func compileSchemas(s *Scenario, reg *rule.Registry) (*compiler.Catalog, error) {
	catalog, err := compiler.CompileFiles(reg, s.Schemas...)
	if err != nil {
		return nil, err
	}
	if s.Source == "" {
		return catalog, nil
	}
	inline, err := compiler.CompileString(s.Source, reg)
	if err != nil {
		return nil, fmt.Errorf("inline source: %w", err)
	}
	if err := catalog.Merge(inline); err != nil {
		return nil, fmt.Errorf("inline source: %w", err)
	}
	return catalog, nil
}

// buildGenerators scripts the default generator and every named one, all
// recorded to the same store under one sequence.
func (h *Harness) buildGenerators() error {
	replies, err := scriptReplies(DefaultGenerator, h.scenario.Replies)
	if err != nil {
		return err
	}
	root := generator.NewRecording(scriptedGenerator{DefaultGenerator, generator.NewScripted(replies...)}, h.store)

	h.generators = map[string]generator.Generator{DefaultGenerator: root}
	for name, nodes := range h.scenario.Generators {
		replies, err := scriptReplies(name, nodes)
		if err != nil {
			return err
		}
		h.generators[name] = root.Wrap(scriptedGenerator{name, generator.NewScripted(replies...)})
	}
	return nil
}

func scriptReplies(name string, nodes []yaml.Node) ([]ir.IRValue, error) {
	out := make([]ir.IRValue, len(nodes))
	for i := range nodes {
		v, err := replyValue(&nodes[i])
		if err != nil {
			return nil, fmt.Errorf("generator %s reply %d: %w", name, i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func (h *Harness) common() []strategy.Option {
	return []strategy.Option{
		strategy.WithSleeper(h.sleeper),
		strategy.WithLogger(h.logger),
		strategy.WithRunIDs(h.runIDs),
	}
}

func (h *Harness) buildStrategy(path string, sp *StrategySpec) (strategy.Strategy, error) {
	opts := append(h.common(), strategy.WithName(path))

	switch sp.Kind {
	case KindBase:
		p, err := h.buildPrompt(path, sp.Template, sp.Schema)
		if err != nil {
			return nil, err
		}
		name := sp.Generator
		if name == "" {
			name = DefaultGenerator
		}
		gen, ok := h.generators[name]
		if !ok {
			return nil, fmt.Errorf("%s: unknown generator %q", path, name)
		}
		opts = append(opts, strategy.WithRetries(sp.Retries))
		if sp.Backoff != nil {
			opts = append(opts, strategy.WithBackoff(*sp.Backoff))
		}
		return strategy.NewBase(p, gen, opts...), nil

	case KindFallback:
		inner, err := h.buildStrategy(path+".inner", sp.Inner)
		if err != nil {
			return nil, err
		}
		fb, err := h.buildStrategy(path+".fallback", sp.Fallback)
		if err != nil {
			return nil, err
		}
		return strategy.NewFallback(inner, fb, opts...), nil

	case KindAutoRepair:
		inner, err := h.buildStrategy(path+".inner", sp.Inner)
		if err != nil {
			return nil, err
		}
		if sp.Depth != nil {
			opts = append(opts, strategy.WithDepth(*sp.Depth))
		}
		if sp.Mode != "" {
			opts = append(opts, strategy.WithMode(strategy.Mode(sp.Mode)))
		}
		if sp.Scope != "" {
			opts = append(opts, strategy.WithScope(strategy.Scope(sp.Scope)))
		}
		if sp.RepairRetries != nil {
			opts = append(opts, strategy.WithRepairRetries(*sp.RepairRetries))
		}
		opts = append(opts, strategy.WithRepairBackoff(sp.RepairBackoff))
		return strategy.NewAutoRepair(inner, opts...), nil

	default:
		return nil, fmt.Errorf("%s: unknown strategy kind %q", path, sp.Kind)
	}
}

// buildPrompt binds a template to a record, each falling back to the
// scenario-level one.
func (h *Harness) buildPrompt(path, template, schemaName string) (*prompt.Prompt, error) {
	if template == "" {
		template = h.scenario.Template
	}
	rec, err := h.record(path, schemaName)
	if err != nil {
		return nil, err
	}
	return prompt.New(template, rec), nil
}

func (h *Harness) record(path, name string) (*schema.Record, error) {
	if name == "" {
		name = h.scenario.Schema
	}
	rec, ok := h.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s: unknown schema %q (have %s)", path, name, strings.Join(h.catalog.Names(), ", "))
	}
	return rec, nil
}

func (h *Harness) buildOverrides(path string, spec *OverrideSpec) (*strategy.Overrides, error) {
	if spec == nil {
		return nil, nil
	}
	ov := &strategy.Overrides{
		Retries: spec.Retries,
		Backoff: spec.Backoff,
		Depth:   spec.Depth,
	}
	if spec.Template != "" || spec.Schema != "" {
		p, err := h.buildPrompt(path, spec.Template, spec.Schema)
		if err != nil {
			return nil, err
		}
		ov.Prompt = p
	}
	if spec.Mode != "" {
		ov.Mode = strategy.Ptr(strategy.Mode(spec.Mode))
	}
	if spec.Scope != "" {
		ov.Scope = strategy.Ptr(strategy.Scope(spec.Scope))
	}

	var err error
	if ov.Inner, err = h.buildOverrides(path+".inner", spec.Inner); err != nil {
		return nil, err
	}
	if ov.Fallback, err = h.buildOverrides(path+".fallback", spec.Fallback); err != nil {
		return nil, err
	}
	return ov, nil
}

func outcomeOf(a strategy.Attempt) Outcome {
	out := Outcome{
		OK:    a.OK,
		Reply: a.Reply,
		Short: a.Short,
		Long:  a.Long,
		Calls: a.Calls,
	}
	if a.Violation != nil {
		out.Kind = string(a.Violation.Kind)
	}
	return out
}

// collectTrace reads the run's exchanges back from the store.
func (h *Harness) collectTrace(ctx context.Context, result *Result) error {
	exchanges, err := h.store.ReadRun(ctx, result.RunID)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	for _, ex := range exchanges {
		first, _, _ := strings.Cut(ex.Prompt, "\n")
		result.Trace = append(result.Trace, TraceEvent{
			Seq:       ex.Seq,
			Generator: ex.Generator,
			Prompt:    first,
			Reply:     ex.Reply,
			Error:     ex.Error,
		})
		result.Prompts = append(result.Prompts, ex.Prompt)
	}
	return nil
}

// checkExpectation compares the final attempt with the scenario's expect
// block. Mismatches are recorded on the result, not returned.
func (h *Harness) checkExpectation(result *Result) error {
	want := h.scenario.Expect
	got := result.Outcome

	if want.OK != got.OK {
		result.AddError(fmt.Sprintf("expect.ok: expected %v, got %v (%s)", want.OK, got.OK, got.Short))
	}
	if want.Reply.Kind != 0 {
		wantReply, err := nodeValue(&want.Reply)
		if err != nil {
			return fmt.Errorf("expect.reply: %w", err)
		}
		if !ir.Equal(wantReply, got.Reply) {
			result.AddError(fmt.Sprintf("expect.reply mismatch (-want +got):\n%s",
				cmp.Diff(ir.ToGo(wantReply), ir.ToGo(got.Reply))))
		}
	}
	if want.Short != "" && want.Short != got.Short {
		result.AddError(fmt.Sprintf("expect.short: expected %q, got %q", want.Short, got.Short))
	}
	if want.Long != "" && want.Long != got.Long {
		result.AddError(fmt.Sprintf("expect.long: expected %q, got %q", want.Long, got.Long))
	}
	if want.Kind != "" && want.Kind != got.Kind {
		result.AddError(fmt.Sprintf("expect.kind: expected %q, got %q", want.Kind, got.Kind))
	}
	if want.Calls != 0 && want.Calls != got.Calls {
		result.AddError(fmt.Sprintf("expect.calls: expected %d, got %d", want.Calls, got.Calls))
	}
	return nil
}
