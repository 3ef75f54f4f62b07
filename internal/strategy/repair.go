package strategy

import (
	"context"
	"log/slog"

	"github.com/roach88/tether/internal/generator"
	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/prompt"
	"github.com/roach88/tether/internal/schema"
)

// fixSeparator joins the original prompt and the repair text in ModeFull.
const fixSeparator = "\n---\nFIX:\n"

// AutoRepair follows a failed inner run with repair rounds.
//
// Each round validates the working reply, renders the record's repair
// prompt for it and runs a one-shot Base bound to that prompt. A repaired
// reply is patched into a deep copy of the original; the caller's reply is
// never touched. Rounds stop when the copy validates or the depth budget is
// spent, in which case the original reply and its violation are returned.
type AutoRepair struct {
	inner Strategy
	cfg   settings
}

// NewAutoRepair wraps inner. Defaults: depth 1, ModeSub, ScopeRecord, two
// retries per repair, no repair backoff.
//
// Repairs use inner's Prompt and Generator. When inner is a Fallback those
// are its first branch's, so a reply produced by the fallback branch is
// repaired against the first branch's schema with the first branch's
// generator.
func NewAutoRepair(inner Strategy, opts ...Option) *AutoRepair {
	return &AutoRepair{inner: inner, cfg: newSettings("auto_repair", opts)}
}

// Prompt is the prompt the inner strategy runs with. An override prompt at
// this level replaces the inner one.
func (a *AutoRepair) Prompt(ov *Overrides) *prompt.Prompt {
	return a.inner.Prompt(a.innerOverrides(ov))
}

// Generator is the inner strategy's generator; repairs use it too.
func (a *AutoRepair) Generator(ov *Overrides) generator.Generator {
	return a.inner.Generator(a.innerOverrides(ov))
}

func (a *AutoRepair) innerOverrides(ov *Overrides) *Overrides {
	inner := ov.inner()
	if ov != nil && ov.Prompt != nil {
		inner = inner.withPrompt(ov.Prompt)
	}
	return inner
}

// Run runs inner; if that fails and the depth budget allows, it repairs.
func (a *AutoRepair) Run(ctx context.Context, vars prompt.Vars, ov *Overrides) Attempt {
	ctx, log := a.cfg.begin(ctx)
	depth := ov.depth(a.cfg.depth)
	innerOv := a.innerOverrides(ov)

	first := a.inner.Run(ctx, vars, innerOv)
	if first.OK || first.Err != nil || depth == 0 {
		return first
	}

	r := repairRun{
		AutoRepair: a,
		log:        log,
		vars:       vars,
		prompt:     a.inner.Prompt(innerOv),
		gen:        a.inner.Generator(innerOv),
		mode:       ov.mode(a.cfg.mode),
		scope:      ov.scope(a.cfg.scope),
		budget:     NewBudget(depth),
		calls:      first.Calls,
	}
	fixed := ir.Clone(first.Reply)
	fixed, ok, err := r.run(ctx, fixed)

	if ok {
		return success(fixed, r.calls)
	}
	first.Calls = r.calls
	first.Err = err
	return first
}

// repairRun holds the state of one run's repair rounds.
type repairRun struct {
	*AutoRepair
	log    *slog.Logger
	vars   prompt.Vars
	prompt *prompt.Prompt
	gen    generator.Generator
	mode   Mode
	scope  Scope
	budget *Budget
	calls  int
}

// run repairs work in place until it validates or the budget is spent. work
// is returned because a non-object reply can only be replaced, not patched.
// The error is non-nil only when a wait was interrupted.
func (r *repairRun) run(ctx context.Context, work ir.IRValue) (ir.IRValue, bool, error) {
	runID, _ := generator.RunID(ctx)
	for round := 1; ; round++ {
		viol := r.prompt.Validate(work)
		if viol == nil {
			return work, true, nil
		}
		if err := r.budget.Spend(runID, CodeDepthExhausted); err != nil {
			if be, ok := err.(*BudgetExhaustedError); ok {
				be.Short = viol.Short
			}
			r.log.Warn("repair exhausted", "error", err)
			return work, false, nil
		}

		target, rec, patch := r.narrow(work, viol)
		res := r.ask(ctx, rec, target)
		r.calls += res.Calls
		r.log.Debug("repair round", "attempt", round, "ok", res.OK, "scope", string(r.scope), "record", rec.Name(), "error", res.Short)
		if res.Err != nil {
			return work, false, res.Err
		}
		if res.OK {
			work = patch(res.Reply)
			continue
		}

		if r.cfg.repairBackoff > 0 {
			if err := r.cfg.sleeper.Sleep(ctx, r.cfg.repairBackoff); err != nil {
				return work, false, err
			}
		}
	}
}

// narrow picks what a round asks for. With ScopeNested and a violation
// inside a nested record, that record's object is the target and a repair is
// patched at its path; otherwise the whole reply is.
func (r *repairRun) narrow(work ir.IRValue, viol *schema.Violation) (ir.IRValue, *schema.Record, func(ir.IRValue) ir.IRValue) {
	root := r.prompt.Record()
	whole := func(fixed ir.IRValue) ir.IRValue { return patchInPlace(work, fixed) }

	if r.scope != ScopeNested {
		return work, root, whole
	}
	sc := root.Locate(work, viol.Path)
	if sc.IsRoot() {
		return work, root, whole
	}
	sub, ok := sc.Extract(work)
	if !ok {
		return work, root, whole
	}
	r.log.Debug("narrowed repair", "path", sc.Path, "record", sc.Record.Name())
	return sub, sc.Record, func(fixed ir.IRValue) ir.IRValue {
		patchInPlace(sub, fixed)
		return work
	}
}

// ask runs a one-shot Base bound to the repair prompt for target.
func (r *repairRun) ask(ctx context.Context, rec *schema.Record, target ir.IRValue) Attempt {
	text := rec.RepairPrompt(target)
	if r.mode == ModeFull {
		if rendered, err := r.prompt.Render(r.vars); err == nil {
			text = rendered + fixSeparator + text
		}
	}

	once := NewBase(prompt.Raw(text, rec), r.gen,
		WithName("repair"),
		WithRetries(r.cfg.repairRetries),
		WithBackoff(r.cfg.repairBackoff),
		WithSleeper(r.cfg.sleeper),
		WithLogger(r.cfg.logger),
		WithRunIDs(r.cfg.ids),
	)
	return once.Run(ctx, nil, nil)
}

// patchInPlace replaces the contents of dst with fixed when both are
// objects, so references into dst stay valid. Otherwise fixed replaces dst.
func patchInPlace(dst, fixed ir.IRValue) ir.IRValue {
	d, dok := dst.(*ir.IRObject)
	f, fok := fixed.(*ir.IRObject)
	if dok && fok {
		d.Replace(f)
		return d
	}
	return ir.Clone(fixed)
}
