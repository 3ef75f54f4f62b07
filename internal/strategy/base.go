package strategy

import (
	"context"
	"fmt"

	"github.com/roach88/tether/internal/generator"
	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/prompt"
)

// Base asks once and retries a fixed number of times until the reply
// validates.
type Base struct {
	prompt *prompt.Prompt
	gen    generator.Generator
	cfg    settings
}

// NewBase binds a prompt to a generator. Defaults: no retries, 500ms
// backoff.
func NewBase(p *prompt.Prompt, gen generator.Generator, opts ...Option) *Base {
	return &Base{prompt: p, gen: gen, cfg: newSettings("base", opts)}
}

// Prompt returns the override prompt if set, else the bound one.
func (b *Base) Prompt(ov *Overrides) *prompt.Prompt { return ov.prompt(b.prompt) }

// Generator returns the bound generator.
func (b *Base) Generator(*Overrides) generator.Generator { return b.gen }

// Run renders once, then calls and validates up to 1+retries times, sleeping
// the backoff between attempts. It returns the first valid reply, or the
// last reply with its violation.
//
// A generator error counts as an empty reply.
func (b *Base) Run(ctx context.Context, vars prompt.Vars, ov *Overrides) Attempt {
	ctx, log := b.cfg.begin(ctx)
	p := b.Prompt(ov)
	retries := ov.retries(b.cfg.retries)
	backoff := ov.backoff(b.cfg.backoff)

	text, err := p.Render(vars)
	if err != nil {
		log.Error("prompt render failed", "error", err)
		return Attempt{Reply: ir.NewIRObject(), Err: fmt.Errorf("render prompt: %w", err)}
	}

	var last Attempt
	for i := 0; i <= retries; i++ {
		if i > 0 {
			if err := b.cfg.sleeper.Sleep(ctx, backoff); err != nil {
				log.Warn("backoff interrupted", "attempt", i+1, "error", err)
				last.Err = err
				return last
			}
		}

		reply, genErr := b.gen.Generate(ctx, text)
		if genErr != nil {
			log.Warn("generator call failed", "attempt", i+1, "error", genErr)
			reply = ir.NewIRObject()
		}
		if reply == nil {
			reply = ir.NewIRObject()
		}

		viol := p.Validate(reply)
		if viol == nil {
			log.Debug("attempt", "attempt", i+1, "ok", true)
			return success(reply, i+1)
		}
		log.Debug("attempt", "attempt", i+1, "ok", false, "error", viol.Short)
		last = failure(reply, viol, i+1)
	}

	runID, _ := generator.RunID(ctx)
	log.Warn("strategy exhausted", "error", &BudgetExhaustedError{
		Code:  CodeRetriesExhausted,
		RunID: runID,
		Spent: retries + 1,
		Limit: retries + 1,
		Short: last.Short,
	})
	return last
}
