package strategy

import (
	"context"

	"github.com/roach88/tether/internal/generator"
	"github.com/roach88/tether/internal/prompt"
)

// Fallback runs a second strategy when the first one fails.
type Fallback struct {
	inner    Strategy
	fallback Strategy
	cfg      settings
}

// NewFallback composes inner and fallback. Only WithName, WithLogger and
// WithRunIDs apply.
func NewFallback(inner, fallback Strategy, opts ...Option) *Fallback {
	return &Fallback{inner: inner, fallback: fallback, cfg: newSettings("fallback", opts)}
}

// Prompt is the inner strategy's prompt.
func (f *Fallback) Prompt(ov *Overrides) *prompt.Prompt { return f.inner.Prompt(ov.inner()) }

// Generator is the inner strategy's generator.
func (f *Fallback) Generator(ov *Overrides) generator.Generator { return f.inner.Generator(ov.inner()) }

// Run runs inner to completion with ov.Inner; on failure it runs fallback
// with ov.Fallback and returns that result as is. Calls add up across both.
func (f *Fallback) Run(ctx context.Context, vars prompt.Vars, ov *Overrides) Attempt {
	ctx, log := f.cfg.begin(ctx)

	first := f.inner.Run(ctx, vars, ov.inner())
	if first.OK || first.Err != nil {
		return first
	}
	log.Debug("inner failed, running fallback", "error", first.Short)

	second := f.fallback.Run(ctx, vars, ov.fallback())
	second.Calls += first.Calls
	log.Debug("fallback finished", "ok", second.OK, "error", second.Short)
	return second
}
