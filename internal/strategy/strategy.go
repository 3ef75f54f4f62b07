package strategy

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/tether/internal/clock"
	"github.com/roach88/tether/internal/generator"
	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/prompt"
	"github.com/roach88/tether/internal/schema"
)

// Strategy obtains a reply that satisfies a prompt's record.
type Strategy interface {
	// Run renders the prompt with vars, asks the generator and validates the
	// reply. ov may be nil.
	Run(ctx context.Context, vars prompt.Vars, ov *Overrides) Attempt

	// Prompt is the prompt Run would use under ov.
	Prompt(ov *Overrides) *prompt.Prompt

	// Generator is the generator Run would call under ov.
	Generator(ov *Overrides) generator.Generator
}

// Attempt is the outcome of a run. Failure is a value, not an error: a
// reply that never validated comes back with OK false and the last problem
// found.
type Attempt struct {
	Reply ir.IRValue
	OK    bool

	// Short and Long are the violation messages; empty on success.
	Short string
	Long  string

	Violation *schema.Violation

	// Calls counts generator calls made, repairs included.
	Calls int

	// Err is set when the run could not proceed at all: the template failed
	// to render, or the context was cancelled during a wait.
	Err error
}

func success(reply ir.IRValue, calls int) Attempt {
	return Attempt{Reply: reply, OK: true, Calls: calls}
}

func failure(reply ir.IRValue, viol *schema.Violation, calls int) Attempt {
	a := Attempt{Reply: reply, Violation: viol, Calls: calls}
	if viol != nil {
		a.Short, a.Long = viol.Short, viol.Long
	}
	return a
}

// Mode selects what a repair prompt contains.
type Mode string

const (
	// ModeSub sends only the repair text.
	ModeSub Mode = "sub"
	// ModeFull sends the original rendered prompt followed by the repair text.
	ModeFull Mode = "full"
)

// Scope selects how much of a reply a repair asks for.
type Scope string

const (
	// ScopeRecord asks for the whole reply again.
	ScopeRecord Scope = "record"
	// ScopeNested asks only for the innermost nested record around the
	// violation and patches it into place.
	ScopeNested Scope = "nested"
)

// Overrides replace stored settings for one call. Nil fields keep the
// strategy's own value; nothing is written back. Inner and Fallback carry
// the overrides for nested strategies.
type Overrides struct {
	Prompt  *prompt.Prompt
	Retries *int
	Backoff *time.Duration
	Depth   *int
	Mode    *Mode
	Scope   *Scope

	Inner    *Overrides
	Fallback *Overrides
}

// Ptr returns a pointer to v, for filling Overrides.
func Ptr[T any](v T) *T { return &v }

func (o *Overrides) inner() *Overrides {
	if o == nil {
		return nil
	}
	return o.Inner
}

func (o *Overrides) fallback() *Overrides {
	if o == nil {
		return nil
	}
	return o.Fallback
}

func (o *Overrides) prompt(def *prompt.Prompt) *prompt.Prompt {
	if o == nil || o.Prompt == nil {
		return def
	}
	return o.Prompt
}

func (o *Overrides) retries(def int) int {
	if o == nil || o.Retries == nil {
		return def
	}
	return max(*o.Retries, 0)
}

func (o *Overrides) backoff(def time.Duration) time.Duration {
	if o == nil || o.Backoff == nil {
		return def
	}
	return *o.Backoff
}

func (o *Overrides) depth(def int) int {
	if o == nil || o.Depth == nil {
		return def
	}
	return max(*o.Depth, 0)
}

func (o *Overrides) mode(def Mode) Mode {
	if o == nil || o.Mode == nil {
		return def
	}
	return *o.Mode
}

func (o *Overrides) scope(def Scope) Scope {
	if o == nil || o.Scope == nil {
		return def
	}
	return *o.Scope
}

// withPrompt returns a copy of o whose Prompt is p.
func (o *Overrides) withPrompt(p *prompt.Prompt) *Overrides {
	var c Overrides
	if o != nil {
		c = *o
	}
	c.Prompt = p
	return &c
}

const (
	DefaultBackoff       = 500 * time.Millisecond
	DefaultDepth         = 1
	DefaultRepairRetries = 2
)

type settings struct {
	name          string
	retries       int
	backoff       time.Duration
	depth         int
	mode          Mode
	scope         Scope
	repairRetries int
	repairBackoff time.Duration
	sleeper       clock.Sleeper
	logger        *slog.Logger
	ids           RunIDGenerator
}

func newSettings(name string, opts []Option) settings {
	s := settings{
		name:          name,
		backoff:       DefaultBackoff,
		depth:         DefaultDepth,
		mode:          ModeSub,
		scope:         ScopeRecord,
		repairRetries: DefaultRepairRetries,
		sleeper:       clock.TimerSleeper{},
		logger:        slog.Default(),
		ids:           UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// begin attaches a run id to ctx unless an enclosing run already did.
func (s *settings) begin(ctx context.Context) (context.Context, *slog.Logger) {
	runID, ok := generator.RunID(ctx)
	if !ok {
		runID = s.ids.Generate()
		ctx = generator.WithRunID(ctx, runID)
	}
	return ctx, s.logger.With("run_id", runID, "strategy", s.name)
}

// Option configures a strategy. Options that do not apply to a strategy are
// ignored by it.
type Option func(*settings)

// WithName labels the strategy in logs.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithRetries sets how many extra attempts Base makes after the first.
func WithRetries(n int) Option {
	return func(s *settings) { s.retries = max(n, 0) }
}

// WithBackoff sets the wait between Base attempts.
func WithBackoff(d time.Duration) Option {
	return func(s *settings) { s.backoff = d }
}

// WithDepth sets the AutoRepair depth budget.
func WithDepth(n int) Option {
	return func(s *settings) { s.depth = max(n, 0) }
}

// WithMode sets the AutoRepair prompt mode.
func WithMode(m Mode) Option {
	return func(s *settings) { s.mode = m }
}

// WithScope sets the AutoRepair repair scope.
func WithScope(sc Scope) Option {
	return func(s *settings) { s.scope = sc }
}

// WithRepairRetries sets the retries of each one-shot repair.
func WithRepairRetries(n int) Option {
	return func(s *settings) { s.repairRetries = max(n, 0) }
}

// WithRepairBackoff sets the wait inside and between repairs.
func WithRepairBackoff(d time.Duration) Option {
	return func(s *settings) { s.repairBackoff = d }
}

// WithSleeper replaces the sleeper used for every wait.
func WithSleeper(sl clock.Sleeper) Option {
	return func(s *settings) { s.sleeper = sl }
}

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRunIDs replaces the UUIDv7 run id generator.
func WithRunIDs(ids RunIDGenerator) Option {
	return func(s *settings) { s.ids = ids }
}
