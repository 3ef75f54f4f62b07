// Package generator defines the collaborator that turns prompt text into a
// reply value, plus the adapters tether ships: function and scripted
// generators for tests, a Gemini client, and record/replay decorators over the
// exchange store.
//
// A generator returns the parsed reply. Unparseable text becomes the empty
// object so that validation, not parsing, reports the defect. A non-nil error
// means the call itself failed (network, quota); strategies treat it the same
// way, as an empty reply.
package generator

import (
	"context"
	"sync"

	"github.com/roach88/tether/internal/ir"
)

// Generator produces a reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (ir.IRValue, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, prompt string) (ir.IRValue, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string) (ir.IRValue, error) {
	return f(ctx, prompt)
}

// Static always returns a deep copy of the same reply.
type Static struct {
	Reply ir.IRValue
}

// Generate returns a copy of s.Reply.
func (s Static) Generate(context.Context, string) (ir.IRValue, error) {
	if s.Reply == nil {
		return ir.NewIRObject(), nil
	}
	return ir.Clone(s.Reply), nil
}

// Scripted returns a fixed sequence of replies, one per call, repeating the
// last one once the script runs out. It records every prompt it receives.
//
// Scripted is safe for concurrent use.
type Scripted struct {
	mu      sync.Mutex
	replies []ir.IRValue
	next    int
	prompts []string
}

// NewScripted creates a generator that plays replies in order.
func NewScripted(replies ...ir.IRValue) *Scripted {
	return &Scripted{replies: replies}
}

// Generate returns the next scripted reply.
func (s *Scripted) Generate(_ context.Context, prompt string) (ir.IRValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return ir.NewIRObject(), nil
	}
	i := s.next
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	} else {
		s.next++
	}
	return ir.Clone(s.replies[i]), nil
}

// Prompts returns the prompts received so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Calls returns how many times Generate ran.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type runIDKey struct{}

// WithRunID attaches a run id to ctx. Recording generators file exchanges
// under it.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run id attached to ctx, if any.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}
