package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/tether/internal/clock"
	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/store"
)

// ErrNoRecording is returned by Replay for a prompt that was never recorded.
var ErrNoRecording = errors.New("no recorded exchange for prompt")

// unscopedRun files exchanges made outside any strategy run.
const unscopedRun = "unscoped"

// ExchangeWriter is the store side of Recording.
type ExchangeWriter interface {
	WriteExchange(ctx context.Context, ex store.Exchange) error
}

// ExchangeReader is the store side of Replay.
type ExchangeReader interface {
	ReadExchanges(ctx context.Context, promptHash string) ([]store.Exchange, error)
}

// Named is implemented by generators that report a name for the exchange log.
type Named interface {
	Name() string
}

// NameOf returns g's name, or its Go type when it has none.
func NameOf(g Generator) string {
	if n, ok := g.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", g)
}

// Recording writes every exchange of an inner generator to a store. Exchanges
// are filed under the run id carried by the context and numbered per run.
type Recording struct {
	inner Generator
	out   ExchangeWriter
	seqs  *runSeqs
}

// runSeqs numbers exchanges per run id.
type runSeqs struct {
	mu   sync.Mutex
	byID map[string]*clock.Seq
}

// NewRecording wraps inner.
func NewRecording(inner Generator, out ExchangeWriter) *Recording {
	return &Recording{inner: inner, out: out, seqs: &runSeqs{byID: make(map[string]*clock.Seq)}}
}

// Wrap records another generator to the same store, numbered in the same
// per-run sequence. Strategies that call several generators in one run need
// this to keep sequence numbers unique.
func (r *Recording) Wrap(inner Generator) *Recording {
	return &Recording{inner: inner, out: r.out, seqs: r.seqs}
}

// Name reports the inner generator's name.
func (r *Recording) Name() string { return NameOf(r.inner) }

// Generate calls the inner generator and records the exchange. A failed
// write is logged; the reply is still returned.
func (r *Recording) Generate(ctx context.Context, prompt string) (ir.IRValue, error) {
	reply, genErr := r.inner.Generate(ctx, prompt)
	if reply == nil {
		reply = ir.NewIRObject()
	}

	runID, ok := RunID(ctx)
	if !ok {
		runID = unscopedRun
	}

	ex := store.Exchange{
		RunID:      runID,
		Seq:        r.seq(runID).Next(),
		PromptHash: ir.PromptHash(prompt),
		Prompt:     prompt,
		Reply:      reply,
		Generator:  NameOf(r.inner),
	}
	if genErr != nil {
		ex.Error = genErr.Error()
	}
	if err := r.out.WriteExchange(ctx, ex); err != nil {
		slog.Error("failed to record exchange", "run_id", runID, "seq", ex.Seq, "error", err)
	}
	return reply, genErr
}

func (r *Recording) seq(runID string) *clock.Seq {
	r.seqs.mu.Lock()
	defer r.seqs.mu.Unlock()
	s, ok := r.seqs.byID[runID]
	if !ok {
		s = clock.NewSeq()
		r.seqs.byID[runID] = s
	}
	return s
}

// Replay serves recorded replies instead of calling a model. Replies for a
// prompt are served in recorded order; once exhausted the last one repeats.
// A recorded failure is replayed as an error.
type Replay struct {
	src   ExchangeReader
	runID string

	mu     sync.Mutex
	served map[string]int
}

// NewReplay serves exchanges from src. A non-empty runID restricts replay to
// that run.
func NewReplay(src ExchangeReader, runID string) *Replay {
	return &Replay{src: src, runID: runID, served: make(map[string]int)}
}

// Name identifies replayed exchanges.
func (r *Replay) Name() string { return "replay" }

// Generate returns the next recorded reply for prompt.
func (r *Replay) Generate(ctx context.Context, prompt string) (ir.IRValue, error) {
	hash := ir.PromptHash(prompt)
	all, err := r.src.ReadExchanges(ctx, hash)
	if err != nil {
		return ir.NewIRObject(), fmt.Errorf("replay: %w", err)
	}

	var matches []store.Exchange
	for _, ex := range all {
		if r.runID == "" || ex.RunID == r.runID {
			matches = append(matches, ex)
		}
	}
	if len(matches) == 0 {
		return ir.NewIRObject(), fmt.Errorf("%w (hash %s)", ErrNoRecording, hash)
	}

	r.mu.Lock()
	i := r.served[hash]
	if i < len(matches)-1 {
		r.served[hash] = i + 1
	} else {
		i = len(matches) - 1
	}
	r.mu.Unlock()

	ex := matches[i]
	if ex.Error != "" {
		return ir.Clone(ex.Reply), errors.New(ex.Error)
	}
	return ir.Clone(ex.Reply), nil
}
