package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/generator"
	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/prompt"
	"github.com/roach88/tether/internal/rule"
	"github.com/roach88/tether/internal/schema"
	"github.com/roach88/tether/internal/testutil"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func xy(a, b int64) *ir.IRObject {
	return ir.NewIRObject(ir.O("a", ir.IRInt(a)), ir.O("b", ir.IRInt(b)))
}

func x(v int64) *ir.IRObject {
	return ir.NewIRObject(ir.O("x", ir.IRInt(v)))
}

func luckyPrompt() *prompt.Prompt {
	rec := schema.MustRecord("LuckyNumbers",
		schema.WithField("a", schema.Ruled(rule.Interval(0, 10))),
		schema.WithField("b", schema.Ruled(rule.Interval(0, 10))),
	)
	return prompt.New("Give me two {attribute} numbers", rec)
}

func moreLuckyPrompt() *prompt.Prompt {
	rec := schema.MustRecord("MoreLuckyNumbers",
		schema.WithField("a", schema.Ruled(rule.Interval(0, 20))),
		schema.WithField("b", schema.Ruled(rule.Interval(0, 20))),
		schema.WithField("c", schema.Ruled(rule.Interval(0, 20))),
	)
	return prompt.New("Give me the three random numbers", rec)
}

func randomPrompt(hi float64) *prompt.Prompt {
	rec := schema.MustRecord("RandomNumbers",
		schema.WithField("x", schema.Ruled(rule.Interval(0, hi))),
	)
	return prompt.New("Give me a random number", rec)
}

var lucky = prompt.Vars{"attribute": "lucky"}

func TestBase_FirstValidReply(t *testing.T) {
	gen := generator.NewScripted(xy(12, 13), xy(0, 8))
	sleeper := testutil.NewRecordingSleeper()
	base := NewBase(luckyPrompt(), gen, WithRetries(8), WithBackoff(time.Second), WithSleeper(sleeper), quiet())

	got := base.Run(context.Background(), lucky, nil)

	assert.True(t, got.OK)
	assert.Equal(t, `{"a": 0, "b": 8}`, ir.MarshalInline(got.Reply))
	assert.Empty(t, got.Short)
	assert.Empty(t, got.Long)
	assert.Nil(t, got.Violation)
	assert.Equal(t, 2, got.Calls)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.Waits())
	assert.True(t, strings.HasPrefix(gen.Prompts()[0], "Give me two lucky numbers\nFill in **valid JSON**"))
}

func TestBase_NoRetries(t *testing.T) {
	gen := generator.NewScripted(xy(12, 13))
	sleeper := testutil.NewRecordingSleeper()
	base := NewBase(luckyPrompt(), gen, WithSleeper(sleeper), quiet())

	got := base.Run(context.Background(), lucky, nil)

	assert.False(t, got.OK)
	assert.Equal(t, `{"a": 12, "b": 13}`, ir.MarshalInline(got.Reply))
	assert.Equal(t, `"a" is invalid.`, got.Short)
	assert.Equal(t, `"a" must be a number between 0 and 10`, got.Long)
	require.NotNil(t, got.Violation)
	assert.Equal(t, schema.ConstraintViolation, got.Violation.Kind)
	assert.Equal(t, 1, got.Calls)
	assert.Empty(t, sleeper.Waits(), "no backoff after the last attempt")
}

func TestBase_ReturnsLastFailure(t *testing.T) {
	gen := generator.NewScripted(xy(12, 1), xy(1, 13))
	sleeper := testutil.NewRecordingSleeper()
	base := NewBase(luckyPrompt(), gen, WithRetries(1), WithBackoff(time.Second), WithSleeper(sleeper), quiet())

	got := base.Run(context.Background(), lucky, nil)

	assert.False(t, got.OK)
	assert.Equal(t, `{"a": 1, "b": 13}`, ir.MarshalInline(got.Reply))
	assert.Equal(t, `"b" is invalid.`, got.Short)
	assert.Equal(t, 2, got.Calls)
	assert.Len(t, sleeper.Waits(), 1)
}

func TestBase_Overrides(t *testing.T) {
	gen := generator.NewScripted(xy(1, 8))
	base := NewBase(luckyPrompt(), gen, WithSleeper(testutil.NewRecordingSleeper()), quiet())

	got := base.Run(context.Background(), nil, &Overrides{Prompt: moreLuckyPrompt()})
	assert.False(t, got.OK)
	assert.Equal(t, `"c" is missing.`, got.Short)
	assert.Equal(t, `"c" must be present.`, got.Long)
	assert.True(t, strings.HasPrefix(gen.Prompts()[0], "Give me the three random numbers\n"))

	// stored configuration is untouched
	assert.Same(t, base.prompt, base.Prompt(nil))
	got = base.Run(context.Background(), lucky, nil)
	assert.True(t, got.OK)
}

func TestBase_RetriesOverride(t *testing.T) {
	gen := generator.NewScripted(xy(12, 13), xy(12, 13), xy(5, 5))
	sleeper := testutil.NewRecordingSleeper()
	base := NewBase(luckyPrompt(), gen, WithSleeper(sleeper), quiet())

	got := base.Run(context.Background(), lucky, &Overrides{Retries: Ptr(2), Backoff: Ptr(3 * time.Second)})
	assert.True(t, got.OK)
	assert.Equal(t, 3, got.Calls)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, sleeper.Waits())
	assert.Equal(t, 0, base.cfg.retries)
}

func TestBase_GeneratorErrorIsEmptyReply(t *testing.T) {
	gen := generator.Func(func(context.Context, string) (ir.IRValue, error) {
		return nil, errors.New("connection refused")
	})
	base := NewBase(luckyPrompt(), gen, quiet())

	got := base.Run(context.Background(), lucky, nil)
	assert.False(t, got.OK)
	assert.NoError(t, got.Err)
	assert.Equal(t, "{}", ir.MarshalInline(got.Reply))
	assert.Equal(t, `"a" is missing.`, got.Short)
}

func TestBase_RenderError(t *testing.T) {
	gen := generator.NewScripted(xy(1, 1))
	base := NewBase(luckyPrompt(), gen, quiet())

	got := base.Run(context.Background(), nil, nil)
	assert.False(t, got.OK)
	assert.ErrorIs(t, got.Err, prompt.ErrMissingVar)
	assert.Zero(t, gen.Calls())
}

func TestBase_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := generator.Func(func(context.Context, string) (ir.IRValue, error) {
		cancel()
		return xy(12, 13), nil
	})
	base := NewBase(luckyPrompt(), gen, WithRetries(5), WithSleeper(testutil.NewRecordingSleeper()), quiet())

	got := base.Run(ctx, lucky, nil)
	assert.False(t, got.OK)
	assert.ErrorIs(t, got.Err, context.Canceled)
	assert.Equal(t, 1, got.Calls)
}

func TestBase_RunIDInContext(t *testing.T) {
	var seen []string
	gen := generator.Func(func(ctx context.Context, _ string) (ir.IRValue, error) {
		id, _ := generator.RunID(ctx)
		seen = append(seen, id)
		return xy(1, 1), nil
	})
	base := NewBase(luckyPrompt(), gen, WithRunIDs(NewFixedGenerator("run-1", "run-2")), quiet())

	base.Run(context.Background(), lucky, nil)
	base.Run(context.Background(), lucky, nil)
	base.Run(generator.WithRunID(context.Background(), "outer"), lucky, nil)

	assert.Equal(t, []string{"run-1", "run-2", "outer"}, seen)
}

func TestFallback_UsesFallbackOnFailure(t *testing.T) {
	bad := NewBase(luckyPrompt(), generator.Static{Reply: xy(12, 13)}, quiet())
	good := NewBase(luckyPrompt(), generator.Static{Reply: xy(5, 5)}, quiet())
	fb := NewFallback(bad, good, quiet())

	got := fb.Run(context.Background(), lucky, nil)

	assert.True(t, got.OK)
	assert.Equal(t, `{"a": 5, "b": 5}`, ir.MarshalInline(got.Reply))
	assert.Equal(t, 2, got.Calls)
}

func TestFallback_InnerSuccessSkipsFallback(t *testing.T) {
	fbGen := generator.NewScripted(xy(5, 5))
	good := NewBase(luckyPrompt(), generator.Static{Reply: xy(1, 2)}, quiet())
	fb := NewFallback(good, NewBase(luckyPrompt(), fbGen, quiet()), quiet())

	got := fb.Run(context.Background(), lucky, nil)
	assert.True(t, got.OK)
	assert.Equal(t, `{"a": 1, "b": 2}`, ir.MarshalInline(got.Reply))
	assert.Zero(t, fbGen.Calls())
}

func TestFallback_NamespacedOverrides(t *testing.T) {
	bad := NewBase(luckyPrompt(), generator.Static{Reply: xy(12, 13)}, quiet())
	good := NewBase(luckyPrompt(), generator.Static{Reply: xy(5, 5)}, quiet())
	fb := NewFallback(bad, good, quiet())
	p2 := moreLuckyPrompt()

	tests := []struct {
		name  string
		ov    *Overrides
		ok    bool
		short string
	}{
		{"fallback prompt", &Overrides{Fallback: &Overrides{Prompt: p2}}, false, `"c" is missing.`},
		{"inner prompt", &Overrides{Inner: &Overrides{Prompt: p2}}, true, ""},
		{"both", &Overrides{Inner: &Overrides{Prompt: p2}, Fallback: &Overrides{Prompt: p2}}, false, `"c" is missing.`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fb.Run(context.Background(), lucky, tt.ov)
			assert.Equal(t, tt.ok, got.OK)
			assert.Equal(t, tt.short, got.Short)
			assert.Equal(t, `{"a": 5, "b": 5}`, ir.MarshalInline(got.Reply))
		})
	}

	assert.Same(t, bad.prompt, fb.Prompt(nil))
	assert.Same(t, p2, fb.Prompt(&Overrides{Inner: &Overrides{Prompt: p2}}))
}

func TestFallback_PromptAndGeneratorFromInner(t *testing.T) {
	innerGen := generator.NewScripted()
	inner := NewBase(luckyPrompt(), innerGen, quiet())
	fb := NewFallback(inner, NewBase(moreLuckyPrompt(), generator.NewScripted(), quiet()))

	assert.Same(t, inner.prompt, fb.Prompt(nil))
	assert.Same(t, innerGen, fb.Generator(nil))
}
