package rule

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/tether/internal/ir"
)

// Rule is a stateless scalar predicate with a description and an example.
//
// Describe returns the generator-facing constraint text, phrased so it reads
// after a quoted path: `"x" must be a number between 0 and 10`.
type Rule interface {
	Name() string
	Describe() string
	Example() ir.IRValue
	Validate(v ir.IRValue) bool
}

// FuncRule adapts plain functions into a Rule.
type FuncRule struct {
	name     string
	describe string
	example  ir.IRValue
	pred     func(ir.IRValue) bool
}

// Func builds a custom rule from a description, an example and a predicate.
func Func(name, describe string, example ir.IRValue, pred func(ir.IRValue) bool) *FuncRule {
	return &FuncRule{name: name, describe: describe, example: example, pred: pred}
}

func (r *FuncRule) Name() string               { return r.name }
func (r *FuncRule) Describe() string           { return r.describe }
func (r *FuncRule) Example() ir.IRValue        { return ir.Clone(r.example) }
func (r *FuncRule) Validate(v ir.IRValue) bool { return r.pred(v) }

// IntervalRule accepts numbers in the closed range [Lo, Hi].
type IntervalRule struct {
	Lo, Hi float64
}

// Interval returns a rule accepting integers or floats between lo and hi inclusive.
func Interval(lo, hi float64) *IntervalRule {
	return &IntervalRule{Lo: lo, Hi: hi}
}

func (r *IntervalRule) Name() string { return "interval" }

func (r *IntervalRule) Describe() string {
	return fmt.Sprintf("must be a number between %s and %s", formatBound(r.Lo), formatBound(r.Hi))
}

// Example is the floored midpoint for integral bounds, the exact midpoint otherwise.
func (r *IntervalRule) Example() ir.IRValue {
	if ir.IsIntegral(r.Lo) && ir.IsIntegral(r.Hi) {
		return ir.IRInt(int64(math.Floor((r.Lo + r.Hi) / 2)))
	}
	return ir.IRFloat((r.Lo + r.Hi) / 2)
}

func (r *IntervalRule) Validate(v ir.IRValue) bool {
	n, ok := ir.Number(v)
	return ok && r.Lo <= n && n <= r.Hi
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// OneOfRule accepts a value equal to any of a fixed set.
type OneOfRule struct {
	values []ir.IRValue
}

// OneOf returns a rule accepting exactly the given values.
func OneOf(values ...ir.IRValue) *OneOfRule {
	cp := make([]ir.IRValue, len(values))
	for i, v := range values {
		cp[i] = ir.Clone(v)
	}
	return &OneOfRule{values: cp}
}

func (r *OneOfRule) Name() string { return "one_of" }

func (r *OneOfRule) Describe() string {
	parts := make([]string, len(r.values))
	for i, v := range r.values {
		parts[i] = quoteValue(v)
	}
	return "must be one of " + strings.Join(parts, ", ")
}

// Example returns the first allowed value.
func (r *OneOfRule) Example() ir.IRValue {
	if len(r.values) == 0 {
		return ir.IRNull{}
	}
	return ir.Clone(r.values[0])
}

func (r *OneOfRule) Validate(v ir.IRValue) bool {
	for _, allowed := range r.values {
		if ir.Equal(allowed, v) {
			return true
		}
	}
	return false
}

// Values returns a copy of the allowed values.
func (r *OneOfRule) Values() []ir.IRValue {
	out := make([]ir.IRValue, len(r.values))
	for i, v := range r.values {
		out[i] = ir.Clone(v)
	}
	return out
}

// quoteValue single-quotes strings and renders everything else as inline JSON.
func quoteValue(v ir.IRValue) string {
	s, ok := v.(ir.IRString)
	if !ok {
		return ir.MarshalInline(v)
	}
	if strings.Contains(string(s), "'") && !strings.Contains(string(s), `"`) {
		return `"` + string(s) + `"`
	}
	return "'" + strings.ReplaceAll(string(s), "'", `\'`) + "'"
}

// RegexRule accepts strings fully matching a pattern.
type RegexRule struct {
	pattern string
	re      *regexp.Regexp
	example string
}

// Regex compiles pattern (RE2 syntax) into a rule. The whole string must match.
func Regex(pattern string) (*RegexRule, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("regex rule: %w", err)
	}
	ex, err := shortestMatch(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex rule: %w", err)
	}
	return &RegexRule{pattern: pattern, re: re, example: ex}, nil
}

// MustRegex is like Regex but panics on an invalid pattern.
func MustRegex(pattern string) *RegexRule {
	r, err := Regex(pattern)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *RegexRule) Name() string    { return "regex" }
func (r *RegexRule) Pattern() string { return r.pattern }

func (r *RegexRule) Describe() string {
	return `must be a string matching regex "` + r.pattern + `"`
}

func (r *RegexRule) Example() ir.IRValue { return ir.IRString(r.example) }

func (r *RegexRule) Validate(v ir.IRValue) bool {
	s, ok := v.(ir.IRString)
	return ok && r.re.MatchString(string(s))
}

// NaturalRule accepts integers >= 1.
type NaturalRule struct{}

// NaturalNumber returns a rule accepting positive integers. Floats and
// booleans are rejected even when integral.
func NaturalNumber() NaturalRule { return NaturalRule{} }

func (NaturalRule) Name() string        { return "natural" }
func (NaturalRule) Describe() string    { return "must be an integer (>= 1)" }
func (NaturalRule) Example() ir.IRValue { return ir.IRInt(3) }

func (NaturalRule) Validate(v ir.IRValue) bool {
	n, ok := v.(ir.IRInt)
	return ok && n >= 1
}
