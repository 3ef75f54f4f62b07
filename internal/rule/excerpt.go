package rule

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tether/internal/ir"
)

// Excerpt defaults.
const (
	DefaultWindow    = 500
	DefaultStride    = 250
	DefaultThreshold = 0.75
	DefaultMinLength = 30
)

// ExcerptRule accepts strings that closely match some passage of a source text.
//
// Source and candidate are normalized (NFC, runs of non-word characters
// collapsed to one space, lower-cased). The source is cut into overlapping
// windows; a candidate passes when its similarity ratio against any window
// reaches the threshold.
type ExcerptRule struct {
	window    int
	stride    int
	threshold float64
	minLength int
	windows   [][]string
	example   string
}

// ExcerptOption configures an ExcerptRule.
type ExcerptOption func(*ExcerptRule)

// WithWindow sets the comparison window width in runes.
func WithWindow(n int) ExcerptOption {
	return func(r *ExcerptRule) { r.window = n }
}

// WithStride sets the distance in runes between window starts.
func WithStride(n int) ExcerptOption {
	return func(r *ExcerptRule) { r.stride = n }
}

// WithThreshold sets the minimum similarity ratio in [0, 1].
func WithThreshold(t float64) ExcerptOption {
	return func(r *ExcerptRule) { r.threshold = t }
}

// WithMinLength sets the minimum normalized candidate length in runes.
func WithMinLength(n int) ExcerptOption {
	return func(r *ExcerptRule) { r.minLength = n }
}

// Excerpt precomputes the normalized windows of source. It fails when the
// normalized source, or the window, is shorter than the minimum length.
func Excerpt(source string, opts ...ExcerptOption) (*ExcerptRule, error) {
	r := &ExcerptRule{
		window:    DefaultWindow,
		stride:    DefaultStride,
		threshold: DefaultThreshold,
		minLength: DefaultMinLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.window <= 0 || r.stride <= 0 {
		return nil, fmt.Errorf("excerpt rule: window and stride must be positive, got %d and %d", r.window, r.stride)
	}
	if r.threshold < 0 || r.threshold > 1 {
		return nil, fmt.Errorf("excerpt rule: threshold must be within [0, 1], got %v", r.threshold)
	}

	src := []rune(strings.TrimSpace(normalizeText(source)))
	if len(src) == 0 {
		return nil, errors.New("excerpt rule: source is empty after normalization")
	}
	// the first window is the example, so it has to satisfy the rule itself
	if first := min(r.window, len(src)); first < r.minLength {
		return nil, fmt.Errorf("excerpt rule: first window has %d runes, fewer than min length %d", first, r.minLength)
	}
	for i := 0; i < len(src); i += r.stride {
		end := min(i+r.window, len(src))
		r.windows = append(r.windows, runeStrings(src[i:end]))
		if i == 0 {
			r.example = strings.TrimSpace(string(src[:end]))
		}
	}
	return r, nil
}

func (r *ExcerptRule) Name() string { return "excerpt" }

func (r *ExcerptRule) Describe() string {
	return fmt.Sprintf("must closely match a passage in the source (≥ %d%% similarity)", int(r.threshold*100))
}

// Example returns the first normalized window of the source.
func (r *ExcerptRule) Example() ir.IRValue {
	return ir.IRString(r.example)
}

func (r *ExcerptRule) Validate(v ir.IRValue) bool {
	s, ok := v.(ir.IRString)
	if !ok || strings.TrimSpace(string(s)) == "" {
		return false
	}
	cand := runeStrings([]rune(normalizeText(string(s))))
	if len(cand) < r.minLength {
		return false
	}
	for _, w := range r.windows {
		if difflib.NewMatcher(cand, w).Ratio() >= r.threshold {
			return true
		}
	}
	return false
}

// Windows returns the number of precomputed source windows.
func (r *ExcerptRule) Windows() int { return len(r.windows) }

// normalizeText applies NFC, replaces each run of non-word characters with a
// single space and lower-cases the result.
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	inGap := false
	for _, r := range s {
		if isWordRune(r) {
			b.WriteRune(r)
			inGap = false
			continue
		}
		if !inGap {
			b.WriteByte(' ')
			inGap = true
		}
	}
	// a Caser is stateful, so each call gets its own
	return cases.Lower(language.Und).String(b.String())
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// runeStrings splits runes into one-element strings, the sequence unit
// difflib compares.
func runeStrings(rs []rune) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
