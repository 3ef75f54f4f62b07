package rule

import (
	"errors"
	"fmt"
	"regexp/syntax"
	"strings"
	"unicode"
)

// errNoMatch is returned for patterns that cannot match any string.
var errNoMatch = errors.New("pattern matches no string")

// shortestMatch synthesises a short string matched by pattern. Repetitions
// take their minimum count, alternations their shortest branch, and
// character classes a readable member.
func shortestMatch(pattern string) (string, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := synth(&b, re.Simplify()); err != nil {
		return "", fmt.Errorf("%q: %w", pattern, err)
	}
	return b.String(), nil
}

func synth(b *strings.Builder, re *syntax.Regexp) error {
	switch re.Op {
	case syntax.OpNoMatch:
		return errNoMatch
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return nil
	case syntax.OpLiteral:
		b.WriteString(string(re.Rune))
	case syntax.OpCharClass:
		r, ok := pickRune(re.Rune)
		if !ok {
			return errNoMatch
		}
		b.WriteRune(r)
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		b.WriteByte('x')
	case syntax.OpCapture:
		return synth(b, re.Sub[0])
	case syntax.OpStar, syntax.OpQuest:
		return nil
	case syntax.OpPlus:
		return synth(b, re.Sub[0])
	case syntax.OpRepeat:
		for range re.Min {
			if err := synth(b, re.Sub[0]); err != nil {
				return err
			}
		}
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if err := synth(b, sub); err != nil {
				return err
			}
		}
	case syntax.OpAlternate:
		best, found := "", false
		for _, sub := range re.Sub {
			var alt strings.Builder
			if err := synth(&alt, sub); err != nil {
				continue
			}
			if !found || len(alt.String()) < len(best) {
				best, found = alt.String(), true
			}
		}
		if !found {
			return errNoMatch
		}
		b.WriteString(best)
	default:
		return fmt.Errorf("unsupported regex operator %v", re.Op)
	}
	return nil
}

// pickRune chooses a member of a character class given as [lo, hi] pairs,
// preferring letters and digits over punctuation and control characters.
func pickRune(ranges []rune) (rune, bool) {
	if len(ranges) == 0 {
		return 0, false
	}
	contains := func(r rune) bool {
		for i := 0; i+1 < len(ranges); i += 2 {
			if ranges[i] <= r && r <= ranges[i+1] {
				return true
			}
		}
		return false
	}
	for _, r := range "a0A_-" {
		if contains(r) {
			return r, true
		}
	}
	for i := 0; i+1 < len(ranges); i += 2 {
		lo, hi := ranges[i], ranges[i+1]
		for r := lo; r <= hi && r < lo+256; r++ {
			if unicode.IsGraphic(r) && !unicode.IsSpace(r) {
				return r, true
			}
		}
	}
	return ranges[0], true
}
