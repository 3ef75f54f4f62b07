package generator

import (
	"errors"
	"strings"

	"github.com/roach88/tether/internal/ir"
)

// ErrEmptyReply is returned by TryParseReply for blank text.
var ErrEmptyReply = errors.New("empty reply")

// ParseReply cleans up model output and parses it. Text that still cannot be
// parsed yields the empty object.
func ParseReply(text string) ir.IRValue {
	v, err := TryParseReply(text)
	if err != nil {
		return ir.NewIRObject()
	}
	return v
}

// TryParseReply is ParseReply with the parse error reported. Cleanup:
//
//   - surrounding whitespace is trimmed
//   - a code fence and its "json" tag are stripped
//   - if that is not JSON, trailing commas before "]" or "}" are dropped and
//     doubled commas collapsed, outside string literals only
//   - if the rest is still not JSON, the outermost {...} block is tried
func TryParseReply(text string) (ir.IRValue, error) {
	s := stripFence(strings.TrimSpace(text))
	if s == "" {
		return nil, ErrEmptyReply
	}

	v, err := ir.Parse([]byte(s))
	if err == nil {
		return v, nil
	}
	s = dropStrayCommas(s)
	if v, cerr := ir.Parse([]byte(s)); cerr == nil {
		return v, nil
	}
	if block := outermostObject(s); block != "" && block != s {
		if v, berr := ir.Parse([]byte(block)); berr == nil {
			return v, nil
		}
	}
	return nil, err
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimSpace(strings.Trim(s, "`"))
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:]
	}
	return strings.TrimSpace(s)
}

// outermostObject returns the first balanced {...} block, ignoring braces
// inside string literals.
func outermostObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// dropStrayCommas removes commas that are followed, after optional
// whitespace, by "]", "}" or another comma. Text inside string literals is
// copied unchanged.
func dropStrayCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			next := strings.TrimLeft(s[i+1:], " \t\r\n")
			if next == "" || next[0] == ']' || next[0] == '}' || next[0] == ',' {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
