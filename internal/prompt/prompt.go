// Package prompt binds a text template to a record schema.
//
// Templates use single-brace placeholders ("{topic}"); "{{" and "}}" stand
// for literal braces. Rendering substitutes the placeholders and appends the
// record's generation instructions.
package prompt

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/schema"
)

var (
	// ErrMissingVar is returned when a placeholder has no value.
	ErrMissingVar = errors.New("unresolved placeholder")

	// ErrMalformed is returned for an unbalanced brace in a template.
	ErrMalformed = errors.New("malformed template")
)

// Vars are the values substituted into a template, keyed by placeholder name.
type Vars map[string]any

// Prompt is a template bound to the record a reply must satisfy.
type Prompt struct {
	template string
	raw      bool
	record   *schema.Record
}

// New binds template to rec.
func New(template string, rec *schema.Record) *Prompt {
	return &Prompt{template: template, record: rec}
}

// Raw binds text to rec without placeholder processing. Repair prompts embed
// JSON, whose braces must reach the generator untouched.
func Raw(text string, rec *schema.Record) *Prompt {
	return &Prompt{template: text, raw: true, record: rec}
}

// Record returns the bound schema.
func (p *Prompt) Record() *schema.Record { return p.record }

// Template returns the unrendered text.
func (p *Prompt) Template() string { return p.template }

// Placeholders lists the placeholder names in order of first appearance.
func (p *Prompt) Placeholders() ([]string, error) {
	if p.raw {
		return nil, nil
	}
	toks, err := scan(p.template)
	if err != nil {
		return nil, err
	}
	var names []string
	seen := make(map[string]bool)
	for _, tk := range toks {
		if tk.name && !seen[tk.text] {
			seen[tk.text] = true
			names = append(names, tk.text)
		}
	}
	return names, nil
}

// Render substitutes vars into the template and appends the record prompt.
// Variables the template never mentions are logged and ignored.
func (p *Prompt) Render(vars Vars) (string, error) {
	text, err := p.substitute(vars)
	if err != nil {
		return "", err
	}
	return text + "\n" + p.record.Prompt(), nil
}

// Validate checks v against the bound record.
func (p *Prompt) Validate(v ir.IRValue) *schema.Violation {
	return p.record.Validate(v)
}

func (p *Prompt) substitute(vars Vars) (string, error) {
	if p.raw {
		if len(vars) > 0 {
			slog.Warn("unused prompt variables", "vars", sortedNames(vars))
		}
		return p.template, nil
	}

	toks, err := scan(p.template)
	if err != nil {
		return "", err
	}

	used := make(map[string]bool)
	var missing []string
	var b strings.Builder
	for _, tk := range toks {
		if !tk.name {
			b.WriteString(tk.text)
			continue
		}
		v, ok := vars[tk.text]
		if !ok {
			missing = append(missing, tk.text)
			continue
		}
		used[tk.text] = true
		fmt.Fprintf(&b, "%v", v)
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingVar, strings.Join(missing, ", "))
	}

	var unused []string
	for name := range vars {
		if !used[name] {
			unused = append(unused, name)
		}
	}
	if len(unused) > 0 {
		sort.Strings(unused)
		slog.Warn("unused prompt variables", "vars", unused)
	}
	return b.String(), nil
}

func sortedNames(vars Vars) []string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type token struct {
	text string
	name bool
}

// scan splits a template into literal runs and placeholder names.
func scan(tmpl string) ([]token, error) {
	var toks []token
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			toks = append(toks, token{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed '{' at offset %d", ErrMalformed, i)
			}
			name := strings.TrimSpace(tmpl[i+1 : i+1+end])
			if name == "" || strings.ContainsRune(name, '{') {
				return nil, fmt.Errorf("%w: bad placeholder at offset %d", ErrMalformed, i)
			}
			flush()
			toks = append(toks, token{text: name, name: true})
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("%w: single '}' at offset %d", ErrMalformed, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return toks, nil
}
