package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/tether/internal/ir"
)

const (
	promptLead    = "Fill in **valid JSON** for the fields below."
	promptTrailer = "Return **only** the JSON object — no code-fences, no comments."
	repairTrailer = "Reply with **only** the corrected JSON object."

	// microExampleRunes is how much of an inline example a rule line shows.
	microExampleRunes = 10
)

// Rules renders the indented rule block, one entry per line.
func (r *Record) Rules() []string {
	rd := ruleRenderer{root: r}
	rd.record(r, "", 0, nil)
	return rd.lines
}

// RuleBlock is Rules joined by newlines.
func (r *Record) RuleBlock() string {
	return strings.Join(r.Rules(), "\n")
}

type anchored struct {
	tail string
	desc string
}

type ruleRenderer struct {
	root  *Record
	lines []string
}

func (rd *ruleRenderer) add(line string) {
	rd.lines = append(rd.lines, line)
}

func (rd *ruleRenderer) record(rec *Record, prefix string, lvl int, p recordPath) {
	p = append(p[:len(p):len(p)], rec)
	ind := strings.Repeat("  ", lvl)
	ind2 := ind + "  "
	ind3 := ind + "    "

	grouped := make(map[string][]anchored)
	for _, c := range rec.constraints {
		head, tail, _ := strings.Cut(c.Anchor, ".")
		grouped[head] = append(grouped[head], anchored{tail: tail, desc: c.Description})
	}

	for _, f := range rec.fields {
		full := prefix + f.Name
		label := ind + "- " + full
		if note := rd.root.NoteFor(full); note != "" {
			label += "  – " + note
		}
		rd.add(label)

		switch t := f.Type.(type) {
		case OptionalType:
			rd.add(ind2 + "• (Optional) Key can be *missing* or:")
			rd.add(ind3 + "- " + indentLines(Describe(t.Inner), ind3))
			rd.add(ind3 + "- None")
			rd.children(t.Inner, full, lvl+2, p)

		case UnionType:
			rd.add(ind2 + "• choose **one** of:")
			for i, alt := range t.Alts {
				rd.add(fmt.Sprintf("%s%d. %s", ind3, i+1, indentLines(Describe(alt), ind3)))
				rd.children(alt, full, lvl+3, p)
			}

		default:
			rd.add(ind2 + "• " + indentLines(Describe(t), ind3))
			if hasMicroExample(t) {
				rd.add(ind3 + "(ex: " + microExample(exampleAt(t, p)) + ")")
			}
			rd.children(t, full, lvl+1, p)
		}

		for _, a := range grouped[f.Name] {
			at := full
			if a.tail != "" {
				at = full + "." + a.tail
			}
			rd.add(ind2 + "- " + at + " " + a.desc)
		}
	}

	for _, a := range grouped[""] {
		rd.add(ind + "- " + a.desc)
	}
}

// children emits the rules of records directly reachable from t. A record
// already on p keeps only the label line its field was given.
func (rd *ruleRenderer) children(t Type, full string, lvl int, p recordPath) {
	if len(p) >= MaxDepth {
		return
	}
	if rec, ok := asRecord(t); ok {
		if !p.has(rec) {
			rd.record(rec, full+".", lvl, p)
		}
		return
	}
	if rec, ok := listOfRecord(t); ok {
		if !p.has(rec) {
			rd.record(rec, full+"[].", lvl, p)
		}
		return
	}
	if tt, ok := t.(TupleType); ok {
		for i, el := range tt.Elems {
			if rec, ok := asRecord(el); ok && !p.has(rec) {
				rd.record(rec, fmt.Sprintf("%s[%d].", full, i), lvl, p)
			}
		}
	}
}

// hasMicroExample is false for records, tuples and lists of records, whose
// examples are too large to preview inline.
func hasMicroExample(t Type) bool {
	switch t.(type) {
	case RecordType, TupleType:
		return false
	}
	_, isListOfRecord := listOfRecord(t)
	return !isListOfRecord
}

func microExample(v ir.IRValue) string {
	s := ir.MarshalInline(v)
	if utf8.RuneCountInString(s) < microExampleRunes {
		return s
	}
	return string([]rune(s)[:microExampleRunes]) + "…"
}

func indentLines(s, ind string) string {
	return strings.ReplaceAll(s, "\n", "\n"+ind)
}

// Prompt renders the generation instructions: rule block, worked examples
// and the reply-format instruction.
func (r *Record) Prompt() string {
	lead := promptLead
	if r.header != "" {
		lead += " – **" + r.header + "**"
	}

	examples := r.Examples()
	blocks := make([]string, len(examples))
	for i, ex := range examples {
		blocks[i] = fmt.Sprintf("Example %d:\n```json\n%s\n```", i+1, ir.MarshalIndent(ex))
	}

	return lead + "\n\nRules\n" + r.RuleBlock() + "\n\n" +
		strings.Join(blocks, "\n\n") + "\n\n" + promptTrailer
}

// RepairPrompt renders a request to correct bad: the first problem found,
// the rule block, and the offending value verbatim.
func (r *Record) RepairPrompt(bad ir.IRValue) string {
	var b strings.Builder
	b.WriteString("The JSON below is invalid.\n\n")
	if viol := r.Validate(bad); viol != nil {
		fmt.Fprintf(&b, "Problem:\n- %s\n  Expected:\n %s\n\n", viol.Short, viol.Long)
	}
	b.WriteString("Rules:\n")
	b.WriteString(r.RuleBlock())
	b.WriteString("\n\nCurrent value (invalid):\n```json\n")
	b.Write(ir.MarshalIndent(bad))
	b.WriteString("\n```\n\n")
	b.WriteString(repairTrailer)
	return b.String()
}
