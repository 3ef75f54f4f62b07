package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/tether/internal/ir"
)

// unionIndent prefixes each numbered union alternative.
const unionIndent = "          "

// Describe returns the generator-facing description of t.
func Describe(t Type) string {
	switch tt := t.(type) {
	case RuleType:
		return tt.Rule.Describe()
	case Primitive:
		return string(tt.Kind)
	case ListType:
		if rec, ok := asRecord(tt.Elem); ok {
			return "list of " + recordLabel(rec)
		}
		return "list of " + Describe(tt.Elem) + "s"
	case TupleType:
		parts := make([]string, len(tt.Elems))
		for i, el := range tt.Elems {
			parts[i] = fmt.Sprintf("el[%d] %s", i, Describe(el))
		}
		return "tuple ⟨" + strings.Join(parts, ", ") + "⟩"
	case OptionalType:
		return "(optional) missing, or: " + Describe(tt.Inner)
	case UnionType:
		lines := make([]string, len(tt.Alts))
		for i, alt := range tt.Alts {
			lines[i] = fmt.Sprintf("%s%d. %s", unionIndent, i+1, Describe(alt))
		}
		return "choose **one** of:\n" + strings.Join(lines, "\n")
	case RecordType:
		rec := tt.Record()
		if rec == nil {
			return "object"
		}
		return recordLabel(rec)
	default:
		return fmt.Sprintf("%T", t)
	}
}

// recordLabel is "Name – header", or just the name when there is no header.
func recordLabel(rec *Record) string {
	if rec.header == "" {
		return rec.name
	}
	return rec.name + " – " + rec.header
}

// Example synthesises a deterministic value of type t.
func Example(t Type) ir.IRValue {
	return exampleAt(t, nil)
}

// recordPath is the chain of records a walk is currently inside. A record
// met again on its own path is a recursive reference and is not expanded.
type recordPath []*Record

func (p recordPath) has(rec *Record) bool {
	for _, r := range p {
		if r == rec {
			return true
		}
	}
	return false
}

// stops reports whether descending into t would re-enter a record on p, or
// go past MaxDepth.
func (p recordPath) stops(t Type) bool {
	if len(p) >= MaxDepth {
		return true
	}
	rec, ok := asRecord(t)
	return ok && p.has(rec)
}

func exampleAt(t Type, p recordPath) ir.IRValue {
	switch tt := t.(type) {
	case RuleType:
		return tt.Rule.Example()
	case Primitive:
		switch tt.Kind {
		case KindString:
			return ir.IRString("example")
		case KindInteger:
			return ir.IRInt(42)
		case KindFloat:
			return ir.IRFloat(3.14)
		case KindBoolean:
			return ir.IRBool(true)
		}
		return ir.IRNull{}
	case ListType:
		if p.stops(tt.Elem) {
			return ir.IRArray{}
		}
		return ir.IRArray{exampleAt(tt.Elem, p)}
	case TupleType:
		out := make(ir.IRArray, len(tt.Elems))
		for i, el := range tt.Elems {
			out[i] = exampleAt(el, p)
		}
		return out
	case OptionalType:
		if p.stops(tt.Inner) {
			return ir.IRNull{}
		}
		return exampleAt(tt.Inner, p)
	case UnionType:
		if len(tt.Alts) == 0 {
			return ir.IRNull{}
		}
		return exampleAt(tt.Alts[0], p)
	case RecordType:
		rec := tt.Record()
		if rec == nil || p.stops(tt) {
			return ir.NewIRObject()
		}
		return rec.exampleAt(p)
	default:
		return ir.IRNull{}
	}
}
