package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/tether/internal/ir"
)

// Check validates v against t at the dotted path and returns the first
// violation, or nil. Checks run in a fixed precedence: rule, list, tuple,
// optional, union, record, primitive.
func Check(t Type, v ir.IRValue, path string) *Violation {
	switch tt := t.(type) {
	case RuleType:
		if !tt.Rule.Validate(v) {
			return ruleViolation(path, tt.Rule.Describe())
		}
		return nil

	case ListType:
		arr, ok := v.(ir.IRArray)
		if !ok {
			return shapeViolation(path, "list", ir.TypeName(v))
		}
		for i, elem := range arr {
			if viol := Check(tt.Elem, elem, fmt.Sprintf("%s[%d]", path, i)); viol != nil {
				return viol
			}
		}
		return nil

	case TupleType:
		arr, ok := v.(ir.IRArray)
		if !ok {
			return shapeViolation(path, "tuple", ir.TypeName(v))
		}
		if len(arr) != len(tt.Elems) {
			return mismatch(path,
				fmt.Sprintf("%s must have length %d, got %d", quoted(path), len(tt.Elems), len(arr)),
				fmt.Sprintf("%s must be length-%d tuple", quoted(path), len(tt.Elems)))
		}
		for i, elem := range arr {
			if viol := Check(tt.Elems[i], elem, fmt.Sprintf("%s[%d]", path, i)); viol != nil {
				return viol
			}
		}
		return nil

	case OptionalType:
		if isNull(v) {
			return nil
		}
		return Check(tt.Inner, v, path)

	case UnionType:
		expected := make([]string, 0, len(tt.Alts))
		for _, alt := range tt.Alts {
			viol := Check(alt, v, path)
			if viol == nil {
				return nil
			}
			expected = append(expected, viol.Long)
		}
		return &Violation{
			Kind:  UnionExhausted,
			Path:  path,
			Short: quoted(path) + " matches none of the allowed alternatives.",
			Long:  strings.Join(expected, " or "),
		}

	case RecordType:
		obj, ok := v.(*ir.IRObject)
		if !ok {
			return sameMessage(SchemaMismatch, path, quoted(path)+" must be an object")
		}
		rec := tt.Record()
		if rec == nil {
			return nil
		}
		return rec.validateAt(obj, path+".")

	case Primitive:
		if !primitiveOK(tt.Kind, v) {
			return sameMessage(SchemaMismatch, path, fmt.Sprintf("%s must be %s", quoted(path), tt.Kind))
		}
		return nil

	default:
		return nil
	}
}

func primitiveOK(kind Kind, v ir.IRValue) bool {
	switch kind {
	case KindString:
		_, ok := v.(ir.IRString)
		return ok
	case KindInteger:
		_, ok := v.(ir.IRInt)
		return ok
	case KindFloat:
		_, ok := ir.Number(v)
		return ok
	case KindBoolean:
		_, ok := v.(ir.IRBool)
		return ok
	default:
		return false
	}
}

func isNull(v ir.IRValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(ir.IRNull)
	return ok
}

// validateAt checks obj against the record with prefix prepended to every
// reported path ("" at the top level, "a." inside field a).
func (r *Record) validateAt(obj *ir.IRObject, prefix string) *Violation {
	for _, k := range obj.Keys() {
		if _, ok := r.index[k]; !ok {
			return unknownField(prefix + k)
		}
	}

	for _, f := range r.fields {
		val, ok := obj.Get(f.Name)
		if !ok {
			if _, optional := f.Type.(OptionalType); optional {
				continue
			}
			return missingField(prefix + f.Name)
		}
		if viol := Check(f.Type, val, prefix+f.Name); viol != nil {
			return viol
		}
	}

	for _, c := range r.constraints {
		if !c.Check(obj) {
			return crossField(r.anchorPath(prefix, c.Anchor), c.Description)
		}
	}
	return nil
}

// anchorPath is the reported path of a cross-field constraint. A constraint
// anchored at the whole record reports the record's own path, or its name at
// the top level.
func (r *Record) anchorPath(prefix, anchor string) string {
	if anchor != "" {
		return prefix + anchor
	}
	if p := strings.TrimSuffix(prefix, "."); p != "" {
		return p
	}
	return r.name
}
