package schema

import (
	"github.com/roach88/tether/internal/rule"
)

// MaxDepth bounds how many nested records example and rule rendering
// descend into. Recursive references stop earlier, at the first record
// already on the path.
const MaxDepth = 32

// Type is a sealed interface over the type descriptors a field may carry.
// Only Primitive, RuleType, ListType, TupleType, UnionType, OptionalType
// and RecordType implement it.
type Type interface {
	schemaType() // Sealed - only these types implement it
}

// Kind is a primitive kind.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindFloat   Kind = "float"
	KindBoolean Kind = "boolean"
)

// Primitive is a plain JSON scalar kind.
type Primitive struct {
	Kind Kind
}

func (Primitive) schemaType() {}

// RuleType is a scalar checked by a constraint rule.
type RuleType struct {
	Rule rule.Rule
}

func (RuleType) schemaType() {}

// ListType is a homogeneous list.
type ListType struct {
	Elem Type
}

func (ListType) schemaType() {}

// TupleType is a fixed-arity positional list.
type TupleType struct {
	Elems []Type
}

func (TupleType) schemaType() {}

// UnionType accepts a value matching any alternative.
// The first alternative is used for examples.
type UnionType struct {
	Alts []Type
}

func (UnionType) schemaType() {}

// OptionalType accepts null, or a value of Inner. A record field of this type
// may also be absent.
type OptionalType struct {
	Inner Type
}

func (OptionalType) schemaType() {}

// RecordType is a nested record, resolved lazily so records may refer to
// themselves or to records declared later.
type RecordType struct {
	resolve func() *Record
}

func (RecordType) schemaType() {}

// Record returns the referenced record, or nil for an unresolvable reference.
func (t RecordType) Record() *Record {
	if t.resolve == nil {
		return nil
	}
	return t.resolve()
}

// String returns the string primitive.
func String() Type { return Primitive{Kind: KindString} }

// Integer returns the integer primitive. Booleans never satisfy it.
func Integer() Type { return Primitive{Kind: KindInteger} }

// Float returns the float primitive. Integers satisfy it.
func Float() Type { return Primitive{Kind: KindFloat} }

// Boolean returns the boolean primitive.
func Boolean() Type { return Primitive{Kind: KindBoolean} }

// Ruled wraps a rule as a type.
func Ruled(r rule.Rule) Type { return RuleType{Rule: r} }

// ListOf returns a list of elem.
func ListOf(elem Type) Type { return ListType{Elem: elem} }

// TupleOf returns a tuple with one position per element type.
func TupleOf(elems ...Type) Type { return TupleType{Elems: elems} }

// UnionOf returns a union of the alternatives in priority order.
func UnionOf(alts ...Type) Type { return UnionType{Alts: alts} }

// OptionalOf returns an optional inner type.
func OptionalOf(inner Type) Type { return OptionalType{Inner: inner} }

// RecordOf returns a nested record type.
func RecordOf(r *Record) Type {
	return RecordType{resolve: func() *Record { return r }}
}

// Ref returns a nested record type resolved on each use.
func Ref(resolve func() *Record) Type {
	return RecordType{resolve: resolve}
}

// asRecord returns the record behind t when t is a RecordType.
func asRecord(t Type) (*Record, bool) {
	rt, ok := t.(RecordType)
	if !ok {
		return nil, false
	}
	rec := rt.Record()
	return rec, rec != nil
}

// listOfRecord reports whether t is a list whose elements are records.
func listOfRecord(t Type) (*Record, bool) {
	lt, ok := t.(ListType)
	if !ok {
		return nil, false
	}
	return asRecord(lt.Elem)
}
