package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tether/internal/ir"
)

// Field is a named, typed record member.
type Field struct {
	Name string
	Type Type
}

// Constraint is a cross-field predicate evaluated after every field passes.
//
// Anchor is the dotted field path the constraint is reported at; an empty
// anchor attaches it to the whole record. Fix, when set, adjusts a
// synthesised example so it satisfies Check.
type Constraint struct {
	Anchor      string
	Description string
	Check       func(obj *ir.IRObject) bool
	Fix         func(obj *ir.IRObject)
}

type exampleOverride struct {
	path  string
	value ir.IRValue
}

// Record is a named, ordered set of typed fields plus cross-field
// constraints, example overrides and documentation notes.
// A Record is immutable after NewRecord returns.
type Record struct {
	name        string
	header      string
	fields      []Field
	index       map[string]int
	notes       map[string]string
	constraints []Constraint
	overrides   []exampleOverride
	extras      []*ir.IRObject

	errs []error
}

// RecordOption configures a Record under construction.
type RecordOption func(*Record)

// WithField appends a field. Declaration order is error priority and key order.
func WithField(name string, t Type) RecordOption {
	return func(r *Record) {
		if t == nil {
			r.errs = append(r.errs, fmt.Errorf("field %q: nil type", name))
			return
		}
		if _, dup := r.index[name]; dup {
			r.errs = append(r.errs, fmt.Errorf("field %q declared twice", name))
			return
		}
		r.index[name] = len(r.fields)
		r.fields = append(r.fields, Field{Name: name, Type: t})
	}
}

// WithHeader sets the one-line summary shown in prompts and labels.
func WithHeader(text string) RecordOption {
	return func(r *Record) { r.header = text }
}

// WithNote attaches a documentation note to a field's rule line.
func WithNote(field, text string) RecordOption {
	return func(r *Record) { r.notes[field] = text }
}

// WithConstraint adds a cross-field constraint. fix may be nil.
func WithConstraint(anchor, description string, check func(*ir.IRObject) bool, fix func(*ir.IRObject)) RecordOption {
	return func(r *Record) {
		if check == nil {
			r.errs = append(r.errs, fmt.Errorf("constraint %q: nil check", anchor))
			return
		}
		r.constraints = append(r.constraints, Constraint{
			Anchor:      anchor,
			Description: description,
			Check:       check,
			Fix:         fix,
		})
	}
}

// WithOverride pins the example value at a dotted path. Overrides apply
// after constraint fixups, in declaration order.
func WithOverride(path string, v ir.IRValue) RecordOption {
	return func(r *Record) {
		r.overrides = append(r.overrides, exampleOverride{path: path, value: ir.Clone(v)})
	}
}

// WithExample adds a hand-written worked example after the synthesised one.
func WithExample(ex *ir.IRObject) RecordOption {
	return func(r *Record) {
		r.extras = append(r.extras, ir.Clone(ex).(*ir.IRObject))
	}
}

// NewRecord builds a record from options, applied in order.
func NewRecord(name string, opts ...RecordOption) (*Record, error) {
	r := &Record{
		name:  name,
		index: make(map[string]int),
		notes: make(map[string]string),
	}
	if strings.TrimSpace(name) == "" {
		r.errs = append(r.errs, errors.New("record name is empty"))
	}
	for _, opt := range opts {
		opt(r)
	}

	for field := range r.notes {
		if _, ok := r.index[field]; !ok {
			r.errs = append(r.errs, fmt.Errorf("note for unknown field %q", field))
		}
	}
	for _, c := range r.constraints {
		head, _, _ := strings.Cut(c.Anchor, ".")
		if head == "" {
			continue
		}
		if _, ok := r.index[head]; !ok {
			r.errs = append(r.errs, fmt.Errorf("constraint anchored at unknown field %q", c.Anchor))
		}
	}

	if len(r.errs) > 0 {
		return nil, fmt.Errorf("record %s: %w", name, errors.Join(r.errs...))
	}
	r.errs = nil
	return r, nil
}

// MustRecord is like NewRecord but panics on error.
// Use only for declarations known to be valid.
func MustRecord(name string, opts ...RecordOption) *Record {
	r, err := NewRecord(name, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the record name.
func (r *Record) Name() string { return r.name }

// Header returns the one-line summary, possibly empty.
func (r *Record) Header() string { return r.header }

// Fields returns the fields in declaration order.
func (r *Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Field returns the field declared under name.
func (r *Record) Field(name string) (Field, bool) {
	i, ok := r.index[name]
	if !ok {
		return Field{}, false
	}
	return r.fields[i], true
}

// Note returns the note attached to a direct field.
func (r *Record) Note(field string) string { return r.notes[field] }

// Constraints returns the cross-field constraints in declaration order.
func (r *Record) Constraints() []Constraint {
	out := make([]Constraint, len(r.constraints))
	copy(out, r.constraints)
	return out
}

// Validate returns the first violation in v, or nil when v conforms.
//
// Unknown keys are reported first, then fields in declaration order, then
// cross-field constraints in declaration order.
func (r *Record) Validate(v ir.IRValue) *Violation {
	obj, ok := v.(*ir.IRObject)
	if !ok {
		return sameMessage(SchemaMismatch, r.name, quoted(r.name)+" must be an object")
	}
	return r.validateAt(obj, "")
}

// Example synthesises one instance: one example per field, then constraint
// fixups, then explicit overrides.
func (r *Record) Example() *ir.IRObject {
	return r.exampleAt(nil)
}

func (r *Record) exampleAt(p recordPath) *ir.IRObject {
	p = append(p[:len(p):len(p)], r)
	ex := ir.NewIRObject()
	for _, f := range r.fields {
		ex.Set(f.Name, exampleAt(f.Type, p))
	}
	for _, c := range r.constraints {
		if c.Fix != nil {
			c.Fix(ex)
		}
	}
	for _, o := range r.overrides {
		ex.SetPath(o.path, ir.Clone(o.value))
	}
	return ex
}

// Examples returns the synthesised example followed by any hand-written ones.
func (r *Record) Examples() []*ir.IRObject {
	out := []*ir.IRObject{r.Example()}
	for _, ex := range r.extras {
		out = append(out, ir.Clone(ex).(*ir.IRObject))
	}
	return out
}
