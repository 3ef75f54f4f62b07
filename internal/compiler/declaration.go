package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tether/internal/ir"
	"github.com/roach88/tether/internal/rule"
	"github.com/roach88/tether/internal/schema"
)

// Primitive type names accepted in declarations.
var primitives = map[string]func() schema.Type{
	"string":  schema.String,
	"integer": schema.Integer,
	"float":   schema.Float,
	"boolean": schema.Boolean,
}

// Keys that select a composite form inside a field declaration struct.
var formKeys = []string{"type", "rule", "list", "tuple", "union", "optional", "ref"}

// CompileFile reads a CUE file and compiles every schema under its
// top-level "schema" struct. A nil registry means rule.DefaultRegistry().
func CompileFile(path string, reg *rule.Registry) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ctx := cuecontext.New()
	return CompileValue(ctx.CompileBytes(data, cue.Filename(path)), reg)
}

// CompileString compiles CUE source. It is CompileFile without the file.
func CompileString(src string, reg *rule.Registry) (*Catalog, error) {
	ctx := cuecontext.New()
	return CompileValue(ctx.CompileString(src, cue.Filename("schema.cue")), reg)
}

// CompileValue compiles an already-built CUE value.
//
// CUE errors come back as *CompileError. Declarations that are well formed
// CUE but make no sense as schemas (unknown types or rules, dangling refs,
// examples that do not validate) are collected and returned together as
// ValidationErrors.
func CompileValue(v cue.Value, reg *rule.Registry) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if reg == nil {
		reg = rule.DefaultRegistry()
	}

	root := v.LookupPath(cue.ParsePath("schema"))
	if !root.Exists() {
		return nil, &CompileError{
			Field:   "schema",
			Message: "top-level schema struct is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	c := &compilation{reg: reg, catalog: NewCatalog(), opts: make(map[string][]schema.RecordOption)}
	var decls []cue.Value
	for iter.Next() {
		name := iter.Label()
		if err := c.declare(name, iter.Value()); err != nil {
			return nil, err
		}
		decls = append(decls, iter.Value())
	}
	if len(decls) == 0 {
		return nil, ValidationErrors{{
			Field:   "schema",
			Message: "no schemas declared",
			Code:    ErrNoSchemas,
			Line:    root.Pos().Line(),
		}}
	}

	c.checkRefs()
	if len(c.errs) == 0 {
		c.checkExamples(decls)
	}
	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return c.catalog, nil
}

// compilation carries the state of one CompileValue call.
type compilation struct {
	reg     *rule.Registry
	catalog *Catalog
	opts    map[string][]schema.RecordOption
	refs    []pendingRef
	errs    ValidationErrors
}

// pendingRef is a "ref" seen during declaration, checked once every schema
// is known.
type pendingRef struct {
	field  string
	target string
	pos    token.Pos
}

func (c *compilation) fail(field string, pos token.Pos, code, format string, args ...any) {
	c.errs = append(c.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		Line:    pos.Line(),
	})
}

// declare compiles one schema struct and adds it to the catalog.
func (c *compilation) declare(name string, v cue.Value) error {
	var opts []schema.RecordOption

	if h := v.LookupPath(cue.ParsePath("header")); h.Exists() {
		s, err := h.String()
		if err != nil {
			return formatCUEError(err)
		}
		opts = append(opts, schema.WithHeader(s))
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return &CompileError{
			Field:   name + ".fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	fieldIter, err := fieldsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for fieldIter.Next() {
		fieldName := fieldIter.Label()
		path := name + ".fields." + fieldName
		t, note, err := c.decodeField(path, fieldIter.Value())
		if err != nil {
			return err
		}
		if t == nil {
			continue
		}
		opts = append(opts, schema.WithField(fieldName, t))
		if note != "" {
			opts = append(opts, schema.WithNote(fieldName, note))
		}
	}

	if ov := v.LookupPath(cue.ParsePath("overrides")); ov.Exists() {
		ovIter, err := ov.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for ovIter.Next() {
			val, err := toIR(ovIter.Value())
			if err != nil {
				return err
			}
			opts = append(opts, schema.WithOverride(ovIter.Label(), val))
		}
	}

	rec, err := schema.NewRecord(name, opts...)
	if err != nil {
		c.fail(name, v.Pos(), ErrInvalidRecord, "%v", err)
		return nil
	}
	if err := c.catalog.Add(rec); err != nil {
		c.fail(name, v.Pos(), ErrDuplicateSchema, "schema %q declared twice", name)
		return nil
	}
	c.opts[name] = opts
	return nil
}

// decodeField returns the type and optional note of one field. A nil type
// with a nil error means the problem was recorded as a ValidationError.
func (c *compilation) decodeField(path string, v cue.Value) (schema.Type, string, error) {
	if v.IncompleteKind() != cue.StructKind {
		t, err := c.decodeType(path, v)
		return t, "", err
	}
	var note string
	if n := v.LookupPath(cue.ParsePath("note")); n.Exists() {
		s, err := n.String()
		if err != nil {
			return nil, "", formatCUEError(err)
		}
		note = s
	}
	t, err := c.decodeType(path, v)
	return t, note, err
}

// decodeType turns a type declaration into a schema.Type. A declaration is
// either a primitive name or a struct with exactly one form key.
func (c *compilation) decodeType(path string, v cue.Value) (schema.Type, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		name, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		mk, ok := primitives[name]
		if !ok {
			c.fail(path, v.Pos(), ErrUnknownType, "unknown type %q", name)
			return nil, nil
		}
		return mk(), nil
	case cue.StructKind:
	default:
		return nil, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("type must be a name or a struct, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	var form string
	for _, k := range formKeys {
		if !v.LookupPath(cue.MakePath(cue.Str(k))).Exists() {
			continue
		}
		if form != "" {
			c.fail(path, v.Pos(), ErrBadDeclaration, "both %q and %q given", form, k)
			return nil, nil
		}
		form = k
	}
	if form == "" {
		c.fail(path, v.Pos(), ErrBadDeclaration, "expected one of %v", formKeys)
		return nil, nil
	}
	body := v.LookupPath(cue.MakePath(cue.Str(form)))

	switch form {
	case "type":
		return c.decodeType(path, body)
	case "rule":
		return c.decodeRule(path, v, body)
	case "list":
		elem, err := c.decodeType(path+".list", body)
		if elem == nil || err != nil {
			return nil, err
		}
		return schema.ListOf(elem), nil
	case "optional":
		inner, err := c.decodeType(path+".optional", body)
		if inner == nil || err != nil {
			return nil, err
		}
		return schema.OptionalOf(inner), nil
	case "tuple", "union":
		elems, err := c.decodeList(path+"."+form, body)
		if elems == nil || err != nil {
			return nil, err
		}
		if form == "tuple" {
			return schema.TupleOf(elems...), nil
		}
		return schema.UnionOf(elems...), nil
	default: // ref
		target, err := body.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		c.refs = append(c.refs, pendingRef{field: path, target: target, pos: body.Pos()})
		cat := c.catalog
		return schema.Ref(func() *schema.Record {
			rec, _ := cat.Lookup(target)
			return rec
		}), nil
	}
}

func (c *compilation) decodeList(path string, v cue.Value) ([]schema.Type, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []schema.Type
	broken := false
	for i := 0; iter.Next(); i++ {
		t, err := c.decodeType(fmt.Sprintf("%s[%d]", path, i), iter.Value())
		if err != nil {
			return nil, err
		}
		if t == nil {
			broken = true
			continue
		}
		out = append(out, t)
	}
	if broken {
		return nil, nil
	}
	if len(out) == 0 {
		c.fail(path, v.Pos(), ErrEmptyComposite, "must list at least one type")
		return nil, nil
	}
	return out, nil
}

// decodeRule builds a rule from the registry. Every key of the declaration
// other than "rule" and "note" is passed as a parameter.
func (c *compilation) decodeRule(path string, decl, nameVal cue.Value) (schema.Type, error) {
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if _, ok := c.reg.Lookup(name); !ok {
		c.fail(path, nameVal.Pos(), ErrUnknownRule, "unknown rule %q", name)
		return nil, nil
	}

	params := rule.Params{}
	iter, err := decl.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		key := iter.Label()
		if key == "rule" || key == "note" {
			continue
		}
		val, err := toIR(iter.Value())
		if err != nil {
			return nil, err
		}
		if s, ok := val.(ir.IRString); ok {
			params[key] = string(s)
			continue
		}
		params[key] = val
	}

	rl, err := c.reg.Build(name, params)
	if err != nil {
		c.fail(path, decl.Pos(), ErrBadRuleParams, "%v", err)
		return nil, nil
	}
	return schema.Ruled(rl), nil
}

func (c *compilation) checkRefs() {
	for _, ref := range c.refs {
		if _, ok := c.catalog.Lookup(ref.target); !ok {
			c.fail(ref.field, ref.pos, ErrDanglingRef, "ref to undeclared schema %q", ref.target)
		}
	}
}

// checkExamples attaches hand-written examples. They are checked after every
// ref resolves, so an example may contain nested schemas declared later. A
// record with examples is rebuilt and swapped into the catalog; refs look
// records up by name on each use and so see the new one.
func (c *compilation) checkExamples(decls []cue.Value) {
	for i, rec := range c.catalog.Records() {
		exVal := decls[i].LookupPath(cue.ParsePath("examples"))
		if !exVal.Exists() {
			continue
		}
		iter, err := exVal.List()
		if err != nil {
			c.fail(rec.Name()+".examples", exVal.Pos(), ErrBadExample, "examples must be a list")
			continue
		}
		var extras []*ir.IRObject
		for j := 0; iter.Next(); j++ {
			field := fmt.Sprintf("%s.examples[%d]", rec.Name(), j)
			val, err := toIR(iter.Value())
			if err != nil {
				c.fail(field, iter.Value().Pos(), ErrBadExample, "%v", err)
				continue
			}
			obj, ok := val.(*ir.IRObject)
			if !ok {
				c.fail(field, iter.Value().Pos(), ErrBadExample, "example must be an object")
				continue
			}
			if viol := rec.Validate(obj); viol != nil {
				c.fail(field, iter.Value().Pos(), ErrBadExample, "%s", viol.Long)
				continue
			}
			extras = append(extras, obj)
		}
		if len(extras) == 0 {
			continue
		}
		opts := c.opts[rec.Name()]
		for _, ex := range extras {
			opts = append(opts, schema.WithExample(ex))
		}
		rebuilt, err := schema.NewRecord(rec.Name(), opts...)
		if err != nil {
			c.fail(rec.Name(), exVal.Pos(), ErrInvalidRecord, "%v", err)
			continue
		}
		c.catalog.replace(rebuilt)
	}
}

// toIR converts a concrete CUE value to an ordered IR value.
func toIR(v cue.Value) (ir.IRValue, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return ir.Parse(data)
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: "cue", Message: err.Error()}
	}

	// Return first error with position info
	firstErr := errs[0]
	ce := &CompileError{Field: "cue", Message: firstErr.Error()}
	if positions := errors.Positions(firstErr); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
