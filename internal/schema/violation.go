package schema

import (
	"errors"
	"fmt"
)

// ViolationKind classifies a validation failure.
type ViolationKind string

const (
	// SchemaMismatch: unexpected or missing field, wrong shape or primitive kind.
	SchemaMismatch ViolationKind = "schema_mismatch"

	// ConstraintViolation: a scalar rule or cross-field predicate failed.
	ConstraintViolation ViolationKind = "constraint_violation"

	// UnionExhausted: no alternative of a union matched.
	UnionExhausted ViolationKind = "union_exhausted"
)

// Violation is the first validation failure found in a value.
//
// Short is a stable one-line message; Long restates what was expected and is
// shown to the generator in repair prompts.
type Violation struct {
	Kind  ViolationKind `json:"kind"`
	Path  string        `json:"path"`
	Short string        `json:"short"`
	Long  string        `json:"long"`
}

// Error implements the error interface.
func (v *Violation) Error() string {
	return v.Short
}

// AsViolation extracts a *Violation from err.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// IsKind reports whether err is a Violation of the given kind.
func IsKind(err error, kind ViolationKind) bool {
	v, ok := AsViolation(err)
	return ok && v.Kind == kind
}

func quoted(path string) string {
	return `"` + path + `"`
}

func mismatch(path, short, long string) *Violation {
	return &Violation{Kind: SchemaMismatch, Path: path, Short: short, Long: long}
}

func sameMessage(kind ViolationKind, path, msg string) *Violation {
	return &Violation{Kind: kind, Path: path, Short: msg, Long: msg}
}

func ruleViolation(path, describe string) *Violation {
	return &Violation{
		Kind:  ConstraintViolation,
		Path:  path,
		Short: quoted(path) + " is invalid.",
		Long:  quoted(path) + " " + describe,
	}
}

func missingField(path string) *Violation {
	return mismatch(path, quoted(path)+" is missing.", quoted(path)+" must be present.")
}

func unknownField(path string) *Violation {
	return mismatch(path, quoted(path)+" is not a valid field.", quoted(path)+" is not expected here.")
}

func crossField(path, description string) *Violation {
	return &Violation{
		Kind:  ConstraintViolation,
		Path:  path,
		Short: quoted(path) + " violates constraint.",
		Long:  quoted(path) + " " + description,
	}
}

func shapeViolation(path, shape, got string) *Violation {
	return mismatch(path,
		fmt.Sprintf("%s must be a %s, got %s", quoted(path), shape, got),
		fmt.Sprintf("%s must be %s", quoted(path), shape))
}
