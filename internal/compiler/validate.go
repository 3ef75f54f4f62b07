package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Declaration error codes (E200-E299)
const (
	ErrNoSchemas       = "E200" // schema struct declares nothing
	ErrUnknownType     = "E201" // primitive name not recognised
	ErrUnknownRule     = "E202" // rule name not in the registry
	ErrDanglingRef     = "E203" // ref names an undeclared schema
	ErrEmptyComposite  = "E204" // union or tuple with no members
	ErrBadRuleParams   = "E205" // rule factory rejected its parameters
	ErrDuplicateSchema = "E206" // schema name declared twice
	ErrBadDeclaration  = "E207" // field struct has zero or several form keys
	ErrInvalidRecord   = "E208" // record construction failed
	ErrBadExample      = "E209" // worked example does not satisfy its schema
)

// ValidationError represents one semantic problem in a declaration.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every problem found in one compilation. Compilation
// does not stop at the first one.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	lines := make([]string, len(es))
	for i, e := range es {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}

// Codes returns the error codes in order.
func (es ValidationErrors) Codes() []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Code
	}
	return out
}

// AsValidationErrors extracts declaration problems from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var es ValidationErrors
	if errors.As(err, &es) {
		return es, true
	}
	var e ValidationError
	if errors.As(err, &e) {
		return ValidationErrors{e}, true
	}
	return nil, false
}

// HasCode reports whether err carries a declaration problem with code.
func HasCode(err error, code string) bool {
	es, ok := AsValidationErrors(err)
	if !ok {
		return false
	}
	for _, e := range es {
		if e.Code == code {
			return true
		}
	}
	return false
}
