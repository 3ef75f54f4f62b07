package compiler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  ValidationError
		want string
	}{
		{"with line", ValidationError{Field: "A.fields.x", Message: "bad", Code: ErrUnknownType, Line: 3}, "[E201] line 3: A.fields.x: bad"},
		{"without line", ValidationError{Field: "A", Message: "bad", Code: ErrDuplicateSchema}, "[E206] A: bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestValidationErrorsJoin(t *testing.T) {
	es := ValidationErrors{
		{Field: "a", Message: "one", Code: ErrUnknownType},
		{Field: "b", Message: "two", Code: ErrUnknownRule},
	}
	assert.Equal(t, "[E201] a: one\n[E202] b: two", es.Error())
	assert.Equal(t, []string{ErrUnknownType, ErrUnknownRule}, es.Codes())
}

func TestAsValidationErrors(t *testing.T) {
	single := ValidationError{Field: "a", Message: "one", Code: ErrDanglingRef}
	wrapped := fmt.Errorf("compile: %w", single)

	es, ok := AsValidationErrors(wrapped)
	require.True(t, ok)
	assert.Equal(t, ValidationErrors{single}, es)
	assert.True(t, HasCode(wrapped, ErrDanglingRef))
	assert.False(t, HasCode(wrapped, ErrBadExample))

	many := fmt.Errorf("compile: %w", ValidationErrors{single, single})
	es, ok = AsValidationErrors(many)
	require.True(t, ok)
	assert.Len(t, es, 2)

	_, ok = AsValidationErrors(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, HasCode(nil, ErrDanglingRef))
}
