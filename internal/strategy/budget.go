package strategy

import (
	"errors"
	"fmt"
)

// Budget counts the rounds a run spends against a fixed limit.
//
// AutoRepair uses one Budget per run for its repair rounds; every round,
// successful or not, draws from it.
type Budget struct {
	limit   int
	current int
}

// NewBudget creates a budget allowing limit rounds.
func NewBudget(limit int) *Budget {
	return &Budget{limit: limit}
}

// Spend takes one round. It returns a *BudgetExhaustedError once the limit
// is passed.
func (b *Budget) Spend(runID string, code ErrorCode) error {
	b.current++
	if b.current > b.limit {
		return &BudgetExhaustedError{
			Code:  code,
			RunID: runID,
			Spent: b.current - 1,
			Limit: b.limit,
		}
	}
	return nil
}

// Current returns the rounds spent so far.
func (b *Budget) Current() int { return b.current }

// Limit returns the allowed rounds.
func (b *Budget) Limit() int { return b.limit }

// Remaining returns the rounds still available.
func (b *Budget) Remaining() int { return max(b.limit-b.current, 0) }

// ErrorCode categorizes budget exhaustion.
type ErrorCode string

const (
	// CodeRetriesExhausted: every Base attempt returned an invalid reply.
	CodeRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"

	// CodeDepthExhausted: every repair round failed.
	CodeDepthExhausted ErrorCode = "DEPTH_EXHAUSTED"
)

// BudgetExhaustedError describes a run that used its whole budget without a
// valid reply. Strategies log it; callers see the failed Attempt.
type BudgetExhaustedError struct {
	Code  ErrorCode
	RunID string
	Spent int
	Limit int
	Short string // last violation
}

// Error implements the error interface.
func (e *BudgetExhaustedError) Error() string {
	msg := fmt.Sprintf("%s: %d of %d spent", e.Code, e.Spent, e.Limit)
	if e.RunID != "" {
		msg += fmt.Sprintf(" (run=%s)", e.RunID)
	}
	if e.Short != "" {
		msg += ": " + e.Short
	}
	return msg
}

// IsBudgetExhausted reports whether err is a BudgetExhaustedError with the
// given code. An empty code matches any.
// Uses errors.As to handle wrapped errors.
func IsBudgetExhausted(err error, code ErrorCode) bool {
	var be *BudgetExhaustedError
	if !errors.As(err, &be) {
		return false
	}
	return code == "" || be.Code == code
}
