package harness

import (
	"github.com/roach88/tether/internal/ir"
)

// TraceEvent is one generator call as recorded in the exchange log.
type TraceEvent struct {
	Seq       int64      `json:"seq"`
	Generator string     `json:"generator"`
	Prompt    string     `json:"prompt"` // first line only
	Reply     ir.IRValue `json:"reply"`
	Error     string     `json:"error,omitempty"`
}

// Outcome is what the strategy returned.
type Outcome struct {
	OK    bool       `json:"ok"`
	Reply ir.IRValue `json:"reply"`
	Short string     `json:"short,omitempty"`
	Long  string     `json:"long,omitempty"`
	Kind  string     `json:"kind,omitempty"`
	Calls int        `json:"calls"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when the expectation and every assertion held.
	Pass bool `json:"pass"`

	// RunID is the run id the exchanges were filed under.
	RunID string `json:"run_id"`

	// Outcome is the strategy's final attempt.
	Outcome Outcome `json:"outcome"`

	// Trace contains every generator call in order.
	Trace []TraceEvent `json:"trace"`

	// Prompts holds the full text of each call, parallel to Trace.
	Prompts []string `json:"-"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
