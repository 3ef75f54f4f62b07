package harness

import (
	"fmt"

	"github.com/roach88/tether/internal/schema"
)

// CheckResult summarises the self-checks run over a set of records.
type CheckResult struct {
	TotalRecords  int            `json:"total_records"`
	TotalExamples int            `json:"total_examples"`
	Passed        int            `json:"passed"`
	Failed        int            `json:"failed"`
	Failures      []CheckFailure `json:"failures,omitempty"`
}

// CheckFailure is one example that did not validate against its own record.
type CheckFailure struct {
	Schema  string `json:"schema"`
	Example int    `json:"example"` // 1 is the synthesised example
	Short   string `json:"short"`
	Long    string `json:"long"`
}

// Error implements the error interface.
func (f CheckFailure) Error() string {
	return fmt.Sprintf("%s example %d: %s %s", f.Schema, f.Example, f.Short, f.Long)
}

// CheckRecords validates every record's examples against the record itself:
// the synthesised example (after constraint fixups and overrides) and every
// hand-written one. Each example is validated twice, and the two outcomes
// must agree.
func CheckRecords(records []*schema.Record) *CheckResult {
	result := &CheckResult{}
	for _, rec := range records {
		result.TotalRecords++
		for i, ex := range rec.Examples() {
			result.TotalExamples++

			first := rec.Validate(ex)
			second := rec.Validate(ex)
			switch {
			case first != nil:
				result.fail(rec.Name(), i+1, first.Short, first.Long)
			case second != nil:
				result.fail(rec.Name(), i+1, second.Short, "validation is not idempotent")
			default:
				result.Passed++
			}
		}
	}
	return result
}

func (r *CheckResult) fail(name string, example int, short, long string) {
	r.Failed++
	r.Failures = append(r.Failures, CheckFailure{
		Schema:  name,
		Example: example,
		Short:   short,
		Long:    long,
	})
}
