package store

import "github.com/roach88/tether/internal/ir"

// Exchange is one generator call: the prompt sent and the reply received.
type Exchange struct {
	// RunID groups the exchanges of one top-level strategy run.
	RunID string

	// Seq orders exchanges within a run. Assigned by the caller's logical clock.
	Seq int64

	// PromptHash is ir.PromptHash(Prompt); replay looks replies up by it.
	PromptHash string

	Prompt string

	// Reply is the parsed reply. An empty object when the call failed.
	Reply ir.IRValue

	// Error is the transport error text, empty on success.
	Error string

	// Generator names the generator that produced the reply (e.g. "genai:gemini-2.5-flash").
	Generator string
}

// RunSummary describes one recorded run.
type RunSummary struct {
	RunID     string
	Exchanges int
	Failures  int // exchanges whose call returned an error
	LastSeq   int64
}
