// Package strategy implements the protocols that obtain a valid reply from
// an unreliable generator.
//
// Base renders a prompt, calls the generator, validates the reply and retries
// a fixed number of times. Fallback runs a second strategy once the first is
// exhausted. AutoRepair follows a failed run with repair rounds: each round
// sends the reply back with its first problem and asks for a corrected copy.
// Repair rounds draw on a single depth budget.
//
// Strategies compose through the Strategy interface and report failure as an
// Attempt value, so composed chains need no error plumbing. Every call
// accepts an Overrides value that replaces stored settings for that call
// only; Inner and Fallback route overrides to nested strategies.
//
// Each top-level run gets a UUIDv7 run id, carried in the context and
// attached to every log line and recorded exchange.
package strategy
