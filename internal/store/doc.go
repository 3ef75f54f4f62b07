// Package store provides SQLite-backed storage for generator exchanges.
//
// Every call a recording generator makes is appended as one row holding the
// run it belongs to, its position in that run, the prompt (and its hash) and
// the parsed reply as canonical JSON. A replay generator later serves those
// replies back by prompt hash, so a strategy run can be reproduced without
// contacting the model.
//
// # Ordering
//
// Rows are ordered by seq, a logical clock, never by timestamps. All queries
// use ORDER BY run_id, seq so results are identical across reads.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
