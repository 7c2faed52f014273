// Package engine is the data-synchronization core of the dashboard: it keeps
// an in-memory view of the local container runtime continuously converging
// toward daemon truth, without blocking rendering or user input.
//
// The design is a single-writer event loop. Producers (the inventory differ,
// the stats poller, the host sampler, and live sessions) publish events onto
// a shared Queue; the dispatcher drains it and feeds each event to
// Store.Apply, the only code that mutates view state. Apply is pure: no I/O,
// no goroutines, no clock reads. Events carry their own timestamps, so the
// same sequence of events always yields the same state.
//
// The Queue coalesces per-identity samples (stats, inventory updates, host
// snapshots) so a slow consumer sees only the newest pending value, while
// deltas, log lines, and session output are never dropped.
//
// Sessions manages the long-lived streams: per-container log tails and the
// single interactive exec shell. Session teardown is deterministic; once a
// close returns, the session publishes nothing further, and every session
// emits SessionEnded exactly once.
package engine
