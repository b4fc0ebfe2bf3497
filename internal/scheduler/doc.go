// Package scheduler converts broadcast submissions into per-group delivery
// jobs and decides when they run.
//
// Timing model
//
// Each deferred job owns exactly one timer, held in a map keyed by job id.
// Already-due
// submissions are delivered synchronously and never persisted; future
// submissions are persisted first, then armed. On process start every
// persisted job is either re-armed (future) or attempted immediately
// (overdue), which gives at-least-once attempt semantics across restarts.
// A restart in the window between an attempt and the store removal can
// produce one duplicate attempt; that is a known, accepted limitation.
//
// The scheduler is the only writer to the job store.
package scheduler
