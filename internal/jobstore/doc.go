// Package jobstore persists pending deferred delivery jobs across restarts.
//
// It currently supports:
//   - "file": one JSON document rewritten atomically on every mutation
//   - "sqlite": optional driver behind the sqlite build tag
//
// Corruption of the backing store is never fatal: Load logs and returns an
// empty set.
package jobstore
