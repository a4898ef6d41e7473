// Package logstore persists the append-only event log.
//
// The log is the source of truth: snapshots and caches are derived
// views that can always be rebuilt by replaying it. Appends are
// idempotent twice over, by content-addressed event id and by the
// client transaction key, so retries never duplicate history.
//
// Server receive time (origin_server_ts) is assigned here, kept
// strictly monotonic per root so that a range query "everything newer
// than T" never misses an event that was accepted after T.
package logstore
