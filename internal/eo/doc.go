// Package eo defines the event vocabulary for the inkfold content log.
//
// Every mutation in the system is an immutable Event appended to a
// per-entity log:
//
//	{op, target, operand, ctx}
//
// The op is one of nine symbolic operators (INS, DES, ALT, SEG, CON,
// SYN, SUP, REC, NUL); only INS, DES, ALT, SYN and NUL are produced by
// the implemented mutation paths. The target addresses either a root
// content entity ("wiki:operators") or a nested child of one
// ("wiki:operators/rev:r_1700000000000"). The operand is an op-specific
// payload; ctx carries provenance (agent, timestamp, idempotency key).
//
// Events are never mutated or deleted once appended. The log is the
// source of truth; snapshots are derived by folding it (see package
// projector).
//
// # Identity
//
// Event ids are content-addressed: SHA-256 over canonical JSON with
// domain separation. The same event contents always produce the same
// id, which makes log appends safely retryable.
//
// # Wire shape
//
// RawLogEntry is the log store's wrapper around an Event (event_id,
// type, sender, origin_server_ts, content). Both shapes are persisted
// as JSON and must remain byte-compatible for stored data to stay
// readable.
package eo
