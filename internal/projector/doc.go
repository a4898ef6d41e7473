// Package projector materializes snapshots from the event log.
//
// ApplyDelta folds a chronologically ordered batch of raw log entries
// on top of a base snapshot and returns a new snapshot; the input is
// never mutated. The fold is pure and order-sensitive: every timestamp
// comes from event provenance, never from the wall clock, so the same
// base and the same entries always produce a byte-for-byte identical
// result.
//
// Defensive posture, in order:
//
//  1. Entries with the wrong type tag or an unparseable payload are
//     skipped. A malformed entry never aborts the fold.
//  2. Entries targeting a different root, or the wrong child kind for
//     this snapshot's content type, are skipped. Cross-entity noise
//     must not corrupt an unrelated snapshot.
//  3. ALT/NUL against a child absent from the snapshot is a no-op, not
//     an error: the log may carry events for state a previous pass
//     already folded, or that this snapshot has not caught up to.
//
// Every recognized event lands in the snapshot's history trail in
// encounter order. The projector only grows history; bounding it is
// the write path's job (TrimHistory).
package projector
