package projector

import (
	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/state"
)

// appendHistory records a recognized event in the snapshot's audit
// trail. The trail grows for every recognized event in encounter
// order, including ones whose effect was a no-op (dangling ALT/NUL);
// the projector never prunes it.
func appendHistory(s *state.Snapshot, entry eo.RawLogEntry, ev eo.Event) {
	s.History = append(s.History, state.HistoryEntry{
		EventID: entry.EventID,
		Op:      ev.Op,
		TS:      ev.Ctx.TS,
		Agent:   ev.Ctx.Agent,
	})
}

// TrimHistory caps a snapshot's history at max entries, dropping the
// oldest first. This belongs to the write path (before persisting),
// never to the projector itself: trimming inside the fold would make
// replay results depend on how the log was batched.
func TrimHistory(s *state.Snapshot, max int) {
	if max <= 0 || len(s.History) <= max {
		return
	}
	trimmed := make([]state.HistoryEntry, max)
	copy(trimmed, s.History[len(s.History)-max:])
	s.History = trimmed
}
