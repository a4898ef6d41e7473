package projector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkfold/inkfold/internal/state"
)

func historyOfLen(n int) []state.HistoryEntry {
	entries := make([]state.HistoryEntry, n)
	for i := range entries {
		entries[i] = state.HistoryEntry{EventID: fmt.Sprintf("$e%d", i)}
	}
	return entries
}

func TestTrimHistory_DropsOldestFirst(t *testing.T) {
	s := state.NewPage("page:home")
	s.History = historyOfLen(5)
	TrimHistory(s, 3)
	assert.Len(t, s.History, 3)
	assert.Equal(t, "$e2", s.History[0].EventID)
	assert.Equal(t, "$e4", s.History[2].EventID)
}

func TestTrimHistory_NoopWhenUnderCap(t *testing.T) {
	s := state.NewPage("page:home")
	s.History = historyOfLen(2)
	TrimHistory(s, 5)
	assert.Len(t, s.History, 2)
}

func TestTrimHistory_ZeroMeansUncapped(t *testing.T) {
	s := state.NewPage("page:home")
	s.History = historyOfLen(4)
	TrimHistory(s, 0)
	assert.Len(t, s.History, 4)
}
