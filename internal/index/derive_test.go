package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkfold/inkfold/internal/state"
)

func TestDerive_NavFiltersAndSorts(t *testing.T) {
	idx := &state.IndexState{Entries: []state.IndexEntry{
		{ContentID: "page:b", Slug: "b", Title: "Beta", Status: state.StatusPublished, Visibility: state.VisibilityPublic, ShowInNav: true},
		{ContentID: "page:a", Slug: "a", Title: "Alpha", Status: state.StatusPublished, Visibility: state.VisibilityPublic, ShowInNav: true},
		{ContentID: "page:draft", Slug: "d", Title: "Draft", Status: state.StatusDraft, Visibility: state.VisibilityPublic, ShowInNav: true},
		{ContentID: "page:private", Slug: "p", Title: "Private", Status: state.StatusPublished, Visibility: state.VisibilityPrivate, ShowInNav: true},
		{ContentID: "page:hidden", Slug: "h", Title: "Hidden", Status: state.StatusPublished, Visibility: state.VisibilityPublic, ShowInNav: false},
	}}

	Derive(idx)

	if assert.Len(t, idx.Nav, 2) {
		assert.Equal(t, "page:a", idx.Nav[0].ContentID)
		assert.Equal(t, "page:b", idx.Nav[1].ContentID)
	}
}

func TestDerive_NavTitleTieBreaksOnContentID(t *testing.T) {
	idx := &state.IndexState{Entries: []state.IndexEntry{
		{ContentID: "page:z", Slug: "z", Title: "Same", Status: state.StatusPublished, Visibility: state.VisibilityPublic, ShowInNav: true},
		{ContentID: "page:a", Slug: "a", Title: "Same", Status: state.StatusPublished, Visibility: state.VisibilityPublic, ShowInNav: true},
	}}

	Derive(idx)

	assert.Equal(t, "page:a", idx.Nav[0].ContentID)
	assert.Equal(t, "page:z", idx.Nav[1].ContentID)
}

func TestDerive_SlugMapSkipsArchivedAndEmpty(t *testing.T) {
	idx := &state.IndexState{Entries: []state.IndexEntry{
		{ContentID: "page:live", Slug: "live", Status: state.StatusPublished},
		{ContentID: "page:old", Slug: "old", Status: state.StatusArchived},
		{ContentID: "page:anon", Slug: "", Status: state.StatusDraft},
	}}

	Derive(idx)

	assert.Equal(t, map[string]string{"live": "page:live"}, idx.SlugMap)
}

func TestDerive_ArchivedDropsFromNavKeepsEntry(t *testing.T) {
	idx := &state.IndexState{Entries: []state.IndexEntry{
		{ContentID: "page:x", Slug: "x", Title: "X", Status: state.StatusArchived, Visibility: state.VisibilityPublic, ShowInNav: true},
	}}

	Derive(idx)

	assert.Len(t, idx.Entries, 1)
	assert.Empty(t, idx.Nav)
	assert.Empty(t, idx.SlugMap)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":          "hello-world",
		"  Spaced   Out  ":     "spaced-out",
		"Already-slugged":      "already-slugged",
		"Ops & Metrics (2026)": "ops-metrics-2026",
		"":                     "",
		"---":                  "",
	}
	for title, want := range cases {
		assert.Equal(t, want, Slugify(title), "title %q", title)
	}
}
