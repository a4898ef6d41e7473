// Package state defines the materialized snapshot shapes: the
// queryable, current-state views derived by folding a content entity's
// event log.
//
// A snapshot is always a deterministic fold of a prefix of its entity's
// log. Replaying the same events in the same order from the same base
// yields the same snapshot; nothing in this package consults the wall
// clock.
package state

import (
	"encoding/json"
	"fmt"

	"github.com/inkfold/inkfold/internal/eo"
)

// ContentType tags the snapshot variant.
type ContentType string

const (
	TypePage       ContentType = "page"
	TypeWiki       ContentType = "wiki"
	TypeBlog       ContentType = "blog"
	TypeExperiment ContentType = "experiment"
	TypeIndex      ContentType = "index"
)

// Publication status. Entities are soft-retired by archiving, never
// hard-deleted.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Meta is the metadata every snapshot carries.
type Meta struct {
	ContentID     string      `json:"content_id"`
	ContentType   ContentType `json:"content_type"`
	Slug          string      `json:"slug"`
	Title         string      `json:"title"`
	Status        string      `json:"status"`
	Visibility    string      `json:"visibility"`
	Tags          []string    `json:"tags,omitempty"`
	UpdatedAt     string      `json:"updated_at"`
	FirstPublicAt string      `json:"first_public_at,omitempty"`
}

// HistoryEntry is the compact audit record the projector appends for
// every recognized event.
type HistoryEntry struct {
	EventID string `json:"event_id"`
	Op      eo.Op  `json:"op"`
	TS      string `json:"ts"`
	Agent   string `json:"agent"`
}

// Block is one unit of a page. After encodes a singly-linked list:
// nil means "first in order", otherwise the id of the predecessor. The
// derived order lives in PageState.BlockOrder and is never
// authoritative.
type Block struct {
	BlockID     string         `json:"block_id"`
	BlockType   string         `json:"block_type"`
	Data        map[string]any `json:"data"`
	After       *string        `json:"after"`
	Deleted     bool           `json:"deleted"`
	SourceEvent string         `json:"source_event,omitempty"`
	// AlteredTS is the ctx.ts of the latest event that touched the
	// block. It backs the "most recent ts wins" tie-break when two
	// blocks claim the same predecessor.
	AlteredTS string `json:"altered_ts,omitempty"`
}

// Revision is one append-only wiki/blog/experiment revision.
type Revision struct {
	RevID   string `json:"rev_id"`
	Format  string `json:"format"`
	Content string `json:"content"`
	Summary string `json:"summary,omitempty"`
	TS      string `json:"ts"`
	Agent   string `json:"agent,omitempty"`
}

// Entry is one experiment log entry. Deleted entries are filtered out
// of the materialized Entries slice after replay; the flag exists so
// the fold can tombstone before the final filter pass.
type Entry struct {
	EntryID string         `json:"entry_id"`
	Kind    string         `json:"kind"`
	Data    map[string]any `json:"data"`
	TS      string         `json:"ts"`
	Deleted bool           `json:"deleted,omitempty"`
}

// Experiment entry kinds.
var ValidEntryKinds = map[string]bool{
	"note": true, "dataset": true, "result": true, "chart": true,
	"link": true, "decision": true, "html": true,
}

// IndexEntry is one site-index row per content entity.
type IndexEntry struct {
	ContentID     string      `json:"content_id"`
	Slug          string      `json:"slug"`
	Title         string      `json:"title"`
	ContentType   ContentType `json:"content_type"`
	Status        string      `json:"status"`
	Visibility    string      `json:"visibility"`
	Tags          []string    `json:"tags,omitempty"`
	FirstPublicAt string      `json:"first_public_at,omitempty"`
	ShowInNav     bool        `json:"show_in_nav,omitempty"`
	ParentPage    string      `json:"parent_page,omitempty"`
}

// PageState is the page variant: an ordered list of blocks.
type PageState struct {
	Blocks     []Block  `json:"blocks"`
	BlockOrder []string `json:"block_order"`
}

// WikiState is the wiki/blog variant: an append-only revision list with
// explicit conflict bookkeeping. Conflicts are never auto-resolved; a
// human picks a winner via a SYN event.
//
// ChosenRevision records that resolution durably, so a later delta
// batch that carries no revision events still surfaces the chosen
// revision. A newly appended revision clears it.
type WikiState struct {
	CurrentRevision    *Revision  `json:"current_revision"`
	ChosenRevision     string     `json:"chosen_revision,omitempty"`
	Revisions          []Revision `json:"revisions"`
	HasConflict        bool       `json:"has_conflict"`
	ConflictCandidates []string   `json:"conflict_candidates,omitempty"`
}

// ExperimentState is the experiment variant: a hybrid of a revision
// body and an append-only typed log. ChosenRevision works as in
// WikiState.
type ExperimentState struct {
	Entries         []Entry    `json:"entries"`
	CurrentRevision *Revision  `json:"current_revision,omitempty"`
	ChosenRevision  string     `json:"chosen_revision,omitempty"`
	Revisions       []Revision `json:"revisions,omitempty"`
}

// IndexState is the site-index variant. Nav and SlugMap are derived
// from Entries by the index writer, never edited directly.
type IndexState struct {
	Entries []IndexEntry      `json:"entries"`
	Nav     []IndexEntry      `json:"nav"`
	SlugMap map[string]string `json:"slug_map"`
}

// Snapshot is the materialized view of one content entity. Exactly one
// of the variant fields is set, matching ContentType.
type Snapshot struct {
	ContentID   string           `json:"content_id"`
	ContentType ContentType      `json:"content_type"`
	Meta        Meta             `json:"meta"`
	Page        *PageState       `json:"page,omitempty"`
	Wiki        *WikiState       `json:"wiki,omitempty"`
	Experiment  *ExperimentState `json:"experiment,omitempty"`
	Index       *IndexState      `json:"index,omitempty"`
	History     []HistoryEntry   `json:"history"`
}

// NewPage creates an empty page snapshot.
func NewPage(contentID string) *Snapshot {
	return &Snapshot{
		ContentID:   contentID,
		ContentType: TypePage,
		Meta:        newMeta(contentID, TypePage),
		Page:        &PageState{Blocks: []Block{}, BlockOrder: []string{}},
	}
}

// NewWiki creates an empty wiki or blog snapshot.
func NewWiki(contentID string, ct ContentType) *Snapshot {
	return &Snapshot{
		ContentID:   contentID,
		ContentType: ct,
		Meta:        newMeta(contentID, ct),
		Wiki:        &WikiState{Revisions: []Revision{}},
	}
}

// NewExperiment creates an empty experiment snapshot.
func NewExperiment(contentID string) *Snapshot {
	return &Snapshot{
		ContentID:   contentID,
		ContentType: TypeExperiment,
		Meta:        newMeta(contentID, TypeExperiment),
		Experiment:  &ExperimentState{Entries: []Entry{}},
	}
}

// NewIndex creates an empty site-index snapshot.
func NewIndex() *Snapshot {
	return &Snapshot{
		ContentID:   eo.RootIndex,
		ContentType: TypeIndex,
		Meta:        newMeta(eo.RootIndex, TypeIndex),
		Index: &IndexState{
			Entries: []IndexEntry{},
			Nav:     []IndexEntry{},
			SlugMap: map[string]string{},
		},
	}
}

// New creates an empty snapshot of the given content type.
func New(contentID string, ct ContentType) (*Snapshot, error) {
	switch ct {
	case TypePage:
		return NewPage(contentID), nil
	case TypeWiki, TypeBlog:
		return NewWiki(contentID, ct), nil
	case TypeExperiment:
		return NewExperiment(contentID), nil
	case TypeIndex:
		return NewIndex(), nil
	default:
		return nil, fmt.Errorf("unknown content type %q", ct)
	}
}

func newMeta(contentID string, ct ContentType) Meta {
	return Meta{
		ContentID:   contentID,
		ContentType: ct,
		Status:      StatusDraft,
		Visibility:  VisibilityPrivate,
	}
}

// Clone deep-copies a snapshot. The projector clones before folding so
// the caller's snapshot is never mutated; a JSON round-trip is exact
// here because every field is JSON-modeled.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		// Snapshots are built exclusively from JSON-decoded values;
		// a marshal failure means memory corruption, not bad input.
		panic(fmt.Sprintf("clone snapshot %s: %v", s.ContentID, err))
	}
	var out Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("clone snapshot %s: %v", s.ContentID, err))
	}
	return &out
}

// Decode parses a stored snapshot blob.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Encode serializes a snapshot for storage.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", s.ContentID, err)
	}
	return data, nil
}

// FindBlock returns a pointer to the block with the given id, or nil.
func (p *PageState) FindBlock(id string) *Block {
	for i := range p.Blocks {
		if p.Blocks[i].BlockID == id {
			return &p.Blocks[i]
		}
	}
	return nil
}

// FindRevision returns a pointer to the revision with the given id, or
// nil.
func (w *WikiState) FindRevision(id string) *Revision {
	for i := range w.Revisions {
		if w.Revisions[i].RevID == id {
			return &w.Revisions[i]
		}
	}
	return nil
}

// FindEntry returns a pointer to the entry with the given id, or nil.
func (e *ExperimentState) FindEntry(id string) *Entry {
	for i := range e.Entries {
		if e.Entries[i].EntryID == id {
			return &e.Entries[i]
		}
	}
	return nil
}

// ApplyMetaSet folds a DES operand's field set into meta. Unknown keys
// are ignored so newer writers cannot corrupt older readers.
func (m *Meta) ApplyMetaSet(fields map[string]any, ts string) {
	for k, v := range fields {
		switch k {
		case "slug":
			if s, ok := v.(string); ok {
				m.Slug = s
			}
		case "title":
			if s, ok := v.(string); ok {
				m.Title = s
			}
		case "status":
			if s, ok := v.(string); ok {
				m.Status = s
			}
		case "visibility":
			if s, ok := v.(string); ok {
				m.Visibility = s
			}
		case "tags":
			if raw, ok := v.([]any); ok {
				tags := make([]string, 0, len(raw))
				for _, t := range raw {
					if s, ok := t.(string); ok {
						tags = append(tags, s)
					}
				}
				m.Tags = tags
			}
		case "first_public_at":
			if s, ok := v.(string); ok {
				m.FirstPublicAt = s
			}
		}
	}
	m.UpdatedAt = ts
}
