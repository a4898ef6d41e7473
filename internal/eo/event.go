package eo

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op is one of the nine symbolic operator kinds.
type Op string

const (
	OpINS Op = "INS" // instantiate: create an addressable unit
	OpDES Op = "DES" // designate: set metadata fields
	OpALT Op = "ALT" // alter: partial update via patch
	OpSEG Op = "SEG" // segment: reserved, not produced
	OpCON Op = "CON" // connect: reserved, not produced
	OpSYN Op = "SYN" // synthesize: merge / resolve a conflict
	OpSUP Op = "SUP" // superpose: reserved, not produced
	OpREC Op = "REC" // recurse: reserved, not produced
	OpNUL Op = "NUL" // nullify: soft-delete
)

// ValidOps is the full operator vocabulary, including the reserved
// operators that no implemented mutation path produces.
var ValidOps = map[Op]bool{
	OpINS: true, OpDES: true, OpALT: true, OpSEG: true, OpCON: true,
	OpSYN: true, OpSUP: true, OpREC: true, OpNUL: true,
}

// LogEventType is the log entry type tag for inkfold events. Entries of
// any other type are skipped during replay.
const LogEventType = "inkfold.eo"

// TimestampFormat is the wall-clock format stamped into Ctx.TS:
// ISO-8601 with millisecond precision, always UTC.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Ctx carries provenance for an event.
type Ctx struct {
	Agent  string `json:"agent"`
	TS     string `json:"ts"`
	Txn    string `json:"txn,omitempty"`
	Parent string `json:"parent,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Event is an immutable record of one state change.
type Event struct {
	Op      Op             `json:"op"`
	Target  string         `json:"target"`
	Operand map[string]any `json:"operand,omitempty"`
	Ctx     Ctx            `json:"ctx"`
}

// RawLogEntry is the log store's wrapper around an Event. Ordering
// within a content entity is established by OriginServerTS
// (store-assigned epoch milliseconds, monotonic per entity).
type RawLogEntry struct {
	EventID        string          `json:"event_id"`
	Type           string          `json:"type"`
	Sender         string          `json:"sender"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Content        json.RawMessage `json:"content"`
}

// Decode deserializes the entry's content into an Event.
func (r RawLogEntry) Decode() (Event, error) {
	var ev Event
	if err := json.Unmarshal(r.Content, &ev); err != nil {
		return Event{}, fmt.Errorf("decode log entry %s: %w", r.EventID, err)
	}
	return ev, nil
}

// ParseTS parses a Ctx.TS value. Accepts the millisecond form produced
// by this package as well as plain RFC 3339 for entries written by
// older clients.
func ParseTS(ts string) (time.Time, error) {
	if t, err := time.Parse(TimestampFormat, ts); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse event timestamp %q: %w", ts, err)
	}
	return t, nil
}

// TSMillis converts a Ctx.TS value to epoch milliseconds. Returns 0 for
// unparseable input; callers treating 0 as "older than everything" is
// the intended degradation.
func TSMillis(ts string) int64 {
	t, err := ParseTS(ts)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// FormatTS formats a wall-clock time as a Ctx.TS value.
func FormatTS(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
