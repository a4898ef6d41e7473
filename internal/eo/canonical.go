package eo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces deterministic JSON for content-addressed
// hashing: object keys sorted bytewise, strings NFC-normalized, no HTML
// escaping, no insignificant whitespace.
//
// Unlike a strict RFC 8785 serializer this accepts null and floating
// point values, because operand data bags are open-ended JSON authored
// by editors; floats are rendered with strconv shortest-form which is
// stable within this implementation. The output is used only for
// hashing and golden traces, never re-parsed.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return writeCanonicalString(buf, val)
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case json.Number:
		buf.WriteString(val.String())
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("non-finite number in canonical JSON: %v", val)
		}
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			buf.WriteString(strconv.FormatInt(int64(val), 10))
		} else {
			buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
		}
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case []string:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type in canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString writes an NFC-normalized JSON string without
// HTML escaping. json.Encoder would escape < > & and append a newline;
// both violate the canonical form.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}
	out := tmp.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	buf.Write(out)
	return nil
}

// canonicalEvent converts an Event to the generic shape MarshalCanonical
// accepts. Empty ctx fields are omitted so that ids do not depend on
// which optional provenance fields a client happens to fill.
func canonicalEvent(ev Event) map[string]any {
	ctx := map[string]any{
		"agent": ev.Ctx.Agent,
		"ts":    ev.Ctx.TS,
	}
	if ev.Ctx.Txn != "" {
		ctx["txn"] = ev.Ctx.Txn
	}
	if ev.Ctx.Parent != "" {
		ctx["parent"] = ev.Ctx.Parent
	}
	if ev.Ctx.Role != "" {
		ctx["role"] = ev.Ctx.Role
	}
	m := map[string]any{
		"op":     string(ev.Op),
		"target": ev.Target,
		"ctx":    ctx,
	}
	if ev.Operand != nil {
		m["operand"] = ev.Operand
	}
	return m
}
