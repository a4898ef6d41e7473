package eo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefix for content-addressed event identity. The version
// suffix leaves room for algorithm migration.
const domainEvent = "inkfold/event/v1"

// hashWithDomain computes SHA-256 with domain separation. The null byte
// prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed id for an event. The same
// event contents always produce the same id, which makes log appends
// retryable: a duplicate append is a no-op keyed on this id.
func EventID(ev Event) (string, error) {
	canonical, err := MarshalCanonical(canonicalEvent(ev))
	if err != nil {
		return "", fmt.Errorf("event id: %w", err)
	}
	return "$" + hashWithDomain(domainEvent, canonical), nil
}

// MustEventID is like EventID but panics on error. Use only in tests or
// when the event is known to be well-formed.
func MustEventID(ev Event) string {
	id, err := EventID(ev)
	if err != nil {
		panic(err)
	}
	return id
}
