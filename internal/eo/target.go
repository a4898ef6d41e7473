package eo

import (
	"fmt"
	"strings"
)

// Child type tags used in target addresses. The addressing convention
// root/childType:childId is the only place that encodes parent/child
// relationships; there is no foreign-key field anywhere else.
const (
	ChildBlock = "block"
	ChildRev   = "rev"
	ChildEntry = "entry"
	ChildIndex = "index"
)

// RootIndex is the id of the site index entity, the aggregate snapshot
// holding one index entry per content entity.
const RootIndex = "site:index"

// Target is a parsed event address. Root identifies the top-level
// content entity; ChildType/ChildID identify a nested addressable unit
// and are empty for root-targeted events.
type Target struct {
	Root      string
	ChildType string
	ChildID   string
}

// ParseTarget parses "rootId" or "rootId/childType:childId".
//
// Root ids may themselves contain colons ("wiki:operators"), so only
// the first slash separates root from child, and only the first colon
// after it separates child type from child id.
func ParseTarget(s string) (Target, error) {
	if s == "" {
		return Target{}, fmt.Errorf("empty target")
	}
	root, child, found := strings.Cut(s, "/")
	if root == "" {
		return Target{}, fmt.Errorf("target %q: empty root", s)
	}
	if !found {
		return Target{Root: root}, nil
	}
	childType, childID, ok := strings.Cut(child, ":")
	if !ok || childType == "" || childID == "" {
		return Target{}, fmt.Errorf("target %q: child must be childType:childId", s)
	}
	return Target{Root: root, ChildType: childType, ChildID: childID}, nil
}

// String renders the target back to its address form.
func (t Target) String() string {
	if t.ChildType == "" {
		return t.Root
	}
	return t.Root + "/" + t.ChildType + ":" + t.ChildID
}

// IsRoot reports whether the target addresses the root entity itself.
func (t Target) IsRoot() bool {
	return t.ChildType == ""
}

// ChildTarget builds a child address for a root entity.
func ChildTarget(root, childType, childID string) string {
	return root + "/" + childType + ":" + childID
}
