package index

import (
	"sort"
	"strings"

	"github.com/inkfold/inkfold/internal/state"
)

// Derive recomputes the index snapshot's derived views from its
// entries. Nav carries only entries flagged for navigation that are
// published and public; archiving an entity keeps its index entry but
// drops it from nav. SlugMap maps every live slug to its content id.
func Derive(idx *state.IndexState) {
	nav := make([]state.IndexEntry, 0, len(idx.Entries))
	slugMap := make(map[string]string, len(idx.Entries))

	for _, e := range idx.Entries {
		if e.Slug != "" && e.Status != state.StatusArchived {
			slugMap[e.Slug] = e.ContentID
		}
		if e.ShowInNav && e.Status == state.StatusPublished && e.Visibility == state.VisibilityPublic {
			nav = append(nav, e)
		}
	}

	sort.SliceStable(nav, func(i, j int) bool {
		if nav[i].Title != nav[j].Title {
			return nav[i].Title < nav[j].Title
		}
		return nav[i].ContentID < nav[j].ContentID
	})

	idx.Nav = nav
	idx.SlugMap = slugMap
}

// Slugify derives a URL slug from a title: lower-cased, runs of
// non-alphanumerics collapsed to single hyphens.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
