// Package item identifies the tracked item type: the rechargeable
// energy item the ferry loop is allowed to move. Identification is a
// two-step heuristic (exact internal ID first, then a label check)
// because modpacks rename display labels freely while internal IDs
// stay stable only within one deployment variant.
package item

import (
	"strings"

	"github.com/TAMATLT/ferryd/internal/transposer"
)

// Matcher recognizes the tracked item type.
type Matcher struct {
	// ID is the exact internal identifier of the tracked item.
	ID string

	// LabelWords are required substrings of the display label. The
	// label check succeeds only when every word is present,
	// case-insensitively. It is the fallback when the internal ID does
	// not match.
	LabelWords []string
}

// Default matches the stock deployment: a Mekanism-style energy cube.
// Other variants (e.g. battery upgrades) configure their own matcher.
func Default() Matcher {
	return Matcher{
		ID:         "mod:energycube",
		LabelWords: []string{"energy", "cube"},
	}
}

// Matches reports whether the stack is the tracked item. A nil stack
// never matches.
func (m Matcher) Matches(st *transposer.Stack) bool {
	if st == nil {
		return false
	}
	if st.ItemID == m.ID {
		return true
	}
	if len(m.LabelWords) == 0 || st.Label == "" {
		return false
	}
	label := strings.ToLower(st.Label)
	for _, word := range m.LabelWords {
		if !strings.Contains(label, strings.ToLower(word)) {
			return false
		}
	}
	return true
}
