package domain

import "strings"

// Well-known keyword categories that drive scoring.
const (
	CategoryExplicit = "explicit"
	CategoryModerate = "moderate"
)

// KnownCategories lists the categories every keyword store carries.
var KnownCategories = []string{CategoryExplicit, CategoryModerate}

// Keywords maps a category to its ordered keyword list.
type Keywords map[string][]string

// DefaultKeywords returns both known categories present but empty.
func DefaultKeywords() Keywords {
	k := make(Keywords, len(KnownCategories))
	for _, c := range KnownCategories {
		k[c] = []string{}
	}
	return k
}

// Clone returns a deep copy safe to hand across goroutines.
func (k Keywords) Clone() Keywords {
	out := make(Keywords, len(k))
	for c, words := range k {
		cp := make([]string, len(words))
		copy(cp, words)
		out[c] = cp
	}
	return out
}

// Contains reports whether word is in category, ignoring case.
func (k Keywords) Contains(category, word string) bool {
	return IndexFold(k[category], word) >= 0
}

// IndexFold returns the position of word in words ignoring case, or -1.
func IndexFold(words []string, word string) int {
	for i, w := range words {
		if strings.EqualFold(w, word) {
			return i
		}
	}
	return -1
}
