package domain

import "strings"

// LoopbackAddress is the address every managed block entry resolves to.
const LoopbackAddress = "127.0.0.1"

// HostEntry is one address → names mapping as it appears in the override file.
type HostEntry struct {
	Address string
	Names   []string
	Comment string // inline comment without the leading '#', preserved on rewrite
}

// Has reports whether name appears in the entry. Names compare
// case-insensitively, as the OS resolver does.
func (e HostEntry) Has(name string) bool {
	for _, n := range e.Names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
