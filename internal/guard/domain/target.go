package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// TargetKind classifies a BlockTarget.
type TargetKind uint8

const (
	// TargetDomain is a host name; it expands to its www. counterpart.
	TargetDomain TargetKind = iota
	// TargetIPv4 is a dotted-quad literal; it never expands.
	TargetIPv4
)

// String returns a stable string representation of the target kind.
func (k TargetKind) String() string {
	switch k {
	case TargetDomain:
		return "domain"
	case TargetIPv4:
		return "ipv4"
	default:
		return fmt.Sprintf("TargetKind(%d)", k)
	}
}

const wwwPrefix = "www."

// BlockTarget is a normalized domain name or IPv4 address subject to blocking.
//
// Notes:
// - Name carries no scheme, no path and no trailing slash (normalization handled by the hosts manager).
// - Kind is derived from Name by ClassifyTarget and never set independently.
type BlockTarget struct {
	Name string
	Kind TargetKind
}

// NewBlockTarget classifies an already-normalized name.
func NewBlockTarget(name string) BlockTarget {
	return BlockTarget{Name: name, Kind: ClassifyTarget(name)}
}

// IsIPv4 is a convenience accessor.
func (t BlockTarget) IsIPv4() bool { return t.Kind == TargetIPv4 }

// HasWWW reports whether the target already carries the www. prefix.
func (t BlockTarget) HasWWW() bool { return strings.HasPrefix(t.Name, wwwPrefix) }

// Names returns the host names that blocking this target writes:
// the name itself, plus "www."+name for a bare domain.
func (t BlockTarget) Names() []string {
	if t.IsIPv4() || t.HasWWW() {
		return []string{t.Name}
	}
	return []string{t.Name, wwwPrefix + t.Name}
}

// Counterparts returns the host names that unblocking this target removes:
// for a bare domain, the name and its www. form; for a www. domain, the name
// and its bare form; for an IP, only the literal.
func (t BlockTarget) Counterparts() []string {
	switch {
	case t.IsIPv4():
		return []string{t.Name}
	case t.HasWWW():
		return []string{t.Name, strings.TrimPrefix(t.Name, wwwPrefix)}
	default:
		return []string{t.Name, wwwPrefix + t.Name}
	}
}

// ClassifyTarget reports TargetIPv4 when name has at least two dot-separated
// components and every component is a decimal digit string in [0,255].
// Anything else, including the empty string, is a domain.
func ClassifyTarget(name string) TargetKind {
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return TargetDomain
	}
	for _, p := range parts {
		if !isOctet(p) {
			return TargetDomain
		}
	}
	return TargetIPv4
}

func isOctet(s string) bool {
	if s == "" || len(s) > 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	n, err := strconv.Atoi(s)
	return err == nil && n <= 255
}
