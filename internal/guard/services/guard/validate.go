package guard

import (
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"

	"github.com/haukened/hostguard/internal/guard/domain"
	"github.com/haukened/hostguard/internal/guard/repos/hosts"
)

// Validate normalizes raw and checks that it can be written to the override
// file. Domains need at least two labels of letters, digits, '-' or '_', and a
// top-level label that is not purely numeric. IPv4 targets must be complete
// dotted quads. A trailing :port is ignored.
func Validate(raw string) (domain.BlockTarget, error) {
	t := hosts.Normalize(raw)
	name := stripPort(t.Name)
	if name != t.Name {
		t = domain.NewBlockTarget(name)
	}

	if t.Name == "" {
		return t, fmt.Errorf("%w: empty", domain.ErrInvalidTarget)
	}
	if t.IsIPv4() {
		if ip := net.ParseIP(t.Name); ip == nil || ip.To4() == nil || strings.Count(t.Name, ".") != 3 {
			return t, fmt.Errorf("%w: %q is not an IPv4 address", domain.ErrInvalidTarget, raw)
		}
		return t, nil
	}
	if !validDomain(t.Name) {
		return t, fmt.Errorf("%w: %q is not a domain name", domain.ErrInvalidTarget, raw)
	}
	return t, nil
}

func validDomain(name string) bool {
	if !strings.Contains(name, ".") || strings.HasPrefix(name, ".") {
		return false
	}
	if _, ok := dns.IsDomainName(name); !ok {
		return false
	}
	labels := dns.SplitDomainName(name)
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if !validLabel(l) {
			return false
		}
	}
	return !allDigits(labels[len(labels)-1])
}

func validLabel(l string) bool {
	if l == "" || l[0] == '-' || l[len(l)-1] == '-' {
		return false
	}
	for i := 0; i < len(l); i++ {
		c := l[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func stripPort(name string) string {
	i := strings.LastIndexByte(name, ':')
	if i < 0 || i == len(name)-1 || !allDigits(name[i+1:]) {
		return name
	}
	return name[:i]
}
