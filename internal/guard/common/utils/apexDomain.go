package utils

import (
	"net"

	"golang.org/x/net/publicsuffix"
)

// GetApexDomain returns the registrable domain (eTLD+1) for name, or the
// canonical name itself when it has none (IP literals, single labels).
func GetApexDomain(name string) string {
	name = CanonicalHostName(name)
	if net.ParseIP(name) != nil {
		return name
	}
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}
