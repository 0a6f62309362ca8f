package utils

import "strings"

// CanonicalHostName returns a host name in canonical form for the hosts file:
// - Trimmed of surrounding whitespace
// - Lowercased
// - No trailing dots, which the hosts file parser would treat as a distinct name
func CanonicalHostName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimRight(name, ".")
}

// StripScheme removes a leading http:// or https:// (case-insensitive) and
// everything from the first '/' onward, leaving only the host portion.
func StripScheme(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	for _, p := range []string{"http://", "https://"} {
		if strings.HasPrefix(lower, p) {
			s = s[len(p):]
			break
		}
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}
