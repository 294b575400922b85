// Package sites owns the paywall domain list: a builtin set shipped with the
// bot, layered with user overrides that are persisted across restarts.
package sites

import (
	"net/url"
	"strings"
)

// Normalize turns a domain argument into a registry key: lowercase, without a
// leading "www.". URL input is reduced to its hostname first; anything that
// cannot be parsed as a URL is used verbatim.
//
// The steps are repeated until the value stops changing, so
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(input string) string {
	s := input
	for {
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

// normalizeOnce never grows its input except through lowercasing, which is
// itself stable, so Normalize terminates.
func normalizeOnce(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Hostname() != "" {
			s = u.Hostname()
		}
	}
	return CanonicalHost(s)
}

// CanonicalHost lowercases a hostname and strips surrounding whitespace and
// every leading "www.". CanonicalHost(CanonicalHost(h)) == CanonicalHost(h).
func CanonicalHost(host string) string {
	s := strings.ToLower(host)
	for {
		s = strings.TrimSpace(s)
		if !strings.HasPrefix(s, "www.") {
			return s
		}
		s = s[len("www."):]
	}
}
