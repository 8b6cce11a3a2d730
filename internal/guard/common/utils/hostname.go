package utils

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalHost returns a hostname in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - No trailing dot, so "www.youtube.com." and "www.youtube.com" compare equal.
func CanonicalHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.ToLower(host)
	for strings.HasSuffix(host, ".") {
		host = strings.TrimSuffix(host, ".")
	}
	return host
}

// RegistrableDomain returns the public-suffix-aware registrable domain
// (eTLD+1) of host, e.g. "m.youtube.com" → "youtube.com".
// Hosts that have no registrable part (bare suffixes, IPs, empty) fall back
// to their canonical form.
func RegistrableDomain(host string) string {
	host = CanonicalHost(host)
	apex, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return apex
}
