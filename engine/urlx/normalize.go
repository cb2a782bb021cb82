// Package urlx provides URL canonicalization, typosquat variant
// generation, and edit-distance similarity for the deduplication filter.
package urlx

import (
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// trackingParams are advertising and analytics parameters stripped during
// normalization; they never affect page identity.
var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"gclsrc":  {},
	"dclid":   {},
	"msclkid": {},
	"ref":     {},
	"igshid":  {},
	"mc_cid":  {},
	"mc_eid":  {},
}

var slashRuns = regexp.MustCompile(`/{2,}`)

// Normalize canonicalizes a raw URL into a comparable key. The steps run
// in a fixed order, each idempotent: lowercase and trim, strip scheme,
// strip leading www, drop tracking query parameters, strip fragment,
// collapse duplicate slashes, strip the trailing slash. Malformed input
// degrades to a best-effort lowercased string; Normalize never fails.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "www.")
	s = stripTracking(s)
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	s = slashRuns.ReplaceAllString(s, "/")
	s = strings.TrimSuffix(s, "/")
	return s
}

// stripTracking removes tracking parameters from the query section,
// leaving any fragment untouched.
func stripTracking(s string) string {
	qStart := strings.IndexByte(s, '?')
	if qStart < 0 {
		return s
	}
	rest := s[qStart+1:]
	fragment := ""
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		fragment = rest[i:]
		rest = rest[:i]
	}

	var kept []string
	for _, pair := range strings.Split(rest, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if isTrackingParam(key) {
			continue
		}
		kept = append(kept, pair)
	}

	if len(kept) == 0 {
		return s[:qStart] + fragment
	}
	return s[:qStart] + "?" + strings.Join(kept, "&") + fragment
}

func isTrackingParam(key string) bool {
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

// DomainOf returns the host part of a normalized URL, without port.
func DomainOf(normalized string) string {
	host := normalized
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, '?'); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

// RegistrableDomain returns the eTLD+1 of a host, falling back to the
// host itself when the public suffix list has no answer.
func RegistrableDomain(host string) string {
	if host == "" {
		return ""
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld1
}
