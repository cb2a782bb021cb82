package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	minBrandNameLength = 2
	maxQueryResults    = 100
)

// ValidateBrandProfile checks the profile before a session may start.
// A failure here is a configuration error, fatal to session start.
func ValidateBrandProfile(p BrandProfile) error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return NewValidationError("name", p.Name, ErrMissingBrandProfile)
	}
	if utf8.RuneCountInString(name) < minBrandNameLength {
		return NewValidationError("name", name, ErrMissingBrandProfile)
	}
	return nil
}

// ValidateQuery checks a planned query before it reaches a provider.
func ValidateQuery(q SearchQuery) error {
	if len(q.Terms) == 0 {
		return NewValidationError("terms", "", ErrInvalidQuery)
	}
	for _, term := range q.Terms {
		if strings.TrimSpace(term) == "" {
			return NewValidationError("terms", term, ErrInvalidQuery)
		}
	}
	if q.MaxResults < 0 || q.MaxResults > maxQueryResults {
		return NewValidationError("max_results", "", ErrInvalidQuery)
	}
	return nil
}

// QueryString renders a query the way providers expect it: quoted terms,
// minus-prefixed exclusions, and an optional site: restriction.
func QueryString(q SearchQuery) string {
	var sb strings.Builder
	for i, term := range q.Terms {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if strings.ContainsRune(term, ' ') {
			sb.WriteByte('"')
			sb.WriteString(term)
			sb.WriteByte('"')
		} else {
			sb.WriteString(term)
		}
	}
	for _, ex := range q.ExcludeTerms {
		sb.WriteString(" -")
		sb.WriteString(ex)
	}
	if q.SiteRestriction != "" {
		sb.WriteString(" site:")
		sb.WriteString(q.SiteRestriction)
	}
	return sb.String()
}
