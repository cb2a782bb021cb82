// Package planner turns a brand profile and violation history into a
// prioritized, bounded list of search queries.
package planner

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/riclipi/brandguard/engine/domain"
	"github.com/riclipi/brandguard/engine/urlx"
	"github.com/riclipi/brandguard/pkg/fn"
)

const (
	// DefaultMaxQueries caps a session's query list so cost and runtime
	// stay predictable regardless of brand-profile size.
	DefaultMaxQueries = 100
	// DefaultMaxPatterns caps how many historical patterns feed queries.
	DefaultMaxPatterns = 20
	// DefaultMaxResults is the per-query provider result limit.
	DefaultMaxResults = 20
)

// riskTerms pair the brand name in identity queries.
var riskTerms = []string{"leaked", "nude", "onlyfans", "leaks", "free download"}

// officialExclusions suppress official and press results.
var officialExclusions = []string{"official", "wikipedia", "news", "press"}

// guessSuffixes synthesize candidate infringing domains from the brand name.
var guessSuffixes = []string{"leaks", "leaked", "nudes", "fans", "files"}

// guessTLDs are the registries domain guesses are generated for.
var guessTLDs = []string{".to", ".cc", ".net", ".su"}

// Opts tunes the planner.
type Opts struct {
	MaxQueries  int
	MaxPatterns int
	MaxResults  int
	Logger      *slog.Logger
}

// Planner builds the query list for a discovery session.
type Planner struct {
	maxQueries  int
	maxPatterns int
	maxResults  int
	log         *slog.Logger
}

// New creates a Planner with defaults applied.
func New(opts Opts) *Planner {
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = DefaultMaxQueries
	}
	if opts.MaxPatterns <= 0 {
		opts.MaxPatterns = DefaultMaxPatterns
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Planner{
		maxQueries:  opts.MaxQueries,
		maxPatterns: opts.MaxPatterns,
		maxResults:  opts.MaxResults,
		log:         log,
	}
}

// Plan builds the prioritized query list: brand-identity queries first,
// then variation names, keyword combinations, historical patterns, and
// domain guesses. Stable-sorted HIGH→MEDIUM→LOW and truncated to the
// configured maximum.
func (p *Planner) Plan(profile domain.BrandProfile, historicalURLs []string) []domain.SearchQuery {
	var queries []domain.SearchQuery

	name := strings.TrimSpace(profile.Name)

	// Brand-identity queries
	for _, term := range riskTerms {
		queries = append(queries, domain.SearchQuery{
			Terms:        []string{name, term},
			ExcludeTerms: officialExclusions,
			MaxResults:   p.maxResults,
			Priority:     domain.PriorityHigh,
		})
	}

	// Variation-name queries
	variations := fn.FilterMap(fn.Unique(profile.Variations), func(raw string) (string, bool) {
		v := strings.TrimSpace(raw)
		return v, v != "" && !strings.EqualFold(v, name)
	})
	for _, v := range variations {
		queries = append(queries, domain.SearchQuery{
			Terms:        []string{v, "leaked"},
			ExcludeTerms: officialExclusions,
			MaxResults:   p.maxResults,
			Priority:     domain.PriorityMedium,
		})
	}

	// Keyword-combination queries
	keywords := fn.FilterMap(fn.Unique(profile.Keywords), func(raw string) (string, bool) {
		k := strings.TrimSpace(raw)
		return k, k != ""
	})
	for _, k := range keywords {
		queries = append(queries, domain.SearchQuery{
			Terms:      []string{name, k},
			MaxResults: p.maxResults,
			Priority:   domain.PriorityMedium,
		})
	}

	// Pattern-derived queries from historical violations
	for _, pattern := range PatternsFromHistory(historicalURLs, p.maxPatterns, name) {
		queries = append(queries, domain.SearchQuery{
			Terms:      []string{name, pattern},
			MaxResults: p.maxResults,
			Priority:   domain.PriorityLow,
		})
	}

	// Domain-guess queries restricted to synthesized candidates
	for _, guess := range domainGuesses(name) {
		queries = append(queries, domain.SearchQuery{
			Terms:           []string{name},
			SiteRestriction: guess,
			MaxResults:      p.maxResults,
			Priority:        domain.PriorityLow,
		})
	}

	sort.SliceStable(queries, func(i, j int) bool {
		return queries[i].Priority.Rank() < queries[j].Priority.Rank()
	})

	if len(queries) > p.maxQueries {
		queries = queries[:p.maxQueries]
	}
	p.log.Debug("query plan built", "brand", name, "queries", len(queries))
	return queries
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// PatternsFromHistory extracts the most frequent domain tokens from past
// violation URLs, excluding the brand's own tokens, capped at max.
func PatternsFromHistory(urls []string, max int, brandName string) []string {
	if max <= 0 || len(urls) == 0 {
		return nil
	}

	brandTokens := make(map[string]struct{})
	for _, tok := range tokenSplit.Split(strings.ToLower(brandName), -1) {
		brandTokens[tok] = struct{}{}
	}

	counts := make(map[string]int)
	var order []string
	for _, raw := range urls {
		dom := urlx.DomainOf(urlx.Normalize(raw))
		tokens := fn.Filter(tokenSplit.Split(dom, -1), func(tok string) bool {
			if len(tok) < 4 || isCommonTLDToken(tok) {
				return false
			}
			_, isBrand := brandTokens[tok]
			return !isBrand
		})
		for _, tok := range tokens {
			if counts[tok] == 0 {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}

	// Sort by frequency, first-seen order breaking ties.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > max {
		order = order[:max]
	}
	return order
}

func isCommonTLDToken(tok string) bool {
	switch tok {
	case "info", "site", "online", "cloud", "pages":
		return true
	}
	return false
}

// domainGuesses synthesizes candidate infringing domains for site: queries.
func domainGuesses(brandName string) []string {
	slug := strings.ToLower(tokenSplit.ReplaceAllString(strings.ToLower(brandName), ""))
	if slug == "" {
		return nil
	}
	var out []string
	for _, suffix := range guessSuffixes {
		for _, tld := range guessTLDs {
			out = append(out, slug+"-"+suffix+tld)
		}
	}
	return out
}
