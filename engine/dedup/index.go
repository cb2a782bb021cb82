// Package dedup classifies candidate URLs against the corpus of
// previously seen sites: exact and domain lookups, typosquat variant
// membership, and bounded fuzzy similarity as a last resort.
package dedup

import (
	"context"
	"log/slog"
	"sync"

	"github.com/riclipi/brandguard/engine/store"
	"github.com/riclipi/brandguard/engine/urlx"
)

const (
	// DefaultHistoryLimit bounds the historical-violation bulk load.
	DefaultHistoryLimit = 10000
	// DefaultRecentCap bounds the sample retained for fuzzy comparison.
	// Comparing a candidate against the full corpus is O(N); keeping the
	// most recent entries trades recall for predictable latency.
	DefaultRecentCap = 500
)

// IndexOpts tunes the corpus index.
type IndexOpts struct {
	HistoryLimit int
	RecentCap    int
	Logger       *slog.Logger
}

// Index is a refreshable in-process snapshot of every previously seen
// URL and domain. Reads are concurrent; writes are safe under
// concurrent sessions.
type Index struct {
	store store.KnownSiteStore
	log   *slog.Logger

	historyLimit int
	recentCap    int

	mu      sync.RWMutex
	urls    map[string]struct{}
	domains map[string]struct{}
	recent  []string // newest last, capped at recentCap
}

// NewIndex creates an empty index over the given store.
func NewIndex(s store.KnownSiteStore, opts IndexOpts) *Index {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.RecentCap <= 0 {
		opts.RecentCap = DefaultRecentCap
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Index{
		store:        s,
		log:          log,
		historyLimit: opts.HistoryLimit,
		recentCap:    opts.RecentCap,
		urls:         make(map[string]struct{}),
		domains:      make(map[string]struct{}),
	}
}

// Load populates the index from the store. Failures are logged and leave
// the index empty: a degraded index classifies everything as new, which
// favours false positives over silent data loss.
func (ix *Index) Load(ctx context.Context) {
	if err := ix.Refresh(ctx); err != nil {
		ix.log.Warn("corpus index load failed, continuing with empty index", "error", err)
	}
}

// Refresh rebuilds the snapshot from the store. Explicit call only; the
// index is never refreshed on a timer.
func (ix *Index) Refresh(ctx context.Context) error {
	sites, err := ix.store.ListKnownSites(ctx)
	if err != nil {
		return err
	}
	historical, err := ix.store.ListHistoricalURLs(ctx, ix.historyLimit)
	if err != nil {
		return err
	}

	urls := make(map[string]struct{}, len(sites)+len(historical))
	domains := make(map[string]struct{}, len(sites))
	var recent []string

	add := func(raw string) {
		n := urlx.Normalize(raw)
		if n == "" {
			return
		}
		if _, ok := urls[n]; ok {
			return
		}
		urls[n] = struct{}{}
		domains[urlx.DomainOf(n)] = struct{}{}
		recent = append(recent, n)
	}
	for _, site := range sites {
		add(site.NormalizedURL)
	}
	for _, url := range historical {
		add(url)
	}
	if len(recent) > ix.recentCap {
		recent = recent[len(recent)-ix.recentCap:]
	}

	ix.mu.Lock()
	ix.urls = urls
	ix.domains = domains
	ix.recent = recent
	ix.mu.Unlock()

	ix.log.Info("corpus index refreshed", "urls", len(urls), "domains", len(domains))
	return nil
}

// ContainsURL reports exact membership of a normalized URL.
func (ix *Index) ContainsURL(normalized string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.urls[normalized]
	return ok
}

// ContainsDomain reports membership of a normalized domain.
func (ix *Index) ContainsDomain(domain string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.domains[domain]
	return ok
}

// AddKnownURL records a newly accepted URL so later queries in the same
// session cannot emit it again.
func (ix *Index) AddKnownURL(raw string) {
	n := urlx.Normalize(raw)
	if n == "" {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.urls[n]; ok {
		return
	}
	ix.urls[n] = struct{}{}
	ix.domains[urlx.DomainOf(n)] = struct{}{}
	ix.recent = append(ix.recent, n)
	if len(ix.recent) > ix.recentCap {
		ix.recent = ix.recent[len(ix.recent)-ix.recentCap:]
	}
}

// RemoveKnownURL drops a URL from the exact set. The domain set is left
// untouched since other URLs may share the domain.
func (ix *Index) RemoveKnownURL(raw string) {
	n := urlx.Normalize(raw)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.urls, n)
	for i, r := range ix.recent {
		if r == n {
			ix.recent = append(ix.recent[:i], ix.recent[i+1:]...)
			break
		}
	}
}

// RecentSample returns up to n of the most recently added URLs.
func (ix *Index) RecentSample(n int) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if n <= 0 || n > len(ix.recent) {
		n = len(ix.recent)
	}
	out := make([]string, n)
	copy(out, ix.recent[len(ix.recent)-n:])
	return out
}

// Len returns the number of known URLs.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.urls)
}
