package store

import (
	"context"
	"sync"

	"github.com/riclipi/brandguard/engine/domain"
)

// Memory is an in-process store used in tests and single-node setups.
// Implements both KnownSiteStore and SessionStore.
type Memory struct {
	mu         sync.Mutex
	known      map[string]domain.KnownEntry // keyed by normalized URL
	knownOrder []string
	historical []string
	sessions   map[string]domain.DiscoverySession
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		known:    make(map[string]domain.KnownEntry),
		sessions: make(map[string]domain.DiscoverySession),
	}
}

// SeedKnownSite preloads a known site, for test fixtures.
func (m *Memory) SeedKnownSite(url, dom string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.known[url]; !ok {
		m.known[url] = domain.KnownEntry{NormalizedURL: url, Domain: dom}
		m.knownOrder = append(m.knownOrder, url)
	}
}

// SeedHistoricalURL preloads a historical violation URL.
func (m *Memory) SeedHistoricalURL(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historical = append(m.historical, url)
}

func (m *Memory) ListKnownSites(_ context.Context) ([]domain.KnownEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.KnownEntry, 0, len(m.knownOrder))
	for _, url := range m.knownOrder {
		out = append(out, m.known[url])
	}
	return out, nil
}

func (m *Memory) ListHistoricalURLs(_ context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	urls := m.historical
	if limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}
	out := make([]string, len(urls))
	copy(out, urls)
	return out, nil
}

func (m *Memory) CreateKnownSite(_ context.Context, result domain.DiscoveryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.known[result.URL]; ok {
		return domain.ErrConflict
	}
	m.known[result.URL] = domain.KnownEntry{NormalizedURL: result.URL, Domain: result.Domain}
	m.knownOrder = append(m.knownOrder, result.URL)
	return nil
}

func (m *Memory) CreateSession(_ context.Context, s domain.DiscoverySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return domain.ErrConflict
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) UpdateSession(_ context.Context, s domain.DiscoverySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return domain.ErrNotFound
	}
	m.sessions[s.ID] = s
	return nil
}

// Session returns a stored session snapshot, for assertions in tests.
func (m *Memory) Session(id string) (domain.DiscoverySession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// KnownCount returns the number of known sites.
func (m *Memory) KnownCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.known)
}
