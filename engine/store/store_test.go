package store

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/riclipi/brandguard/engine/domain"
)

func TestMemoryKnownSiteConflict(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	r := domain.DiscoveryResult{URL: "acme-leaks.to/x", Domain: "acme-leaks.to"}
	if err := m.CreateKnownSite(ctx, r); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if err := m.CreateKnownSite(ctx, r); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if m.KnownCount() != 1 {
		t.Fatalf("expected one known site, got %d", m.KnownCount())
	}
}

func TestMemoryListsSeededData(t *testing.T) {
	m := NewMemory()
	m.SeedKnownSite("acme-leaks.to", "acme-leaks.to")
	m.SeedHistoricalURL("old-mirror.cc/acme")
	m.SeedHistoricalURL("old-mirror.cc/acme2")

	sites, err := m.ListKnownSites(context.Background())
	if err != nil || len(sites) != 1 {
		t.Fatalf("expected one known site, got %v (%v)", sites, err)
	}
	urls, err := m.ListHistoricalURLs(context.Background(), 1)
	if err != nil || len(urls) != 1 {
		t.Fatalf("historical limit not applied: %v (%v)", urls, err)
	}
}

func TestMemorySessionLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	s := domain.DiscoverySession{ID: "s1", Status: domain.StatusRunning}

	if err := m.CreateSession(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}
	s.Status = domain.StatusCompleted
	if err := m.UpdateSession(ctx, s); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok := m.Session("s1")
	if !ok || got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed session, got %+v", got)
	}
	if err := m.UpdateSession(ctx, domain.DiscoverySession{ID: "nope"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- Neo4j with a fake session runner ---

type fakeResult struct {
	records []*neo4j.Record
	idx     int
}

func (r *fakeResult) Next(context.Context) bool {
	if r.idx >= len(r.records) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeResult) Record() *neo4j.Record { return r.records[r.idx-1] }

type fakeRunner struct {
	records []*neo4j.Record
	cypher  []string
	err     error
}

func (f *fakeRunner) Run(_ context.Context, cypher string, _ map[string]any) (result, error) {
	f.cypher = append(f.cypher, cypher)
	if f.err != nil {
		return nil, f.err
	}
	return &fakeResult{records: f.records}, nil
}

func (f *fakeRunner) Close(context.Context) error { return nil }

func record(keys []string, values []any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func TestNeo4jCreateKnownSiteMapsMergeToConflict(t *testing.T) {
	fr := &fakeRunner{records: []*neo4j.Record{record([]string{"created"}, []any{false})}}
	s := &Neo4j{newSession: func(context.Context) runner { return fr }}

	err := s.CreateKnownSite(context.Background(), domain.DiscoveryResult{URL: "acme-leaks.to/x"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for pre-existing node, got %v", err)
	}
}

func TestNeo4jCreateKnownSiteNewNode(t *testing.T) {
	fr := &fakeRunner{records: []*neo4j.Record{record([]string{"created"}, []any{true})}}
	s := &Neo4j{newSession: func(context.Context) runner { return fr }}

	if err := s.CreateKnownSite(context.Background(), domain.DiscoveryResult{URL: "newsite.co/acme"}); err != nil {
		t.Fatalf("expected success for new node, got %v", err)
	}
}

func TestNeo4jListKnownSites(t *testing.T) {
	fr := &fakeRunner{records: []*neo4j.Record{
		record([]string{"url", "domain"}, []any{"acme-leaks.to/x", "acme-leaks.to"}),
		record([]string{"url", "domain"}, []any{"", ""}), // skipped
	}}
	s := &Neo4j{newSession: func(context.Context) runner { return fr }}

	entries, err := s.ListKnownSites(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Domain != "acme-leaks.to" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
