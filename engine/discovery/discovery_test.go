package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riclipi/brandguard/engine/dedup"
	"github.com/riclipi/brandguard/engine/domain"
	"github.com/riclipi/brandguard/engine/events"
	"github.com/riclipi/brandguard/engine/planner"
	"github.com/riclipi/brandguard/engine/risk"
	"github.com/riclipi/brandguard/engine/store"
)

// scriptedSearcher returns one canned response per call, then empties.
type scriptedSearcher struct {
	mu    sync.Mutex
	queue [][]domain.SearchResult
	calls int
}

func (s *scriptedSearcher) SearchAcrossProviders(_ context.Context, _ domain.SearchQuery) ([]domain.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.queue) == 0 {
		return nil, nil
	}
	hits := s.queue[0]
	s.queue = s.queue[1:]
	return hits, nil
}

// failingSearcher fails every query, as if every provider were down.
type failingSearcher struct{ calls atomic.Int32 }

func (s *failingSearcher) SearchAcrossProviders(_ context.Context, _ domain.SearchQuery) ([]domain.SearchResult, error) {
	s.calls.Add(1)
	return nil, fmt.Errorf("%w: all providers down", domain.ErrAllProvidersFailed)
}

// stepSearcher blocks each call until released, so tests control exactly
// when a query is in flight.
type stepSearcher struct {
	started chan int
	proceed chan struct{}
	calls   atomic.Int32
}

func newStepSearcher() *stepSearcher {
	return &stepSearcher{started: make(chan int), proceed: make(chan struct{})}
}

func (s *stepSearcher) SearchAcrossProviders(_ context.Context, _ domain.SearchQuery) ([]domain.SearchResult, error) {
	s.started <- int(s.calls.Add(1))
	<-s.proceed
	return nil, nil
}

type fixture struct {
	ctrl  *Controller
	store *store.Memory
	sink  *events.Memory
}

func newFixture(t *testing.T, searcher Searcher, maxQueries int) fixture {
	t.Helper()
	mem := store.NewMemory()
	return fixtureWith(t, searcher, mem, maxQueries)
}

func fixtureWith(t *testing.T, searcher Searcher, mem *store.Memory, maxQueries int) fixture {
	t.Helper()
	index := dedup.NewIndex(mem, dedup.IndexOpts{})
	index.Load(context.Background())
	sink := events.NewMemory()

	ctrl, err := NewController(Deps{
		Planner:  planner.New(planner.Opts{MaxQueries: maxQueries}),
		Gateway:  searcher,
		Index:    index,
		Filter:   dedup.NewFilter(index, dedup.FilterOpts{}),
		Scorer:   risk.New(risk.Opts{}),
		Sites:    mem,
		Sessions: mem,
		Sink:     sink,
	}, Opts{QueryDelay: -1, QueryTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return fixture{ctrl: ctrl, store: mem, sink: sink}
}

func acmeProfile() domain.BrandProfile {
	return domain.BrandProfile{ID: "bp1", Name: "Acme", Keywords: []string{"photos"}}
}

func TestStartRejectsInvalidProfile(t *testing.T) {
	f := newFixture(t, &scriptedSearcher{}, 2)
	_, err := f.ctrl.Start(context.Background(), "u1", domain.BrandProfile{Name: " "})
	if !errors.Is(err, domain.ErrMissingBrandProfile) {
		t.Fatalf("expected ErrMissingBrandProfile, got %v", err)
	}
}

func TestSessionPersistsOnlyNewSites(t *testing.T) {
	mem := store.NewMemory()
	mem.SeedKnownSite("acme-leaks.to", "acme-leaks.to")
	searcher := &scriptedSearcher{queue: [][]domain.SearchResult{{
		{Title: "Acme leaked", URL: "https://acme-leaks.to/x", Provider: "serper"},
		{Title: "Acme leaked", URL: "https://acme-leaks.net/x", Provider: "serper"},
		{Title: "acme content", URL: "https://newsite.co/acme", Provider: "serper"},
	}}}
	f := fixtureWith(t, searcher, mem, 3)

	sess, err := f.ctrl.Start(context.Background(), "u1", acmeProfile())
	if err != nil {
		t.Fatal(err)
	}
	final := sess.Wait()

	if final.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", final.Status, final.LastError)
	}
	if final.NewSitesFound != 1 {
		t.Fatalf("only the genuinely new url should count, got %d", final.NewSitesFound)
	}
	if final.DuplicatesFiltered != 2 {
		t.Fatalf("duplicate and variation should be filtered, got %d", final.DuplicatesFiltered)
	}
	if final.QueriesProcessed != final.TotalQueries {
		t.Fatalf("processed %d of %d queries", final.QueriesProcessed, final.TotalQueries)
	}
	if f.store.KnownCount() != 2 {
		t.Fatalf("expected seeded site plus one new, got %d", f.store.KnownCount())
	}

	results := sess.Results()
	if len(results) != 1 || results[0].URL != "newsite.co/acme" {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].RiskScore <= 0 {
		t.Fatal("accepted result should carry a risk score")
	}

	stored, ok := f.store.Session(final.ID)
	if !ok || stored.Status != domain.StatusCompleted {
		t.Fatalf("terminal snapshot not persisted: %+v", stored)
	}

	types := f.sink.Types()
	if types[0] != domain.EventDiscoveryStarted || types[len(types)-1] != domain.EventDiscoveryCompleted {
		t.Fatalf("expected started..completed envelope, got %v", types)
	}
}

func TestSameURLEmittedOncePerSession(t *testing.T) {
	hit := domain.SearchResult{Title: "acme mirror", URL: "https://newsite.co/acme", Provider: "serper"}
	searcher := &scriptedSearcher{queue: [][]domain.SearchResult{{hit}, {hit}}}
	f := newFixture(t, searcher, 3)

	sess, err := f.ctrl.Start(context.Background(), "u1", acmeProfile())
	if err != nil {
		t.Fatal(err)
	}
	final := sess.Wait()

	if final.NewSitesFound != 1 {
		t.Fatalf("url must be emitted at most once per session, got %d", final.NewSitesFound)
	}
	if final.DuplicatesFiltered != 1 {
		t.Fatalf("second occurrence should filter as duplicate, got %d", final.DuplicatesFiltered)
	}
}

func TestAllQueriesFailingStillCompletes(t *testing.T) {
	searcher := &failingSearcher{}
	f := newFixture(t, searcher, 3)

	sess, err := f.ctrl.Start(context.Background(), "u1", acmeProfile())
	if err != nil {
		t.Fatal(err)
	}
	final := sess.Wait()

	if final.Status != domain.StatusCompleted {
		t.Fatalf("provider failures must not fail the session, got %s", final.Status)
	}
	if final.NewSitesFound != 0 {
		t.Fatalf("no sites should be found, got %d", final.NewSitesFound)
	}
	if final.LastError == "" {
		t.Fatal("last error should record the provider failure")
	}
	if history := sess.History(); len(history) != final.TotalQueries {
		t.Fatalf("expected one history entry per query, got %d of %d", len(history), final.TotalQueries)
	}

	providerErrors := 0
	for _, typ := range f.sink.Types() {
		if typ == domain.EventProviderError {
			providerErrors++
		}
	}
	if providerErrors != final.TotalQueries {
		t.Fatalf("expected a provider_error event per query, got %d", providerErrors)
	}
}

func TestPauseResumeProcessesEveryQueryOnce(t *testing.T) {
	searcher := newStepSearcher()
	f := newFixture(t, searcher, 3)
	ctx := context.Background()

	sess, err := f.ctrl.Start(ctx, "u1", acmeProfile())
	if err != nil {
		t.Fatal(err)
	}
	total := sess.Snapshot().TotalQueries
	if total < 2 {
		t.Fatalf("need at least 2 queries for this test, got %d", total)
	}

	<-searcher.started
	if err := sess.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	searcher.proceed <- struct{}{} // in-flight query finishes despite pause

	select {
	case n := <-searcher.started:
		t.Fatalf("query %d started while paused", n)
	case <-time.After(50 * time.Millisecond):
	}
	if got := sess.Snapshot().Status; got != domain.StatusPaused {
		t.Fatalf("expected PAUSED, got %s", got)
	}

	if err := sess.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	for i := 1; i < total; i++ {
		<-searcher.started
		searcher.proceed <- struct{}{}
	}

	final := sess.Wait()
	if final.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", final.Status)
	}
	if int(searcher.calls.Load()) != total {
		t.Fatalf("every query must run exactly once, got %d of %d", searcher.calls.Load(), total)
	}
	if final.QueriesProcessed != total {
		t.Fatalf("processed %d of %d", final.QueriesProcessed, total)
	}
}

func TestResumeRequiresPause(t *testing.T) {
	searcher := newStepSearcher()
	f := newFixture(t, searcher, 3)
	ctx := context.Background()

	sess, err := f.ctrl.Start(ctx, "u1", acmeProfile())
	if err != nil {
		t.Fatal(err)
	}
	<-searcher.started

	if err := sess.Resume(ctx); !errors.Is(err, domain.ErrSessionNotPaused) {
		t.Fatalf("expected ErrSessionNotPaused, got %v", err)
	}

	sess.Cancel()
	searcher.proceed <- struct{}{}
	sess.Wait()
}

func TestCancelDiscardsResults(t *testing.T) {
	searcher := newStepSearcher()
	f := newFixture(t, searcher, 3)
	ctx := context.Background()

	sess, err := f.ctrl.Start(ctx, "u1", acmeProfile())
	if err != nil {
		t.Fatal(err)
	}
	<-searcher.started
	sess.Cancel()
	searcher.proceed <- struct{}{}

	final := sess.Wait()
	if final.Status != domain.StatusError {
		t.Fatalf("cancelled session should end in ERROR, got %s", final.Status)
	}
	if final.LastError == "" {
		t.Fatal("cancellation should be recorded in last error")
	}
	if f.store.KnownCount() != 0 {
		t.Fatal("cancelled session must not persist results")
	}

	if err := sess.Pause(ctx); !errors.Is(err, domain.ErrSessionTerminal) {
		t.Fatalf("terminal session must reject pause, got %v", err)
	}
	if err := sess.Resume(ctx); !errors.Is(err, domain.ErrSessionTerminal) {
		t.Fatalf("terminal session must reject resume, got %v", err)
	}
}

func TestProgressEventsCarryCounts(t *testing.T) {
	hit := domain.SearchResult{Title: "acme", URL: "https://newsite.co/acme", Provider: "serper"}
	searcher := &scriptedSearcher{queue: [][]domain.SearchResult{{hit}}}
	f := newFixture(t, searcher, 2)

	sess, err := f.ctrl.Start(context.Background(), "u1", acmeProfile())
	if err != nil {
		t.Fatal(err)
	}
	sess.Wait()

	var sawProgress bool
	for _, e := range f.sink.Events() {
		if e.Type != domain.EventDiscoveryProgress {
			continue
		}
		sawProgress = true
		p := e.Payload.(domain.ProgressPayload)
		if p.TotalQueries == 0 || p.QueriesProcessed == 0 {
			t.Fatalf("progress payload missing counts: %+v", p)
		}
	}
	if !sawProgress {
		t.Fatal("expected discovery_progress events")
	}
}
