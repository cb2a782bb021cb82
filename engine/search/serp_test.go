package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riclipi/brandguard/engine/domain"
	"github.com/riclipi/brandguard/pkg/cache"
	"github.com/riclipi/brandguard/pkg/fn"
)

const organicBody = `{
	"organic": [
		{"title": "Acme leaks", "link": "https://leaks-hub.to/acme", "snippet": "free acme content"},
		{"title": "", "link": "https://mirror-zone.cc/acme", "snippet": ""},
		{"title": "no link", "link": "", "snippet": "dropped"}
	]
}`

func noRetry() fn.RetryOpts {
	return fn.RetryOpts{MaxAttempts: 1, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
}

func TestSerpProviderDecodesOrganicResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			t.Error("query string missing q parameter")
		}
		if r.URL.Query().Get("api_key") != "k" {
			t.Error("api key not forwarded")
		}
		w.Write([]byte(organicBody))
	}))
	defer srv.Close()

	p := NewSerpProvider("serper", srv.URL, "k", nil)
	p.retry = noRetry()

	results, err := p.Search(context.Background(), domain.SearchQuery{Terms: []string{"acme"}, MaxResults: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (empty link dropped), got %d", len(results))
	}
	first := results[0]
	if first.URL != "https://leaks-hub.to/acme" || first.Provider != "serper" || first.Rank != 1 {
		t.Fatalf("unexpected first result: %+v", first)
	}
}

func TestSerpProviderQuotaExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewSerpProvider("serper", srv.URL, "", nil)
	p.retry = noRetry()

	_, err := p.Search(context.Background(), domain.SearchQuery{Terms: []string{"acme"}})
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
}

func TestSerpProviderRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewSerpProvider("serper", srv.URL, "", nil)
	p.retry = noRetry()

	_, err := p.Search(context.Background(), domain.SearchQuery{Terms: []string{"acme"}})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestSerpProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "invalid key"}}`))
	}))
	defer srv.Close()

	p := NewSerpProvider("serper", srv.URL, "", nil)
	p.retry = noRetry()

	_, err := p.Search(context.Background(), domain.SearchQuery{Terms: []string{"acme"}})
	if err == nil {
		t.Fatal("expected an error from the error envelope")
	}
}

func TestSerpProviderCachesIdenticalQueries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(organicBody))
	}))
	defer srv.Close()

	c := cache.New(16, time.Minute)
	p := NewSerpProvider("serper", srv.URL, "", c)
	p.retry = noRetry()

	q := domain.SearchQuery{Terms: []string{"acme"}, MaxResults: 10}
	if _, err := p.Search(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Search(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("identical query should be served from cache, got %d HTTP calls", n)
	}
}

func TestFlushCachesForcesRefetch(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(organicBody))
	}))
	defer srv.Close()

	c := cache.New(16, time.Minute)
	p := NewSerpProvider("serper", srv.URL, "", c)
	p.retry = noRetry()
	g := fastGateway(t, p)

	q := domain.SearchQuery{Terms: []string{"acme"}, MaxResults: 10}
	if _, err := g.Search(context.Background(), "serper", q); err != nil {
		t.Fatal(err)
	}
	if dropped := g.FlushCaches(); dropped != 1 {
		t.Fatalf("expected one cached response dropped, got %d", dropped)
	}
	if _, err := g.Search(context.Background(), "serper", q); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("flush should force a refetch, got %d HTTP calls", n)
	}
}

func TestFlushCacheWithoutCacheIsNoop(t *testing.T) {
	p := NewSerpProvider("serper", "http://unused", "", nil)
	if n := p.FlushCache(); n != 0 {
		t.Fatalf("cacheless provider should report zero drops, got %d", n)
	}
}

func TestSerpProviderRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(organicBody))
	}))
	defer srv.Close()

	p := NewSerpProvider("serper", srv.URL, "", nil)
	p.retry = fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}

	results, err := p.Search(context.Background(), domain.SearchQuery{Terms: []string{"acme"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("retry should recover from one transient failure")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly 2 HTTP calls, got %d", calls.Load())
	}
}
