package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/riclipi/brandguard/engine/domain"
	"github.com/riclipi/brandguard/pkg/fn"
	"github.com/riclipi/brandguard/pkg/metrics"
	"github.com/riclipi/brandguard/pkg/resilience"
)

// GatewayOpts configures provider rotation and rate control.
type GatewayOpts struct {
	// Window is the shared per-provider request counter. Quotas are
	// enforced by the external APIs per key, so one window must be
	// shared across every concurrent session in the process.
	Window *resilience.KeyedWindow
	// MinDelay is the minimum spacing between requests to one provider.
	MinDelay time.Duration
	// Breaker configures the per-provider circuit breaker.
	Breaker resilience.BreakerOpts
	// Metrics receives per-provider request counters and the shared
	// request latency histogram. Nil gets a private registry.
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// Gateway fans a query out across providers in a rotating order,
// isolating per-provider failures.
type Gateway struct {
	providers []Provider
	window    *resilience.KeyedWindow
	delays    map[string]*rate.Limiter
	breakers  map[string]*resilience.Breaker
	requests  map[string]*metrics.Counter
	failures  map[string]*metrics.Counter
	latency   *metrics.Histogram
	log       *slog.Logger
	now       func() time.Time // for testing rotation
}

// NewGateway creates a gateway over the given providers.
func NewGateway(providers []Provider, opts GatewayOpts) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, domain.ErrNoProviders
	}
	if opts.Window == nil {
		opts.Window = resilience.NewKeyedWindow(60, time.Minute)
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 200 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := opts.Metrics
	if reg == nil {
		reg = metrics.New()
	}

	delays := make(map[string]*rate.Limiter, len(providers))
	breakers := make(map[string]*resilience.Breaker, len(providers))
	requests := make(map[string]*metrics.Counter, len(providers))
	failures := make(map[string]*metrics.Counter, len(providers))
	for _, p := range providers {
		name := p.Name()
		delays[name] = rate.NewLimiter(rate.Every(opts.MinDelay), 1)

		bopts := opts.Breaker
		bopts.OnStateChange = func(from, to resilience.State) {
			log.Warn("provider circuit state changed",
				"provider", name, "from", from.String(), "to", to.String())
		}
		breakers[name] = resilience.NewBreaker(bopts)

		requests[name] = reg.Counter(
			metrics.WithLabels("provider_requests_total", "provider", name),
			"Search requests attempted, per provider.")
		failures[name] = reg.Counter(
			metrics.WithLabels("provider_failures_total", "provider", name),
			"Failed search requests, per provider.")
	}

	return &Gateway{
		providers: providers,
		window:    opts.Window,
		delays:    delays,
		breakers:  breakers,
		requests:  requests,
		failures:  failures,
		latency:   reg.Histogram("provider_request_seconds", "Search request duration across providers.", nil),
		log:       log,
		now:       time.Now,
	}, nil
}

// Search runs one query against a single named provider, subject to the
// same rate control as rotated calls.
func (g *Gateway) Search(ctx context.Context, providerName string, query domain.SearchQuery) ([]domain.SearchResult, error) {
	for _, p := range g.providers {
		if p.Name() == providerName {
			return g.call(ctx, p, query)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
}

// SearchAcrossProviders iterates the rotation order, accumulating
// results and short-circuiting once the query's MaxResults is reached.
// A provider failure is logged and skipped; only when every provider
// fails does the query itself fail.
func (g *Gateway) SearchAcrossProviders(ctx context.Context, query domain.SearchQuery) ([]domain.SearchResult, error) {
	var (
		results []domain.SearchResult
		errs    []error
	)

	for _, p := range g.rotation() {
		if query.MaxResults > 0 && len(results) >= query.MaxResults {
			break
		}

		hits, err := g.call(ctx, p, query)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			g.log.Warn("provider failed, rotating to next",
				"provider", p.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		// Providers overlap; keep the first hit per URL.
		results = fn.UniqueBy(append(results, hits...), func(r domain.SearchResult) string {
			return r.URL
		})
	}

	if query.MaxResults > 0 && len(results) > query.MaxResults {
		results = results[:query.MaxResults]
	}
	if len(results) == 0 && len(errs) == len(g.providers) {
		return nil, fmt.Errorf("%w: %w", domain.ErrAllProvidersFailed, errors.Join(errs...))
	}
	return results, nil
}

// call applies the window counter, inter-request delay, and circuit
// breaker around one provider request.
func (g *Gateway) call(ctx context.Context, p Provider, query domain.SearchQuery) ([]domain.SearchResult, error) {
	name := p.Name()
	if !g.window.Allow(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrRateLimited)
	}
	if err := g.delays[name].Wait(ctx); err != nil {
		return nil, err
	}

	g.requests[name].Inc()
	start := time.Now()
	var hits []domain.SearchResult
	err := g.breakers[name].Call(ctx, func(ctx context.Context) error {
		var err error
		hits, err = p.Search(ctx, query)
		return err
	})
	g.latency.Since(start)
	if err != nil {
		g.failures[name].Inc()
		return nil, err
	}
	return hits, nil
}

// rotation orders providers by the current minute bucket so load
// distributes across providers over time.
func (g *Gateway) rotation() []Provider {
	n := len(g.providers)
	offset := int(g.now().Unix()/60) % n
	out := make([]Provider, 0, n)
	out = append(out, g.providers[offset:]...)
	out = append(out, g.providers[:offset]...)
	return out
}

// Providers lists the configured provider names in registration order.
func (g *Gateway) Providers() []string {
	return fn.Map(g.providers, func(p Provider) string { return p.Name() })
}

// FlushCaches drops cached responses on every provider that keeps any,
// returning the total number of entries dropped.
func (g *Gateway) FlushCaches() int {
	n := 0
	for _, p := range g.providers {
		if f, ok := p.(CacheFlusher); ok {
			n += f.FlushCache()
		}
	}
	return n
}
