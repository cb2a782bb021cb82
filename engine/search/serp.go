package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/riclipi/brandguard/engine/domain"
	"github.com/riclipi/brandguard/pkg/cache"
	"github.com/riclipi/brandguard/pkg/fn"
)

// SerpProvider queries a JSON serp-style search API over HTTP. Identical
// queries within the cache TTL are served from the shared cache instead
// of spending provider quota.
type SerpProvider struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.Cache
	retry      fn.RetryOpts
}

// NewSerpProvider creates a provider named name against baseURL. The
// cache is optional.
func NewSerpProvider(name, baseURL, apiKey string, c *cache.Cache) *SerpProvider {
	return &SerpProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache: c,
		retry: fn.DefaultRetry,
	}
}

// Name returns the provider name used for rate limiting and rotation.
func (p *SerpProvider) Name() string { return p.name }

// FlushCache drops this provider's cached responses, returning the
// number of entries removed.
func (p *SerpProvider) FlushCache() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.InvalidateByTag("provider:" + p.name)
}

// serpResponse is the provider's search response shape.
type serpResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Search executes one query, retrying transient failures.
func (p *SerpProvider) Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchResult, error) {
	qs := domain.QueryString(query)
	cacheKey := p.name + "|" + qs

	if p.cache != nil {
		if cached, ok := p.cache.Get(cacheKey); ok {
			return cached.([]domain.SearchResult), nil
		}
	}

	fetch := fn.RetryStage(p.retry, func(ctx context.Context, q domain.SearchQuery) fn.Result[[]domain.SearchResult] {
		return fn.FromPair(p.fetch(ctx, qs, q.MaxResults))
	})
	results, err := fetch(ctx, query).Unwrap()
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.Set(cacheKey, results, "provider:"+p.name)
	}
	return results, nil
}

func (p *SerpProvider) fetch(ctx context.Context, qs string, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{
		"q":   {qs},
		"num": {strconv.Itoa(limit)},
	}
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", p.name, ErrQuotaExhausted)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s: %w", p.name, ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: unexpected status %d", p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", p.name, err)
	}

	var decoded serpResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%s: malformed response: %w", p.name, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%s: %s", p.name, decoded.Error.Message)
	}

	results := make([]domain.SearchResult, 0, len(decoded.Organic))
	for i, hit := range decoded.Organic {
		if hit.Link == "" {
			continue
		}
		results = append(results, domain.SearchResult{
			Title:    hit.Title,
			URL:      hit.Link,
			Snippet:  hit.Snippet,
			Provider: p.name,
			Rank:     i + 1,
		})
	}
	return results, nil
}
