// Package search abstracts over external search backends with provider
// rotation, per-provider rate control, and failure isolation.
package search

import (
	"context"
	"errors"

	"github.com/riclipi/brandguard/engine/domain"
)

// Provider is one external search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchResult, error)
}

// CacheFlusher is implemented by providers that cache responses and can
// drop them on demand, e.g. after the known-site corpus is refreshed.
type CacheFlusher interface {
	FlushCache() int
}

// Provider-level errors the gateway distinguishes when isolating failures.
var (
	ErrQuotaExhausted  = errors.New("provider quota exhausted")
	ErrRateLimited     = errors.New("provider rate limited")
	ErrUnknownProvider = errors.New("unknown provider")
)
