// Package store defines the persistence contracts the discovery pipeline
// depends on, with Neo4j-backed and in-memory implementations.
package store

import (
	"context"

	"github.com/riclipi/brandguard/engine/domain"
)

// KnownSiteStore is the known-site/history collaborator. CreateKnownSite
// reports domain.ErrConflict when the URL already exists; callers treat
// that as benign.
type KnownSiteStore interface {
	ListKnownSites(ctx context.Context) ([]domain.KnownEntry, error)
	ListHistoricalURLs(ctx context.Context, limit int) ([]string, error)
	CreateKnownSite(ctx context.Context, result domain.DiscoveryResult) error
}

// SessionStore persists discovery session progress records.
type SessionStore interface {
	CreateSession(ctx context.Context, s domain.DiscoverySession) error
	UpdateSession(ctx context.Context, s domain.DiscoverySession) error
}
