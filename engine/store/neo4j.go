package store

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/riclipi/brandguard/engine/domain"
)

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Neo4j persists known sites (`KnownSite`), historical violations
// (`Violation`), and session records (`DiscoverySession`) in Neo4j.
// Implements KnownSiteStore and SessionStore.
type Neo4j struct {
	driver     neo4j.DriverWithContext
	newSession func(ctx context.Context) runner // for testing
}

// NewNeo4j creates a store backed by the given driver.
func NewNeo4j(driver neo4j.DriverWithContext) *Neo4j {
	return &Neo4j{driver: driver}
}

var (
	_ KnownSiteStore = (*Neo4j)(nil)
	_ SessionStore   = (*Neo4j)(nil)
)

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (s *Neo4j) session(ctx context.Context) runner {
	if s.newSession != nil {
		return s.newSession(ctx)
	}
	return &sessionAdapter{sess: s.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

func (s *Neo4j) ListKnownSites(ctx context.Context) ([]domain.KnownEntry, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, "MATCH (n:KnownSite) RETURN n.url AS url, n.domain AS domain", nil)
	if err != nil {
		return nil, fmt.Errorf("list known sites: %w", err)
	}

	var entries []domain.KnownEntry
	for res.Next(ctx) {
		record := res.Record()
		url, _ := record.Get("url")
		dom, _ := record.Get("domain")
		entry := domain.KnownEntry{}
		if v, ok := url.(string); ok {
			entry.NormalizedURL = v
		}
		if v, ok := dom.(string); ok {
			entry.Domain = v
		}
		if entry.NormalizedURL != "" {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *Neo4j) ListHistoricalURLs(ctx context.Context, limit int) ([]string, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	if limit <= 0 {
		limit = 1000
	}
	res, err := sess.Run(ctx,
		"MATCH (v:Violation) RETURN v.url AS url ORDER BY v.detected_at DESC LIMIT $limit",
		map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list historical urls: %w", err)
	}

	var urls []string
	for res.Next(ctx) {
		if v, ok := res.Record().Get("url"); ok {
			if url, ok := v.(string); ok && url != "" {
				urls = append(urls, url)
			}
		}
	}
	return urls, nil
}

// CreateKnownSite inserts a discovered site. MERGE makes the write
// idempotent; a pre-existing node reports domain.ErrConflict.
func (s *Neo4j) CreateKnownSite(ctx context.Context, r domain.DiscoveryResult) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	cypher := `
MERGE (n:KnownSite {url: $url})
ON CREATE SET n += $props, n._created = true
ON MATCH SET n._created = false
RETURN n._created AS created`
	props := map[string]any{
		"id":               r.ID,
		"domain":           r.Domain,
		"title":            r.Title,
		"description":      r.Description,
		"platform":         string(r.Platform),
		"category":         string(r.Category),
		"risk_score":       r.RiskScore,
		"confidence":       r.Confidence,
		"discovery_method": r.DiscoveryMethod,
		"detected_at":      r.DetectedAt,
	}
	res, err := sess.Run(ctx, cypher, map[string]any{"url": r.URL, "props": props})
	if err != nil {
		return fmt.Errorf("create known site: %w", err)
	}
	if !res.Next(ctx) {
		return fmt.Errorf("create known site: no result row")
	}
	if created, ok := res.Record().Get("created"); ok {
		if flag, ok := created.(bool); ok && !flag {
			return domain.ErrConflict
		}
	}
	return nil
}

func (s *Neo4j) CreateSession(ctx context.Context, ds domain.DiscoverySession) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, "CREATE (s:DiscoverySession $props)", map[string]any{"props": sessionProps(ds)})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Neo4j) UpdateSession(ctx context.Context, ds domain.DiscoverySession) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx,
		"MATCH (s:DiscoverySession {id: $id}) SET s += $props",
		map[string]any{"id": ds.ID, "props": sessionProps(ds)})
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func sessionProps(ds domain.DiscoverySession) map[string]any {
	return map[string]any{
		"id":                   ds.ID,
		"user_id":              ds.UserID,
		"brand_profile_id":     ds.BrandProfileID,
		"total_queries":        ds.TotalQueries,
		"queries_processed":    ds.QueriesProcessed,
		"new_sites_found":      ds.NewSitesFound,
		"duplicates_filtered":  ds.DuplicatesFiltered,
		"status":               string(ds.Status),
		"current_query":        ds.CurrentQuery,
		"estimated_completion": ds.EstimatedCompletion,
		"last_error":           ds.LastError,
		"started_at":           ds.StartedAt,
		"updated_at":           ds.UpdatedAt,
	}
}
