// Package discovery owns the lifecycle of one discovery run: it plans
// queries, drives the search gateway, filters known sites, scores the
// survivors, and tracks progress through pause, resume, and cancel.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/riclipi/brandguard/engine/dedup"
	"github.com/riclipi/brandguard/engine/domain"
	"github.com/riclipi/brandguard/engine/events"
	"github.com/riclipi/brandguard/engine/planner"
	"github.com/riclipi/brandguard/engine/risk"
	"github.com/riclipi/brandguard/engine/store"
	"github.com/riclipi/brandguard/pkg/metrics"
)

const (
	// DefaultQueryTimeout bounds one query's provider fan-out.
	DefaultQueryTimeout = 30 * time.Second
	// DefaultQueryDelay spaces consecutive queries within a session.
	DefaultQueryDelay = 500 * time.Millisecond

	historicalSampleSize = 100
)

// Searcher is the gateway surface the controller drives.
type Searcher interface {
	SearchAcrossProviders(ctx context.Context, query domain.SearchQuery) ([]domain.SearchResult, error)
}

// Deps are the controller's collaborators.
type Deps struct {
	Planner  *planner.Planner
	Gateway  Searcher
	Index    *dedup.Index
	Filter   *dedup.Filter
	Scorer   *risk.Scorer
	Sites    store.KnownSiteStore
	Sessions store.SessionStore
	Sink     events.Sink
}

// Opts tunes controller behaviour.
type Opts struct {
	QueryTimeout time.Duration
	// QueryDelay spaces consecutive queries. Zero selects the default;
	// a negative value disables the delay.
	QueryDelay time.Duration
	Metrics    *metrics.Registry
	Logger     *slog.Logger
}

// Controller starts and tracks discovery sessions.
type Controller struct {
	deps Deps
	opts Opts
	log  *slog.Logger
	now  func() time.Time

	queriesTotal    *metrics.Counter
	newSitesTotal   *metrics.Counter
	duplicatesTotal *metrics.Counter
	activeSessions  *metrics.Gauge
	queryDuration   *metrics.Histogram
}

// NewController wires a controller from its collaborators.
func NewController(deps Deps, opts Opts) (*Controller, error) {
	switch {
	case deps.Planner == nil, deps.Gateway == nil, deps.Index == nil,
		deps.Filter == nil, deps.Scorer == nil,
		deps.Sites == nil, deps.Sessions == nil, deps.Sink == nil:
		return nil, fmt.Errorf("discovery: missing dependency")
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	switch {
	case opts.QueryDelay == 0:
		opts.QueryDelay = DefaultQueryDelay
	case opts.QueryDelay < 0:
		opts.QueryDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	return &Controller{
		deps: deps,
		opts: opts,
		log:  opts.Logger,
		now:  time.Now,

		queriesTotal:    opts.Metrics.Counter("discovery_queries_total", "Search queries processed across all sessions."),
		newSitesTotal:   opts.Metrics.Counter("discovery_new_sites_total", "Genuinely new sites discovered."),
		duplicatesTotal: opts.Metrics.Counter("discovery_duplicates_total", "Candidates filtered as duplicate or variation."),
		activeSessions:  opts.Metrics.Gauge("discovery_sessions_active", "Sessions currently running or paused."),
		queryDuration:   opts.Metrics.Histogram("discovery_query_seconds", "Per-query processing time.", nil),
	}, nil
}

// Start validates the profile, persists the session record, and launches
// the run in the background. The returned handle is the only way to
// pause, resume, cancel, or await the session.
func (c *Controller) Start(ctx context.Context, userID string, profile domain.BrandProfile) (*Session, error) {
	if err := domain.ValidateBrandProfile(profile); err != nil {
		return nil, err
	}

	historical, err := c.deps.Sites.ListHistoricalURLs(ctx, dedup.DefaultHistoryLimit)
	if err != nil {
		c.log.Warn("historical urls unavailable, planning without patterns", "error", err)
		historical = nil
	}
	queries := c.deps.Planner.Plan(profile, historical)

	now := c.now().UTC()
	snapshot := domain.DiscoverySession{
		ID:             uuid.NewString(),
		UserID:         userID,
		BrandProfileID: profile.ID,
		TotalQueries:   len(queries),
		Status:         domain.StatusRunning,
		StartedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.deps.Sessions.CreateSession(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess := &Session{
		ctrl:     c,
		profile:  profile,
		queries:  queries,
		cancel:   cancel,
		snapshot: snapshot,
		done:     make(chan struct{}),
	}
	sess.pipe = sess.queryPipeline()

	if err := c.deps.Sink.Emit(ctx, snapshot.ID, domain.EventDiscoveryStarted, nil); err != nil {
		c.log.Warn("event emit failed", "type", domain.EventDiscoveryStarted, "error", err)
	}
	c.activeSessions.Inc()
	c.log.Info("discovery session started",
		"session_id", snapshot.ID, "brand", profile.Name, "queries", len(queries))

	go sess.run(runCtx)
	return sess, nil
}

// persistCtx derives a short-lived context that survives run cancellation
// so terminal state still reaches the store.
func persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}
