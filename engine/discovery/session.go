package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/riclipi/brandguard/engine/dedup"
	"github.com/riclipi/brandguard/engine/domain"
	"github.com/riclipi/brandguard/engine/risk"
	"github.com/riclipi/brandguard/engine/urlx"
	"github.com/riclipi/brandguard/pkg/fn"
)

// Session is the handle to one running discovery session. All external
// control flows through it; the run loop is its only writer apart from
// Pause and Resume.
type Session struct {
	ctrl    *Controller
	profile domain.BrandProfile
	queries []domain.SearchQuery
	pipe    fn.Stage[domain.SearchQuery, queryOutcome]
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	snapshot domain.DiscoverySession
	resume   chan struct{} // non-nil while paused
	history  []string
	results  []domain.DiscoveryResult
	elapsed  time.Duration
}

// ID returns the session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.ID
}

// Snapshot returns a copy of the current progress record.
func (s *Session) Snapshot() domain.DiscoverySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// History returns the accumulated per-query error messages.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// Results returns the discovery results accepted so far.
func (s *Session) Results() []domain.DiscoveryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DiscoveryResult, len(s.results))
	copy(out, s.results)
	return out
}

// Wait blocks until the session reaches a terminal state and returns
// the final snapshot.
func (s *Session) Wait() domain.DiscoverySession {
	<-s.done
	return s.Snapshot()
}

// Cancel requests termination. In-flight provider calls are cancelled;
// accepted results are discarded, never partially persisted.
func (s *Session) Cancel() {
	s.cancel()
}

// Pause halts processing before the next query. In-flight work is not
// cancelled. Pausing a paused session is a no-op.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	if s.snapshot.Status.Terminal() {
		s.mu.Unlock()
		return domain.ErrSessionTerminal
	}
	if s.resume != nil {
		s.mu.Unlock()
		return nil
	}
	s.resume = make(chan struct{})
	s.snapshot.Status = domain.StatusPaused
	s.snapshot.UpdatedAt = s.ctrl.now().UTC()
	snap := s.snapshot
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.emit(ctx, domain.EventDiscoveryPaused, nil)
	s.ctrl.log.Info("session paused", "session_id", snap.ID)
	return nil
}

// Resume continues a paused session from the next unprocessed query.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	if s.snapshot.Status.Terminal() {
		s.mu.Unlock()
		return domain.ErrSessionTerminal
	}
	if s.resume == nil {
		s.mu.Unlock()
		return domain.ErrSessionNotPaused
	}
	close(s.resume)
	s.resume = nil
	s.snapshot.Status = domain.StatusRunning
	s.snapshot.UpdatedAt = s.ctrl.now().UTC()
	snap := s.snapshot
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.emit(ctx, domain.EventDiscoveryResumed, nil)
	s.ctrl.log.Info("session resumed", "session_id", snap.ID)
	return nil
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.ctrl.activeSessions.Dec()
	defer func() {
		if r := recover(); r != nil {
			s.ctrl.log.Error("session panicked", "session_id", s.ID(), "panic", r)
			s.fail(ctx, fmt.Sprintf("panic: %v", r))
		}
	}()

	for i, q := range s.queries {
		if err := s.awaitRunnable(ctx); err != nil {
			s.fail(ctx, "session cancelled")
			return
		}
		if err := s.processQuery(ctx, i, q); err != nil {
			s.fail(ctx, "session cancelled")
			return
		}
		if s.ctrl.opts.QueryDelay > 0 && i < len(s.queries)-1 {
			select {
			case <-ctx.Done():
				s.fail(ctx, "session cancelled")
				return
			case <-time.After(s.ctrl.opts.QueryDelay):
			}
		}
	}
	s.complete(ctx)
}

// awaitRunnable blocks while the session is paused. It returns an error
// only on cancellation.
func (s *Session) awaitRunnable(ctx context.Context) error {
	for {
		s.mu.Lock()
		ch := s.resume
		s.mu.Unlock()
		if ch == nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// candidateSet is the classify stage's output: the first hit per
// normalized URL plus the classification counts.
type candidateSet struct {
	hits     map[string]domain.SearchResult
	fresh    []string // normalized URLs not in the corpus
	filtered int
}

// queryOutcome is one query's accepted results after scoring. fresh[i]
// is the normalized URL behind accepted[i].
type queryOutcome struct {
	accepted []domain.DiscoveryResult
	fresh    []string
	filtered int
}

// queryPipeline composes the per-query flow so each stage carries its
// own trace span. Only the search stage can fail; the rest are pure
// transforms plus one recording tap.
func (s *Session) queryPipeline() fn.Stage[domain.SearchQuery, queryOutcome] {
	search := fn.TracedStage("discovery.search",
		func(ctx context.Context, q domain.SearchQuery) fn.Result[[]domain.SearchResult] {
			return fn.FromPair(s.ctrl.deps.Gateway.SearchAcrossProviders(ctx, q))
		})
	classify := fn.TracedStage("discovery.classify", fn.MapStage(s.classifyHits))
	score := fn.TracedStage("discovery.score", fn.MapStage(s.scoreCandidates))
	record := fn.Pipeline(
		fn.MapStage(flagSuspicious),
		fn.TapStage(s.recordOutcome),
	)
	return fn.Then(search, fn.Then(classify, fn.Then(score, record)))
}

// processQuery runs one query through the pipeline. Provider failures
// are recorded and swallowed; only cancellation is returned.
func (s *Session) processQuery(ctx context.Context, i int, q domain.SearchQuery) error {
	qs := domain.QueryString(q)
	start := s.ctrl.now()

	s.mu.Lock()
	s.snapshot.CurrentQuery = qs
	total := s.snapshot.TotalQueries
	s.mu.Unlock()
	s.emit(ctx, domain.EventQueryProcessing, domain.QueryPayload{Query: qs, Index: i, Total: total})

	qctx, cancelQuery := context.WithTimeout(ctx, s.ctrl.opts.QueryTimeout)
	_, err := s.pipe(qctx, q).Unwrap()
	cancelQuery()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.recordQueryError(ctx, qs, err)
	}

	s.ctrl.queriesTotal.Inc()
	dur := s.ctrl.now().Sub(start)
	s.ctrl.queryDuration.Observe(dur.Seconds())
	s.progress(ctx, i+1, dur)
	return nil
}

// classifyHits normalizes a query's hits and splits off the genuinely
// new ones, remembering the originating hit per normalized URL.
func (s *Session) classifyHits(hits []domain.SearchResult) candidateSet {
	byNormalized := make(map[string]domain.SearchResult, len(hits))
	candidates := make([]string, 0, len(hits))
	for _, h := range hits {
		n := urlx.Normalize(h.URL)
		if n == "" {
			continue
		}
		candidates = append(candidates, h.URL)
		if _, ok := byNormalized[n]; !ok {
			byNormalized[n] = h
		}
	}

	cls := s.ctrl.deps.Filter.Classify(candidates)
	return candidateSet{
		hits:     byNormalized,
		fresh:    cls.New,
		filtered: len(cls.Duplicate) + len(cls.Variation),
	}
}

// scoreCandidates assesses each new URL against the brand profile and a
// sample of the historical corpus.
func (s *Session) scoreCandidates(c candidateSet) queryOutcome {
	sample := s.ctrl.deps.Index.RecentSample(historicalSampleSize)
	accepted := make([]domain.DiscoveryResult, 0, len(c.fresh))
	for _, n := range c.fresh {
		historical := risk.HistoricalSimilarity(n, sample)
		accepted = append(accepted, s.ctrl.deps.Scorer.Assess(s.profile, c.hits[n], historical))
	}
	return queryOutcome{accepted: accepted, fresh: c.fresh, filtered: c.filtered}
}

// flagSuspicious folds URL-level suspicion reasons into each result's
// matching patterns.
func flagSuspicious(o queryOutcome) queryOutcome {
	for i, n := range o.fresh {
		if susp := dedup.IsURLSuspicious(n); susp.Suspicious {
			o.accepted[i].MatchingPatterns = append(o.accepted[i].MatchingPatterns, susp.Reasons...)
		}
	}
	return o
}

// recordOutcome admits accepted URLs to the corpus immediately, so later
// queries in this session cannot emit them again, and folds the counts
// into the snapshot.
func (s *Session) recordOutcome(_ context.Context, o queryOutcome) {
	for _, n := range o.fresh {
		s.ctrl.deps.Index.AddKnownURL(n)
	}

	s.mu.Lock()
	s.results = append(s.results, o.accepted...)
	s.snapshot.NewSitesFound += len(o.accepted)
	s.snapshot.DuplicatesFiltered += o.filtered
	s.mu.Unlock()

	s.ctrl.newSitesTotal.Add(int64(len(o.accepted)))
	s.ctrl.duplicatesTotal.Add(int64(o.filtered))
}

// recordQueryError notes a per-query failure without ending the session.
func (s *Session) recordQueryError(ctx context.Context, qs string, err error) {
	s.mu.Lock()
	s.history = append(s.history, fmt.Sprintf("%s: %v", qs, err))
	s.snapshot.LastError = err.Error()
	id := s.snapshot.ID
	s.mu.Unlock()

	s.ctrl.log.Warn("query failed, continuing session",
		"session_id", id, "query", qs, "error", err)
	s.emit(ctx, domain.EventProviderError, domain.ErrorPayload{Query: qs, Message: err.Error()})
}

// progress updates counters and the rolling-average completion estimate
// after each query, then persists and announces the new snapshot.
func (s *Session) progress(ctx context.Context, processed int, dur time.Duration) {
	s.mu.Lock()
	s.elapsed += dur
	s.snapshot.QueriesProcessed = processed
	if remaining := s.snapshot.TotalQueries - processed; remaining > 0 && processed > 0 {
		avg := s.elapsed / time.Duration(processed)
		s.snapshot.EstimatedCompletion = s.ctrl.now().UTC().Add(avg * time.Duration(remaining))
	} else {
		s.snapshot.EstimatedCompletion = time.Time{}
	}
	s.snapshot.UpdatedAt = s.ctrl.now().UTC()
	snap := s.snapshot
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.emit(ctx, domain.EventDiscoveryProgress, progressPayload(snap))
}

// complete persists accepted results and marks the session COMPLETED.
// A conflict on persist means another session got there first and is
// benign.
func (s *Session) complete(ctx context.Context) {
	pctx, cancel := persistCtx(ctx)
	defer cancel()

	for _, r := range s.Results() {
		err := s.ctrl.deps.Sites.CreateKnownSite(pctx, r)
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			s.ctrl.log.Warn("persist discovery result failed", "url", r.URL, "error", err)
		}
	}

	s.mu.Lock()
	s.snapshot.Status = domain.StatusCompleted
	s.snapshot.CurrentQuery = ""
	s.snapshot.EstimatedCompletion = time.Time{}
	s.snapshot.UpdatedAt = s.ctrl.now().UTC()
	snap := s.snapshot
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.emit(ctx, domain.EventDiscoveryCompleted, progressPayload(snap))
	s.ctrl.log.Info("session completed",
		"session_id", snap.ID,
		"new_sites", snap.NewSitesFound,
		"duplicates", snap.DuplicatesFiltered,
		"queries", snap.QueriesProcessed)
}

// fail marks the session ERROR. Idempotent once terminal.
func (s *Session) fail(ctx context.Context, msg string) {
	s.mu.Lock()
	if s.snapshot.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.snapshot.Status = domain.StatusError
	s.snapshot.LastError = msg
	s.snapshot.CurrentQuery = ""
	s.snapshot.UpdatedAt = s.ctrl.now().UTC()
	snap := s.snapshot
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.emit(ctx, domain.EventDiscoveryError, domain.ErrorPayload{Message: msg})
	s.ctrl.log.Error("session failed", "session_id", snap.ID, "error", msg)
}

func (s *Session) persist(ctx context.Context, snap domain.DiscoverySession) {
	pctx, cancel := persistCtx(ctx)
	defer cancel()
	if err := s.ctrl.deps.Sessions.UpdateSession(pctx, snap); err != nil {
		s.ctrl.log.Warn("session update failed", "session_id", snap.ID, "error", err)
	}
}

func (s *Session) emit(ctx context.Context, typ domain.EventType, payload any) {
	if err := s.ctrl.deps.Sink.Emit(context.WithoutCancel(ctx), s.ID(), typ, payload); err != nil {
		s.ctrl.log.Warn("event emit failed", "type", typ, "error", err)
	}
}

func progressPayload(snap domain.DiscoverySession) domain.ProgressPayload {
	return domain.ProgressPayload{
		QueriesProcessed:    snap.QueriesProcessed,
		TotalQueries:        snap.TotalQueries,
		NewSitesFound:       snap.NewSitesFound,
		DuplicatesFiltered:  snap.DuplicatesFiltered,
		CurrentQuery:        snap.CurrentQuery,
		EstimatedCompletion: snap.EstimatedCompletion,
	}
}
