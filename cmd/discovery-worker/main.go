// Package main implements the discovery worker: it listens for start
// and control commands over NATS, runs discovery sessions against the
// configured search providers, and persists findings in Neo4j.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/riclipi/brandguard/engine/dedup"
	"github.com/riclipi/brandguard/engine/discovery"
	"github.com/riclipi/brandguard/engine/domain"
	"github.com/riclipi/brandguard/engine/events"
	"github.com/riclipi/brandguard/engine/planner"
	"github.com/riclipi/brandguard/engine/risk"
	"github.com/riclipi/brandguard/engine/search"
	"github.com/riclipi/brandguard/engine/store"
	"github.com/riclipi/brandguard/pkg/cache"
	"github.com/riclipi/brandguard/pkg/metrics"
	"github.com/riclipi/brandguard/pkg/natsutil"
	"github.com/riclipi/brandguard/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	NatsURL     string
	Neo4jURL    string
	Neo4jUser   string
	Neo4jPass   string
	MetricsPort int
	// Providers is a comma-separated list of name=baseURL pairs. Each
	// provider reads its API key from <NAME>_API_KEY.
	Providers   string
	ProviderRPM int
	CacheTTL    time.Duration
	MaxQueries  int
}

func loadConfig() Config {
	return Config{
		NatsURL:     envOr("NATS_URL", nats.DefaultURL),
		Neo4jURL:    envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:   envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:   envOr("NEO4J_PASS", "password"),
		MetricsPort: envIntOr("METRICS_PORT", 9090),
		Providers:   envOr("SEARCH_PROVIDERS", "serper=https://google.serper.dev/search"),
		ProviderRPM: envIntOr("PROVIDER_RPM", 60),
		CacheTTL:    envDurationOr("SEARCH_CACHE_TTL", 15*time.Minute),
		MaxQueries:  envIntOr("MAX_QUERIES_PER_SESSION", planner.DefaultMaxQueries),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)
	db := store.NewNeo4j(driver)

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NatsURL, nats.Name("discovery-worker"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	// --- Metrics ---
	registry := metrics.New()
	registry.ServeAsync(cfg.MetricsPort)

	// --- Search gateway ---
	providers, err := buildProviders(cfg)
	if err != nil {
		return err
	}
	gateway, err := search.NewGateway(providers, search.GatewayOpts{
		Window:  resilience.NewKeyedWindow(cfg.ProviderRPM, time.Minute),
		Metrics: registry,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("search gateway: %w", err)
	}

	// --- Pipeline ---
	index := dedup.NewIndex(db, dedup.IndexOpts{Logger: logger})
	index.Load(ctx)

	ctrl, err := discovery.NewController(discovery.Deps{
		Planner:  planner.New(planner.Opts{MaxQueries: cfg.MaxQueries, Logger: logger}),
		Gateway:  gateway,
		Index:    index,
		Filter:   dedup.NewFilter(index, dedup.FilterOpts{Logger: logger}),
		Scorer:   risk.New(risk.Opts{}),
		Sites:    db,
		Sessions: db,
		Sink:     events.NewNATS(nc),
	}, discovery.Opts{Metrics: registry, Logger: logger})
	if err != nil {
		return fmt.Errorf("discovery controller: %w", err)
	}

	w := &worker{
		ctrl:     ctrl,
		index:    index,
		gateway:  gateway,
		log:      logger,
		sessions: make(map[string]*discovery.Session),
	}

	startSub, err := natsutil.Subscribe(nc, events.SubjectStart, w.onStart)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.SubjectStart, err)
	}
	defer startSub.Unsubscribe()

	controlSub, err := natsutil.Subscribe(nc, events.SubjectControl, w.onControl)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.SubjectControl, err)
	}
	defer controlSub.Unsubscribe()

	refreshSub, err := natsutil.Subscribe(nc, events.SubjectRefresh, w.onRefresh)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.SubjectRefresh, err)
	}
	defer refreshSub.Unsubscribe()

	logger.Info("discovery worker ready",
		"nats", cfg.NatsURL, "providers", gateway.Providers(), "metrics_port", cfg.MetricsPort)

	<-ctx.Done()
	logger.Info("shutting down, cancelling active sessions")
	w.cancelAll()
	return nil
}

// buildProviders parses the name=baseURL provider list from config.
func buildProviders(cfg Config) ([]search.Provider, error) {
	searchCache := cache.New(512, cfg.CacheTTL)

	var providers []search.Provider
	for _, pair := range strings.Split(cfg.Providers, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, baseURL, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed provider entry %q", pair)
		}
		apiKey := os.Getenv(strings.ToUpper(name) + "_API_KEY")
		providers = append(providers, search.NewSerpProvider(name, baseURL, apiKey, searchCache))
	}
	return providers, nil
}

// worker routes NATS commands to discovery sessions.
type worker struct {
	ctrl    *discovery.Controller
	index   *dedup.Index
	gateway *search.Gateway
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*discovery.Session
}

func (w *worker) onStart(ctx context.Context, cmd domain.StartDiscoveryCommand) {
	sess, err := w.ctrl.Start(ctx, cmd.UserID, cmd.Profile)
	if err != nil {
		w.log.Error("start command rejected", "brand", cmd.Profile.Name, "err", err)
		return
	}

	w.mu.Lock()
	w.sessions[sess.ID()] = sess
	w.mu.Unlock()

	go func() {
		sess.Wait()
		w.mu.Lock()
		delete(w.sessions, sess.ID())
		w.mu.Unlock()
	}()
}

func (w *worker) onControl(ctx context.Context, cmd domain.SessionControlCommand) {
	w.mu.Lock()
	sess, ok := w.sessions[cmd.SessionID]
	w.mu.Unlock()
	if !ok {
		w.log.Warn("control command for unknown session", "session_id", cmd.SessionID, "action", cmd.Action)
		return
	}

	var err error
	switch cmd.Action {
	case domain.ControlPause:
		err = sess.Pause(ctx)
	case domain.ControlResume:
		err = sess.Resume(ctx)
	case domain.ControlCancel:
		sess.Cancel()
	default:
		w.log.Warn("unknown control action", "action", cmd.Action)
		return
	}
	if err != nil {
		w.log.Warn("control command failed", "session_id", cmd.SessionID, "action", cmd.Action, "err", err)
	}
}

func (w *worker) onRefresh(ctx context.Context, cmd domain.RefreshCorpusCommand) {
	if err := w.index.Refresh(ctx); err != nil {
		w.log.Error("corpus refresh failed", "reason", cmd.Reason, "err", err)
		return
	}
	dropped := w.gateway.FlushCaches()
	w.log.Info("corpus refreshed",
		"reason", cmd.Reason, "known_urls", w.index.Len(), "cached_responses_dropped", dropped)
}

func (w *worker) cancelAll() {
	w.mu.Lock()
	active := make([]*discovery.Session, 0, len(w.sessions))
	for _, s := range w.sessions {
		active = append(active, s)
	}
	w.mu.Unlock()

	for _, s := range active {
		s.Cancel()
		s.Wait()
	}
}
