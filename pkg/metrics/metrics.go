// Package metrics is a small Prometheus-text metrics registry built on the
// standard library. Counters, gauges, and histograms are registered by name
// (optionally with labels) and exposed on an HTTP /metrics endpoint.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are histogram buckets in seconds, tuned for network calls.
var DefaultBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter is a monotonically increasing counter.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// Gauge can go up and down.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// Histogram tracks a distribution over fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *Histogram {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	b := make([]float64, len(buckets))
	copy(b, buckets)
	sort.Float64s(b)
	return &Histogram{buckets: b, counts: make([]uint64, len(b))}
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
			break
		}
	}
	h.mu.Unlock()
}

// Since observes the duration since t, in seconds.
func (h *Histogram) Since(t time.Time) {
	h.Observe(time.Since(t).Seconds())
}

// Registry holds named metrics in registration order.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	help       map[string]string
	kinds      map[string]string
	order      []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		help:       make(map[string]string),
		kinds:      make(map[string]string),
	}
}

// WithLabels builds a metric name with label pairs appended, e.g.
// WithLabels("requests_total", "provider", "serper").
func WithLabels(name string, kv ...string) string {
	if len(kv) < 2 {
		return name
	}
	var parts []string
	for i := 0; i+1 < len(kv); i += 2 {
		parts = append(parts, fmt.Sprintf("%s=%q", kv[i], kv[i+1]))
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}

// baseName strips any label suffix from a metric name.
func baseName(name string) string {
	if i := strings.IndexByte(name, '{'); i >= 0 {
		return name[:i]
	}
	return name
}

func (r *Registry) register(name, kind, help string) {
	base := baseName(name)
	if _, ok := r.kinds[name]; !ok {
		r.order = append(r.order, name)
	}
	r.kinds[name] = kind
	if help != "" {
		r.help[base] = help
	}
}

// Counter returns (registering if needed) a counter with the given name.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	r.register(name, "counter", help)
	return c
}

// Gauge returns (registering if needed) a gauge with the given name.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[name] = g
	r.register(name, "gauge", help)
	return g
}

// Histogram returns (registering if needed) a histogram with the given name.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h := newHistogram(buckets)
	r.histograms[name] = h
	r.register(name, "histogram", help)
	return h
}

// Render emits all metrics in the Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sb strings.Builder
	seenHeader := make(map[string]bool)

	for _, name := range r.order {
		base := baseName(name)
		if !seenHeader[base] {
			if help, ok := r.help[base]; ok {
				fmt.Fprintf(&sb, "# HELP %s %s\n", base, help)
			}
			fmt.Fprintf(&sb, "# TYPE %s %s\n", base, r.kinds[name])
			seenHeader[base] = true
		}

		switch r.kinds[name] {
		case "counter":
			fmt.Fprintf(&sb, "%s %d\n", name, r.counters[name].Value())
		case "gauge":
			fmt.Fprintf(&sb, "%s %d\n", name, r.gauges[name].Value())
		case "histogram":
			h := r.histograms[name]
			h.mu.Lock()
			var cum uint64
			for i, b := range h.buckets {
				cum += h.counts[i]
				fmt.Fprintf(&sb, "%s_bucket{le=%q} %d\n", base, fmt.Sprintf("%g", b), cum)
			}
			fmt.Fprintf(&sb, "%s_bucket{le=\"+Inf\"} %d\n", base, h.count)
			fmt.Fprintf(&sb, "%s_sum %g\n", base, h.sum)
			fmt.Fprintf(&sb, "%s_count %d\n", base, h.count)
			h.mu.Unlock()
		}
	}
	return sb.String()
}

// Handler serves the registry on /metrics.
func (r *Registry) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(r.Render()))
	})
	return mux
}

// ServeAsync starts the metrics endpoint on the given port in the background.
func (r *Registry) ServeAsync(port int) {
	go func() {
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), r.Handler())
	}()
}
