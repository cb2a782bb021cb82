package resilience

import (
	"sync"
	"time"
)

// KeyedWindow is a fixed-window request counter keyed by name, shared
// process-wide. External search providers enforce their quotas per API
// key, not per session, so one KeyedWindow instance must be shared by
// every concurrently running discovery session.
type KeyedWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	states map[string]*windowState
	now    func() time.Time // for testing
}

type windowState struct {
	count   int
	started time.Time
}

// NewKeyedWindow allows limit requests per key within each window.
func NewKeyedWindow(limit int, window time.Duration) *KeyedWindow {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &KeyedWindow{
		limit:  limit,
		window: window,
		states: make(map[string]*windowState),
		now:    time.Now,
	}
}

// Allow reports whether a request for key fits in the current window,
// consuming one slot when it does.
func (w *KeyedWindow) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	st, ok := w.states[key]
	if !ok || now.Sub(st.started) >= w.window {
		st = &windowState{started: now}
		w.states[key] = st
	}
	if st.count >= w.limit {
		return false
	}
	st.count++
	return true
}

// Remaining returns how many requests are left for key in the current window.
func (w *KeyedWindow) Remaining(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	st, ok := w.states[key]
	if !ok || w.now().Sub(st.started) >= w.window {
		return w.limit
	}
	left := w.limit - st.count
	if left < 0 {
		return 0
	}
	return left
}
