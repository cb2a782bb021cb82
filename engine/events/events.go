// Package events publishes discovery session lifecycle events.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/riclipi/brandguard/engine/domain"
	"github.com/riclipi/brandguard/pkg/natsutil"
)

// Sink receives session lifecycle events.
type Sink interface {
	Emit(ctx context.Context, sessionID string, typ domain.EventType, payload any) error
}

// SubjectPrefix is the NATS subject root for discovery events. The full
// subject is SubjectPrefix + "." + event type, so consumers can
// subscribe to "discovery.events.>" or to a single type.
const SubjectPrefix = "discovery.events"

// Command subjects the worker subscribes to.
const (
	SubjectStart   = "discovery.commands.start"
	SubjectControl = "discovery.commands.control"
	SubjectRefresh = "discovery.commands.refresh"
)

// NATS publishes events to a NATS subject per event type.
type NATS struct {
	nc  *nats.Conn
	now func() time.Time
}

// NewNATS creates a NATS-backed sink.
func NewNATS(nc *nats.Conn) *NATS {
	return &NATS{nc: nc, now: time.Now}
}

func (s *NATS) Emit(ctx context.Context, sessionID string, typ domain.EventType, payload any) error {
	event := domain.Event{
		SessionID: sessionID,
		Type:      typ,
		At:        s.now().UTC(),
		Payload:   payload,
	}
	return natsutil.Publish(ctx, s.nc, SubjectPrefix+"."+string(typ), event)
}

// Memory records events in order, for tests.
type Memory struct {
	mu     sync.Mutex
	events []domain.Event
	now    func() time.Time
}

// NewMemory creates an in-memory sink.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (s *Memory) Emit(_ context.Context, sessionID string, typ domain.EventType, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, domain.Event{
		SessionID: sessionID,
		Type:      typ,
		At:        s.now().UTC(),
		Payload:   payload,
	})
	return nil
}

// Events returns a copy of everything emitted so far.
func (s *Memory) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Types returns the emitted event types in order.
func (s *Memory) Types() []domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}
