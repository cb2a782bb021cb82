package domain

import "time"

// EventType enumerates the lifecycle events a session emits.
type EventType string

const (
	EventDiscoveryStarted   EventType = "discovery_started"
	EventQueryProcessing    EventType = "query_processing"
	EventDiscoveryProgress  EventType = "discovery_progress"
	EventProviderError      EventType = "provider_error"
	EventDiscoveryCompleted EventType = "discovery_completed"
	EventDiscoveryError     EventType = "discovery_error"
	EventDiscoveryPaused    EventType = "discovery_paused"
	EventDiscoveryResumed   EventType = "discovery_resumed"
)

// Event is the envelope published to the event sink.
type Event struct {
	SessionID string    `json:"session_id"`
	Type      EventType `json:"type"`
	At        time.Time `json:"at"`
	Payload   any       `json:"payload,omitempty"`
}

// QueryPayload accompanies query_processing events.
type QueryPayload struct {
	Query string `json:"query"`
	Index int    `json:"index"`
	Total int    `json:"total"`
}

// ProgressPayload accompanies discovery_progress events.
type ProgressPayload struct {
	QueriesProcessed    int       `json:"queries_processed"`
	TotalQueries        int       `json:"total_queries"`
	NewSitesFound       int       `json:"new_sites_found"`
	DuplicatesFiltered  int       `json:"duplicates_filtered"`
	CurrentQuery        string    `json:"current_query,omitempty"`
	EstimatedCompletion time.Time `json:"estimated_completion,omitzero"`
}

// ErrorPayload accompanies provider_error and discovery_error events.
type ErrorPayload struct {
	Query   string `json:"query,omitempty"`
	Message string `json:"message"`
}
