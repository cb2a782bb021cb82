// Package domain defines the core types, events, and validation for the
// brand-protection discovery pipeline. It acts as the validation gate at
// pipeline entry points.
package domain

import "time"

// BrandProfile is the read-only input to a discovery session.
type BrandProfile struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Variations []string `json:"variations,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
}

// Priority orders search queries within a session.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Rank returns the sort rank of a priority; lower runs first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// SearchQuery is a planned query. It is a value object: created by the
// planner and never mutated afterwards.
type SearchQuery struct {
	Terms           []string `json:"terms"`
	ExcludeTerms    []string `json:"exclude_terms,omitempty"`
	SiteRestriction string   `json:"site_restriction,omitempty"`
	MaxResults      int      `json:"max_results"`
	Priority        Priority `json:"priority"`
}

// SearchResult is one raw hit from a provider. Ephemeral, never persisted.
type SearchResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Provider string `json:"provider"`
	Rank     int    `json:"rank"`
}

// KnownEntry is one previously seen URL, normalized, from the union of
// known sites and historical violations.
type KnownEntry struct {
	NormalizedURL string `json:"normalized_url"`
	Domain        string `json:"domain"`
}

// DiscoveryResult is produced at most once per genuinely new URL and
// persisted as a new known-site record.
type DiscoveryResult struct {
	ID               string    `json:"id"`
	URL              string    `json:"url"`
	Domain           string    `json:"domain"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Platform         Platform  `json:"platform"`
	Category         Category  `json:"category"`
	RiskScore        int       `json:"risk_score"`
	Confidence       float64   `json:"confidence"`
	DiscoveryMethod  string    `json:"discovery_method"`
	MatchingPatterns []string  `json:"matching_patterns,omitempty"`
	Keywords         []string  `json:"keywords,omitempty"`
	DetectedAt       time.Time `json:"detected_at"`
}

// Platform identifies where flagged content is hosted.
type Platform string

const (
	PlatformTelegram    Platform = "telegram"
	PlatformDiscord     Platform = "discord"
	PlatformReddit      Platform = "reddit"
	PlatformTwitter     Platform = "twitter"
	PlatformOnlyFans    Platform = "onlyfans"
	PlatformFileSharing Platform = "file-sharing"
	PlatformForum       Platform = "forum"
	PlatformPaste       Platform = "paste"
	PlatformTorrent     Platform = "torrent"
	PlatformUnknown     Platform = "unknown"
)

// Category is the coarse content classification derived from the platform.
type Category string

const (
	CategoryMessaging    Category = "MESSAGING"
	CategorySocialMedia  Category = "SOCIAL_MEDIA"
	CategoryAdultCreator Category = "ADULT_CREATOR"
	CategoryFileSharing  Category = "FILE_SHARING"
	CategoryForum        Category = "FORUM"
	CategoryUnknown      Category = "UNKNOWN"
)

// SessionStatus is the lifecycle state of a discovery session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "RUNNING"
	StatusPaused    SessionStatus = "PAUSED"
	StatusCompleted SessionStatus = "COMPLETED"
	StatusError     SessionStatus = "ERROR"
)

// Terminal reports whether the status allows no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// DiscoverySession is the mutable progress record of one discovery run.
// Single writer (the session controller); read by progress pollers.
type DiscoverySession struct {
	ID                  string        `json:"id"`
	UserID              string        `json:"user_id"`
	BrandProfileID      string        `json:"brand_profile_id"`
	TotalQueries        int           `json:"total_queries"`
	QueriesProcessed    int           `json:"queries_processed"`
	NewSitesFound       int           `json:"new_sites_found"`
	DuplicatesFiltered  int           `json:"duplicates_filtered"`
	Status              SessionStatus `json:"status"`
	CurrentQuery        string        `json:"current_query,omitempty"`
	EstimatedCompletion time.Time     `json:"estimated_completion,omitzero"`
	LastError           string        `json:"last_error,omitempty"`
	StartedAt           time.Time     `json:"started_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}
