// Package risk assigns a 0-100 risk score and a platform/category
// classification to each novel candidate from textual and structural
// signals plus a historical-similarity input.
package risk

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/riclipi/brandguard/engine/domain"
	"github.com/riclipi/brandguard/engine/urlx"
)

// suspiciousKeywords are scored per match against title and snippet.
var suspiciousKeywords = []string{
	"leaked", "nude", "naked", "sex", "porn", "nsfw",
	"onlyfans", "premium", "exclusive",
}

// suspiciousDomainMarkers score once if any appears in the domain.
var suspiciousDomainMarkers = []string{
	"leak", "dump", "mirror", "free", "pirate", "crack", "nulled",
}

// pathMarkers score once at the weight of the strongest match.
var pathMarkers = []struct {
	marker string
	weight int
}{
	{"/leaked", 15},
	{"/leaks", 15},
	{"/nude", 15},
	{"/download", 10},
	{"/free", 10},
	{"/mega", 10},
}

// Weights are the additive signal weights. Hand-tuned, kept
// configurable rather than treated as load-bearing constants.
type Weights struct {
	BrandInText       int
	SuspiciousKeyword int
	BrandInDomain     int
	SuspiciousDomain  int
	// HistoricalMax scales the 0-1 historical-similarity signal.
	HistoricalMax int
}

// DefaultWeights mirror the tuning the scorer shipped with.
var DefaultWeights = Weights{
	BrandInText:       30,
	SuspiciousKeyword: 10,
	BrandInDomain:     25,
	SuspiciousDomain:  20,
	HistoricalMax:     20,
}

// Scorer turns accepted search hits into scored discovery results.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// Opts configures a Scorer. Zero-valued weights fall back to defaults.
type Opts struct {
	Weights Weights
}

// New creates a Scorer.
func New(opts Opts) *Scorer {
	w := opts.Weights
	if w == (Weights{}) {
		w = DefaultWeights
	}
	return &Scorer{weights: w, now: time.Now}
}

// Assess scores one hit against the brand profile. historical is the
// 0-1 similarity of the hit's URL to past violations; pass 0 when no
// history is available.
func (s *Scorer) Assess(profile domain.BrandProfile, hit domain.SearchResult, historical float64) domain.DiscoveryResult {
	normalized := urlx.Normalize(hit.URL)
	host := urlx.DomainOf(normalized)
	text := strings.ToLower(hit.Title + " " + hit.Snippet)
	brand := strings.ToLower(profile.Name)

	var (
		score    int
		patterns []string
		keywords []string
	)

	if brand != "" && strings.Contains(text, brand) {
		score += s.weights.BrandInText
		patterns = append(patterns, "brand-in-text")
	}
	for _, kw := range suspiciousKeywords {
		if strings.Contains(text, kw) {
			score += s.weights.SuspiciousKeyword
			keywords = append(keywords, kw)
		}
	}
	if brand != "" && strings.Contains(strings.ToLower(host), collapse(brand)) {
		score += s.weights.BrandInDomain
		patterns = append(patterns, "brand-in-domain")
	}
	for _, m := range suspiciousDomainMarkers {
		if strings.Contains(host, m) {
			score += s.weights.SuspiciousDomain
			patterns = append(patterns, "suspicious-domain:"+m)
			break
		}
	}
	if historical > 0 {
		if historical > 1 {
			historical = 1
		}
		score += int(historical * float64(s.weights.HistoricalMax))
		patterns = append(patterns, "historical-similarity")
	}
	if w := pathMarkerWeight(normalized); w > 0 {
		score += w
		patterns = append(patterns, "path-marker")
	}
	for _, kw := range profile.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(text, kw) {
			keywords = append(keywords, kw)
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	platform, category := DetectPlatform(host, text)
	return domain.DiscoveryResult{
		ID:               uuid.NewString(),
		URL:              normalized,
		Domain:           host,
		Title:            hit.Title,
		Description:      hit.Snippet,
		Platform:         platform,
		Category:         category,
		RiskScore:        score,
		Confidence:       float64(score) / 100,
		DiscoveryMethod:  "search:" + hit.Provider,
		MatchingPatterns: patterns,
		Keywords:         keywords,
		DetectedAt:       s.now().UTC(),
	}
}

// HistoricalSimilarity returns the best similarity of url to any URL in
// sample, the 0-1 input to Assess.
func HistoricalSimilarity(url string, sample []string) float64 {
	normalized := urlx.Normalize(url)
	best := 0.0
	for _, past := range sample {
		if sim := urlx.Similarity(normalized, urlx.Normalize(past)); sim > best {
			best = sim
		}
	}
	return best
}

// pathMarkerWeight returns the strongest matching path-marker weight.
func pathMarkerWeight(normalized string) int {
	slash := strings.IndexByte(normalized, '/')
	if slash < 0 {
		return 0
	}
	path := normalized[slash:]
	best := 0
	for _, pm := range pathMarkers {
		if strings.Contains(path, pm.marker) && pm.weight > best {
			best = pm.weight
		}
	}
	return best
}

// collapse strips spaces so "Acme Studios" still matches acmestudios.com.
func collapse(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
