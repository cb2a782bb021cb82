package risk

import (
	"testing"
	"time"

	"github.com/riclipi/brandguard/engine/domain"
)

func testScorer() *Scorer {
	s := New(Opts{})
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func acme() domain.BrandProfile {
	return domain.BrandProfile{ID: "bp1", Name: "Acme", Keywords: []string{"photos"}}
}

func TestAssessAdditiveSignals(t *testing.T) {
	s := testScorer()
	out := s.Assess(acme(), domain.SearchResult{
		Title:    "Acme leaked",
		URL:      "https://acme-leaks.to/x",
		Provider: "serper",
	}, 0)

	// brand in text 30, keyword "leaked" 10, brand in domain 25,
	// domain marker "leak" 20.
	if out.RiskScore != 85 {
		t.Fatalf("expected score 85, got %d (%v)", out.RiskScore, out.MatchingPatterns)
	}
	if out.Confidence != 0.85 {
		t.Fatalf("confidence must equal score/100, got %v", out.Confidence)
	}
	if out.Domain != "acme-leaks.to" || out.URL != "acme-leaks.to/x" {
		t.Fatalf("result should carry normalized url and domain: %+v", out)
	}
	if out.DiscoveryMethod != "search:serper" {
		t.Fatalf("unexpected discovery method %q", out.DiscoveryMethod)
	}
	if out.ID == "" || out.DetectedAt.IsZero() {
		t.Fatal("result must carry an id and detection time")
	}
}

func TestAssessClampsAtHundred(t *testing.T) {
	s := testScorer()
	out := s.Assess(acme(), domain.SearchResult{
		Title: "Acme leaked nude naked sex porn nsfw onlyfans premium exclusive",
		URL:   "https://acme-leaks.to/leaked/all",
	}, 1)

	if out.RiskScore != 100 {
		t.Fatalf("score must clamp to 100, got %d", out.RiskScore)
	}
	if out.Confidence != 1.0 {
		t.Fatalf("confidence must clamp with the score, got %v", out.Confidence)
	}
}

func TestAssessNeutralHitScoresZero(t *testing.T) {
	s := testScorer()
	out := s.Assess(acme(), domain.SearchResult{
		Title: "Weather report",
		URL:   "https://example.org/news",
	}, 0)

	if out.RiskScore != 0 || out.Confidence != 0 {
		t.Fatalf("neutral hit should score zero, got %d", out.RiskScore)
	}
	if out.Platform != domain.PlatformUnknown || out.Category != domain.CategoryUnknown {
		t.Fatalf("unmatched hit should classify unknown, got %s/%s", out.Platform, out.Category)
	}
}

func TestAssessHistoricalSignalScaled(t *testing.T) {
	s := testScorer()
	base := s.Assess(acme(), domain.SearchResult{URL: "https://example.org/a"}, 0)
	half := s.Assess(acme(), domain.SearchResult{URL: "https://example.org/a"}, 0.5)
	full := s.Assess(acme(), domain.SearchResult{URL: "https://example.org/a"}, 1)

	if half.RiskScore-base.RiskScore != 10 {
		t.Fatalf("historical 0.5 should add 10, got %d", half.RiskScore-base.RiskScore)
	}
	if full.RiskScore-base.RiskScore != 20 {
		t.Fatalf("historical 1.0 should add 20, got %d", full.RiskScore-base.RiskScore)
	}
}

func TestAssessPathMarkers(t *testing.T) {
	s := testScorer()
	strong := s.Assess(acme(), domain.SearchResult{URL: "https://example.net/leaked/acme"}, 0)
	weak := s.Assess(acme(), domain.SearchResult{URL: "https://example.net/download/acme"}, 0)

	if strong.RiskScore != 15 {
		t.Fatalf("strong path marker should add 15, got %d", strong.RiskScore)
	}
	if weak.RiskScore != 10 {
		t.Fatalf("weak path marker should add 10, got %d", weak.RiskScore)
	}
}

func TestAssessCollectsProfileKeywords(t *testing.T) {
	s := testScorer()
	out := s.Assess(acme(), domain.SearchResult{
		Title: "free photos of acme",
		URL:   "https://example.org/x",
	}, 0)

	found := false
	for _, kw := range out.Keywords {
		if kw == "photos" {
			found = true
		}
	}
	if !found {
		t.Fatalf("profile keyword should be collected, got %v", out.Keywords)
	}
}

func TestAssessCustomWeights(t *testing.T) {
	s := New(Opts{Weights: Weights{BrandInText: 50}})
	out := s.Assess(acme(), domain.SearchResult{
		Title: "Acme",
		URL:   "https://example.org/x",
	}, 0)
	if out.RiskScore != 50 {
		t.Fatalf("custom weight not applied, got %d", out.RiskScore)
	}
}

func TestDetectPlatformTable(t *testing.T) {
	cases := []struct {
		host, text string
		platform   domain.Platform
		category   domain.Category
	}{
		{"t.me", "", domain.PlatformTelegram, domain.CategoryMessaging},
		{"cdn.discord.com", "", domain.PlatformDiscord, domain.CategoryMessaging},
		{"old.reddit.com", "", domain.PlatformReddit, domain.CategorySocialMedia},
		{"x.com", "", domain.PlatformTwitter, domain.CategorySocialMedia},
		{"", "leaked onlyfans content", domain.PlatformOnlyFans, domain.CategoryAdultCreator},
		{"mega.nz", "", domain.PlatformFileSharing, domain.CategoryFileSharing},
		{"pastebin.com", "", domain.PlatformPaste, domain.CategoryFileSharing},
		{"tracker.example", "magnet: link inside", domain.PlatformTorrent, domain.CategoryFileSharing},
		{"acmeboard.net", "forum thread", domain.PlatformForum, domain.CategoryForum},
		{"example.org", "nothing special", domain.PlatformUnknown, domain.CategoryUnknown},
	}
	for _, tc := range cases {
		platform, category := DetectPlatform(tc.host, tc.text)
		if platform != tc.platform || category != tc.category {
			t.Errorf("DetectPlatform(%q, %q) = %s/%s, want %s/%s",
				tc.host, tc.text, platform, category, tc.platform, tc.category)
		}
	}
}

func TestHistoricalSimilarity(t *testing.T) {
	sample := []string{"https://leaks-hub.to/acme", "https://mirror-zone.cc/acme"}
	if sim := HistoricalSimilarity("https://leaks-hub.to/acme", sample); sim != 1.0 {
		t.Fatalf("identical url should score 1.0, got %v", sim)
	}
	if sim := HistoricalSimilarity("https://totally-unrelated.example/zzz", nil); sim != 0 {
		t.Fatalf("empty sample should score 0, got %v", sim)
	}
	near := HistoricalSimilarity("https://leaks-hub.to/acne", sample)
	if near <= 0.8 || near >= 1.0 {
		t.Fatalf("near miss should score high but below 1.0, got %v", near)
	}
}
