package dedup

import (
	"fmt"
	"strings"

	"github.com/riclipi/brandguard/engine/urlx"
)

// suspiciousKeywords flag URLs whose path or domain hints at infringing
// content. Secondary signal only; never used for deduplication.
var suspiciousKeywords = []string{
	"leaked", "leak", "nude", "nsfw", "porn", "onlyfans",
	"premium", "free", "download", "mega", "mirror",
}

// suspiciousTLDs are cheap or abuse-prone registries common in
// historical violations.
var suspiciousTLDs = []string{".to", ".cc", ".su", ".tk", ".ml", ".ga", ".cf", ".gq"}

// Suspicion is the result of the heuristic URL check.
type Suspicion struct {
	Suspicious bool
	Reasons    []string
}

// IsURLSuspicious flags a URL using fixed keyword and TLD lists.
func IsURLSuspicious(raw string) Suspicion {
	n := urlx.Normalize(raw)
	if n == "" {
		return Suspicion{}
	}

	var reasons []string
	for _, kw := range suspiciousKeywords {
		if strings.Contains(n, kw) {
			reasons = append(reasons, fmt.Sprintf("contains keyword %q", kw))
		}
	}
	dom := urlx.DomainOf(n)
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(dom, tld) {
			reasons = append(reasons, fmt.Sprintf("suspicious TLD %q", tld))
			break
		}
	}

	return Suspicion{Suspicious: len(reasons) > 0, Reasons: reasons}
}
