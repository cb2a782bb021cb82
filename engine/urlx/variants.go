package urlx

import "strings"

// DefaultVariantCap bounds the variant set per domain.
const DefaultVariantCap = 40

// defaultTLDs are the swap targets observed across infringing mirrors.
var defaultTLDs = []string{".com", ".org", ".net", ".to", ".cc", ".me", ".tv", ".io"}

// defaultSubdomains are common mirror/mobile prefixes.
var defaultSubdomains = []string{"m", "mobile", "app", "api", "en"}

// confusables maps characters to their visual or leetspeak substitutes,
// in both directions.
var confusables = map[rune][]rune{
	'o': {'0'},
	'0': {'o'},
	'a': {'@'},
	'@': {'a'},
	'e': {'3'},
	'3': {'e'},
	'i': {'1'},
	's': {'$'},
	'$': {'s'},
	'l': {'1'},
	'1': {'i', 'l'},
	'g': {'9'},
	'9': {'g'},
}

// VariantGenerator derives plausible alternate spellings of a domain:
// www toggling, TLD substitution, common subdomain prefixes, and
// single-character homoglyph swaps. Pure and deterministic.
type VariantGenerator struct {
	TLDs       []string
	Subdomains []string
	Cap        int
}

// NewVariantGenerator returns a generator with the default tables.
func NewVariantGenerator() *VariantGenerator {
	return &VariantGenerator{
		TLDs:       defaultTLDs,
		Subdomains: defaultSubdomains,
		Cap:        DefaultVariantCap,
	}
}

// DomainVariants returns the bounded variant set for a normalized domain.
// The input itself is never included.
func (g *VariantGenerator) DomainVariants(domain string) []string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil
	}

	seen := map[string]struct{}{domain: {}}
	var out []string
	add := func(v string) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		if len(out) < g.cap() {
			out = append(out, v)
		}
	}

	// www toggle
	if stripped, ok := strings.CutPrefix(domain, "www."); ok {
		add(stripped)
	} else {
		add("www." + domain)
	}

	// TLD swaps on the registrable domain, so multi-label suffixes
	// like co.uk are replaced whole.
	reg := RegistrableDomain(domain)
	if dot := strings.IndexByte(reg, '.'); dot > 0 {
		base := strings.TrimSuffix(domain, reg[dot:])
		for _, tld := range g.TLDs {
			add(base + tld)
		}
	}

	// common subdomain prefixes
	for _, sub := range g.Subdomains {
		add(sub + "." + domain)
	}

	// single-character homoglyph swaps, one substitution at a time
	runes := []rune(domain)
	for i, r := range runes {
		subs, ok := confusables[r]
		if !ok {
			continue
		}
		for _, sub := range subs {
			variant := make([]rune, len(runes))
			copy(variant, runes)
			variant[i] = sub
			add(string(variant))
		}
	}

	return out
}

func (g *VariantGenerator) cap() int {
	if g.Cap <= 0 {
		return DefaultVariantCap
	}
	return g.Cap
}
