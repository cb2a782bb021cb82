package dedup

import (
	"log/slog"
	"strings"

	"github.com/riclipi/brandguard/engine/urlx"
)

// Kind is the classification bucket for one candidate URL.
type Kind int

const (
	KindNew Kind = iota
	KindDuplicate
	KindVariation
)

// Classification partitions a batch of candidates. Every input lands in
// exactly one bucket, in normalized form.
type Classification struct {
	New       []string
	Duplicate []string
	Variation []string
}

// FilterOpts tunes the duplicate/variation filter.
type FilterOpts struct {
	// SimilarityThreshold above which a candidate counts as a variation.
	SimilarityThreshold float64
	// FuzzySampleSize caps how many corpus entries the similarity scorer
	// compares against after exact and variant lookups miss.
	FuzzySampleSize int
	Logger          *slog.Logger
}

// Filter classifies candidate URLs against the known corpus. It never
// mutates the corpus; callers decide when to call Index.AddKnownURL.
type Filter struct {
	index     *Index
	gen       *urlx.VariantGenerator
	threshold float64
	sample    int
	log       *slog.Logger
}

// NewFilter creates a filter over the given index.
func NewFilter(index *Index, opts FilterOpts) *Filter {
	if opts.SimilarityThreshold <= 0 || opts.SimilarityThreshold > 1 {
		opts.SimilarityThreshold = urlx.DefaultSimilarityThreshold
	}
	if opts.FuzzySampleSize <= 0 {
		opts.FuzzySampleSize = DefaultRecentCap
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Filter{
		index:     index,
		gen:       urlx.NewVariantGenerator(),
		threshold: opts.SimilarityThreshold,
		sample:    opts.FuzzySampleSize,
		log:       log,
	}
}

// Classify partitions a batch of raw URLs into new, duplicate, and
// variation. Repeats within the batch count as duplicates after their
// first occurrence.
func (f *Filter) Classify(urls []string) Classification {
	var out Classification
	seen := make(map[string]struct{}, len(urls))

	for _, raw := range urls {
		n := urlx.Normalize(raw)
		if _, dup := seen[n]; dup {
			out.Duplicate = append(out.Duplicate, n)
			continue
		}
		seen[n] = struct{}{}

		switch f.classifyOne(n) {
		case KindDuplicate:
			out.Duplicate = append(out.Duplicate, n)
		case KindVariation:
			out.Variation = append(out.Variation, n)
		default:
			out.New = append(out.New, n)
		}
	}
	return out
}

// classifyOne runs the lookup ladder for a single normalized URL:
// exact → domain → variants → bounded fuzzy.
func (f *Filter) classifyOne(n string) Kind {
	if n == "" {
		return KindNew
	}
	if f.index.ContainsURL(n) {
		return KindDuplicate
	}

	dom := urlx.DomainOf(n)
	if f.index.ContainsDomain(dom) {
		return KindDuplicate
	}

	// Variant membership: does a known domain look like a typosquat or
	// mirror of this candidate?
	for _, v := range f.gen.DomainVariants(dom) {
		if f.index.ContainsDomain(v) {
			return KindVariation
		}
	}
	if path, ok := strings.CutPrefix(n, dom); ok && path != "" {
		for _, v := range f.gen.DomainVariants(dom) {
			if f.index.ContainsURL(v + path) {
				return KindVariation
			}
		}
	}

	// Fuzzy fallback over a bounded recent sample.
	for _, known := range f.index.RecentSample(f.sample) {
		if urlx.Similarity(n, known) >= f.threshold {
			return KindVariation
		}
	}
	return KindNew
}
