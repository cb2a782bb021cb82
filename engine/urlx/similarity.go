package urlx

import (
	"unicode/utf8"

	levenshtein "github.com/ka-weihe/fast-levenshtein"
)

// DefaultSimilarityThreshold is the hand-tuned cutoff above which two
// URLs are treated as variations of each other. It is carried as a
// configurable parameter, not an invariant.
const DefaultSimilarityThreshold = 0.85

// Similarity returns 1 - editDistance(a,b)/max(len(a),len(b)), in [0,1].
// Symmetric, and Similarity(a,a) == 1.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.Distance(a, b)
	return 1 - float64(d)/float64(longest)
}
