package slot

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// FuzzyThreshold is the minimum similarity ratio for the fuzzy tier. Tuned so
// typos ("primarry") still resolve while distinct valid values ("primary" vs
// "secondary") never cross-match each other.
const FuzzyThreshold = 0.78

// Resolver maps free-form user text onto a slot's canonical values. Three
// tiers are attempted in order, short-circuiting on the first hit:
// exact alias match, fuzzy alias match, trigger-phrase substring match.
// A miss is a normal outcome, not an error; the caller decides what happens
// next.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Result carries the outcome of a resolution attempt.
type Result struct {
	Resolved bool
	Value    string // canonical value when Resolved

	// Tier that produced the match: "exact", "fuzzy" or "phrase".
	Tier string
}

var unresolved = Result{}

// Resolve attempts to interpret text as a value for the given spec.
func (r *Resolver) Resolve(text string, spec *Spec) Result {
	normalized := Normalize(text)
	if normalized == "" {
		return unresolved
	}

	if value, ok := r.exactMatch(normalized, spec); ok {
		return Result{Resolved: true, Value: value, Tier: "exact"}
	}
	if value, ok := r.fuzzyMatch(normalized, spec); ok {
		return Result{Resolved: true, Value: value, Tier: "fuzzy"}
	}
	if value, ok := r.phraseMatch(normalized, spec); ok {
		return Result{Resolved: true, Value: value, Tier: "phrase"}
	}
	return unresolved
}

// Normalize lowercases and trims text for matching. Matching stays otherwise
// exact; no punctuation stripping so aliases keep full control.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func (r *Resolver) exactMatch(normalized string, spec *Spec) (string, bool) {
	for _, opt := range spec.Options {
		if normalized == Normalize(opt.Canonical) {
			return opt.Canonical, true
		}
		for _, alias := range opt.Aliases {
			if normalized == Normalize(alias) {
				return opt.Canonical, true
			}
		}
	}
	return "", false
}

type fuzzyCandidate struct {
	canonical string
	score     float64
}

func (r *Resolver) fuzzyMatch(normalized string, spec *Spec) (string, bool) {
	var candidates []fuzzyCandidate
	for _, opt := range spec.Options {
		best := Similarity(normalized, Normalize(opt.Canonical))
		for _, alias := range opt.Aliases {
			if s := Similarity(normalized, Normalize(alias)); s > best {
				best = s
			}
		}
		if best >= FuzzyThreshold {
			candidates = append(candidates, fuzzyCandidate{canonical: opt.Canonical, score: best})
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	// Highest score wins; equal scores break to the lexicographically first
	// canonical name so resolution stays deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].canonical < candidates[j].canonical
	})
	return candidates[0].canonical, true
}

func (r *Resolver) phraseMatch(normalized string, spec *Spec) (string, bool) {
	for _, opt := range spec.Options {
		for _, phrase := range opt.TriggerPhrases {
			if strings.Contains(normalized, Normalize(phrase)) {
				return opt.Canonical, true
			}
		}
	}
	return "", false
}

// Similarity is a normalized edit-distance ratio in [0, 1]: 1 means equal
// strings, 0 means nothing in common.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if lb := len([]rune(b)); lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// Closest returns the candidate most similar to text along with its score.
// Used for fuzzy suggestions on schema mismatches ("did you mean ...?").
func Closest(text string, candidates []string) (string, float64) {
	normalized := Normalize(text)
	best, bestScore := "", -1.0
	for _, c := range candidates {
		score := Similarity(normalized, Normalize(c))
		if score > bestScore || (score == bestScore && c < best) {
			best, bestScore = c, score
		}
	}
	return best, bestScore
}
