// Package fuzzy scores free-text station queries against the set of
// known station names.
package fuzzy

import (
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/bluele/gcache"

	"metropet.dev/trtc/normalize"
)

const DefaultCacheSize = 1024

// A candidate name and its similarity to the query, in [0, 1].
type Match struct {
	Name  string
	Score float64
}

// Matches queries against a fixed list of names using normalized
// Levenshtein similarity. Safe for concurrent use.
type Matcher struct {
	names     []string
	normalize func(string) string
	cache     gcache.Cache
}

// Names are expected to be normalized already, by the same function
// that normalizes queries. A nil normalizer selects normalize.Normalize.
func NewMatcher(names []string, cacheSize int, normalizer func(string) string) *Matcher {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if normalizer == nil {
		normalizer = normalize.Normalize
	}

	sorted := make([]string, 0, len(names))
	seen := map[string]bool{}
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	m := &Matcher{names: sorted, normalize: normalizer}
	m.cache = gcache.New(cacheSize).LRU().LoaderFunc(func(key interface{}) (interface{}, error) {
		match, found := m.best(key.(string))
		if !found {
			return nil, nil
		}
		return match, nil
	}).Build()

	return m
}

// Similarity of two strings: 1 - distance / max length, counting runes.
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Finds the most similar known name. Ties are broken by name order.
// Returns false when the query is empty or no names are known.
func (m *Matcher) FindBestMatch(query string) (Match, bool) {
	query = m.normalize(query)
	if query == "" {
		return Match{}, false
	}

	v, err := m.cache.Get(query)
	if err != nil || v == nil {
		return Match{}, false
	}
	match, ok := v.(Match)
	return match, ok
}

func (m *Matcher) best(query string) (Match, bool) {
	best := Match{Score: -1}
	for _, name := range m.names {
		score := Similarity(query, name)
		if score > best.Score {
			best = Match{Name: name, Score: score}
		}
	}
	if best.Score < 0 {
		return Match{}, false
	}
	return best, true
}
