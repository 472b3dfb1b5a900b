// Package normalize turns station names into lookup keys.
//
// A normalized name is lowercased, trimmed, free of parenthesised
// annotations and of a trailing "station" suffix, with variant
// characters folded to one form. Official names, English names and
// colloquial aliases of the same station all meet on that key.
package normalize

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// Character substitutions applied by Normalize.
	DefaultSubstitutions = map[string]string{
		"臺": "台",
	}

	// Suffixes stripped from the end of names by Normalize.
	DefaultSuffixes = []string{"站", "station"}

	annotationRe = regexp.MustCompile(`[\(（].*?[\)）]`)
)

type Normalizer struct {
	Substitutions map[string]string
	Suffixes      []string

	replacer *strings.Replacer
}

// Creates a Normalizer. Nil arguments select the defaults.
func New(substitutions map[string]string, suffixes []string) *Normalizer {
	if substitutions == nil {
		substitutions = DefaultSubstitutions
	}
	if suffixes == nil {
		suffixes = DefaultSuffixes
	}

	keys := make([]string, 0, len(substitutions))
	for from := range substitutions {
		if from != "" {
			keys = append(keys, from)
		}
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, from := range keys {
		pairs = append(pairs, from, substitutions[from])
	}

	lowered := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			lowered = append(lowered, s)
		}
	}

	return &Normalizer{
		Substitutions: substitutions,
		Suffixes:      lowered,
		replacer:      strings.NewReplacer(pairs...),
	}
}

var defaultNormalizer = New(nil, nil)

// Short digest of the substitution and suffix tables. Keys produced by
// Normalizers with equal fingerprints are interchangeable.
func (n *Normalizer) Fingerprint() string {
	keys := make([]string, 0, len(n.Substitutions))
	for from := range n.Substitutions {
		keys = append(keys, from)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, from := range keys {
		fmt.Fprintf(h, "s%q%q", from, n.Substitutions[from])
	}
	for _, suffix := range n.Suffixes {
		fmt.Fprintf(h, "x%q", suffix)
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:8]
}

// Normalizes using the default substitution and suffix tables.
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}

// Applies only the character substitutions, leaving case, spacing
// and annotations alone. Used for display names.
func (n *Normalizer) Substitute(s string) string {
	if n.replacer == nil {
		return s
	}
	return n.replacer.Replace(s)
}

// Returns the lookup key for raw. Returns "" for blank input.
//
// Removing an annotation or a suffix can leave characters that fold
// further, such as a base letter now next to a combining mark, so
// passes repeat until the key is stable.
func (n *Normalizer) Normalize(raw string) string {
	s := raw
	for i := 0; i < maxPasses; i++ {
		next := n.pass(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

const maxPasses = 8

func (n *Normalizer) pass(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFKC.String(s)
	if n.replacer != nil {
		s = n.replacer.Replace(s)
	}
	s = strings.ToLower(s)
	s = annotationRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	for stripped := true; stripped; {
		stripped = false
		for _, suffix := range n.Suffixes {
			if strings.HasSuffix(s, suffix) {
				s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
				stripped = true
			}
		}
	}

	return s
}
