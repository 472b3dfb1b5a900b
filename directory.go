package trtc

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"metropet.dev/trtc/fuzzy"
	"metropet.dev/trtc/model"
	"metropet.dev/trtc/normalize"
)

const (
	DefaultHighThreshold = 0.7
	DefaultLowThreshold  = 0.4
)

// Colloquial station names, used when a dataset carries no aliases of
// its own.
var DefaultAliases = map[string]string{
	"北車":   "台北車站",
	"台車":   "台北車站",
	"101":  "台北101/世貿",
	"西門町":  "西門",
	"淡水老街": "淡水",
	"小巨蛋":  "台北小巨蛋",
	"市府":   "市政府",
}

// Finds the known name most similar to a query.
type FuzzyMatcher interface {
	FindBestMatch(query string) (fuzzy.Match, bool)
}

// Resolves station names to station IDs and back.
//
// Lookups go through a name index keyed on normalized names. Every
// station registers its official and English names; aliases share the
// ID set of the official name they point at. A Directory is immutable
// once built.
type Directory struct {
	index      map[string][]string
	names      map[string]string
	termini    map[string][]string
	normalizer *normalize.Normalizer
	matcher    FuzzyMatcher
	high       float64
	low        float64
}

type directoryOptions struct {
	normalizer     *normalize.Normalizer
	matcher        FuzzyMatcher
	fuzzyCacheSize int
	defaultFuzzy   bool
	high           float64
	low            float64
	index          map[string][]string
	lenientAliases bool
}

type DirectoryOption func(*directoryOptions)

func WithNormalizer(n *normalize.Normalizer) DirectoryOption {
	return func(o *directoryOptions) { o.normalizer = n }
}

func WithFuzzyMatcher(m FuzzyMatcher) DirectoryOption {
	return func(o *directoryOptions) { o.matcher = m }
}

// Matches unknown names against the directory's own names, using
// Levenshtein similarity.
func WithDefaultFuzzyMatcher(cacheSize int) DirectoryOption {
	return func(o *directoryOptions) {
		o.defaultFuzzy = true
		o.fuzzyCacheSize = cacheSize
	}
}

// Fuzzy matches scoring at least high resolve directly. Matches
// scoring at least low are suggested.
func WithThresholds(high, low float64) DirectoryOption {
	return func(o *directoryOptions) {
		o.high = high
		o.low = low
	}
}

// Uses a previously saved name index instead of building one. Aliases
// are then ignored, as the index already holds them.
func WithIndex(index map[string][]string) DirectoryOption {
	return func(o *directoryOptions) { o.index = index }
}

// Skips aliases whose official name isn't in the data, instead of
// failing.
func WithLenientAliases() DirectoryOption {
	return func(o *directoryOptions) { o.lenientAliases = true }
}

// Builds a Directory from routes and an alias table mapping alias to
// official station name.
func BuildDirectory(routes []model.Route, aliases map[string]string, opts ...DirectoryOption) (*Directory, error) {
	o := directoryOptions{
		high: DefaultHighThreshold,
		low:  DefaultLowThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.normalizer == nil {
		o.normalizer = normalize.New(nil, nil)
	}
	if o.low > o.high {
		return nil, fmt.Errorf("%w: low threshold %.2f above high threshold %.2f", ErrDataLoad, o.low, o.high)
	}

	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: no routes", ErrDataLoad)
	}

	d := &Directory{
		names:      map[string]string{},
		termini:    map[string][]string{},
		normalizer: o.normalizer,
		high:       o.high,
		low:        o.low,
	}

	sets := map[string]map[string]bool{}
	register := func(name, id string) {
		key := d.normalizer.Normalize(name)
		if key == "" {
			return
		}
		if sets[key] == nil {
			sets[key] = map[string]bool{}
		}
		sets[key][id] = true
	}

	terminiSets := map[string]map[string]bool{}
	for _, r := range routes {
		valid := []string{}
		for _, s := range r.Stations {
			if s.ID == "" || s.Name == "" {
				continue
			}
			valid = append(valid, s.ID)
			if _, found := d.names[s.ID]; !found {
				d.names[s.ID] = d.normalizer.Substitute(s.Name)
			}
			register(s.Name, s.ID)
			if s.EnglishName != "" {
				register(s.EnglishName, s.ID)
			}
		}
		if len(valid) == 0 {
			continue
		}

		ends := []string{valid[0], valid[len(valid)-1]}
		for _, id := range valid {
			if terminiSets[id] == nil {
				terminiSets[id] = map[string]bool{}
			}
			for _, end := range ends {
				terminiSets[id][end] = true
			}
		}
	}

	if len(d.names) == 0 {
		return nil, fmt.Errorf("%w: routes have no named stations", ErrDataLoad)
	}

	for id, set := range terminiSets {
		d.termini[id] = sortedSet(set)
	}

	if o.index != nil {
		d.index = copyIndex(o.index)
	} else {
		d.index = map[string][]string{}
		for key, set := range sets {
			d.index[key] = sortedSet(set)
		}
		err := d.seedAliases(aliases, o.lenientAliases)
		if err != nil {
			return nil, err
		}
	}

	d.matcher = o.matcher
	if d.matcher == nil && o.defaultFuzzy {
		d.matcher = fuzzy.NewMatcher(d.Names(), o.fuzzyCacheSize, d.normalizer.Normalize)
	}

	return d, nil
}

func (d *Directory) seedAliases(aliases map[string]string, lenient bool) error {
	keys := make([]string, 0, len(aliases))
	for alias := range aliases {
		keys = append(keys, alias)
	}
	sort.Strings(keys)

	for _, alias := range keys {
		official := aliases[alias]

		ids := d.index[d.normalizer.Normalize(official)]
		if len(ids) == 0 {
			if lenient {
				log.Printf("skipping alias %q: unknown station %q", alias, official)
				continue
			}
			return fmt.Errorf("%w: alias %q points at unknown station %q", ErrDataLoad, alias, official)
		}

		key := d.normalizer.Normalize(alias)
		if key == "" {
			return fmt.Errorf("%w: alias %q normalizes to nothing", ErrDataLoad, alias)
		}

		if existing, found := d.index[key]; found {
			if !equalIDs(existing, ids) {
				return fmt.Errorf(
					"%w: alias %q of %q collides with another station",
					ErrDataLoad, alias, official,
				)
			}
			continue
		}

		d.index[key] = append([]string{}, ids...)
	}

	return nil
}

// Resolves a free-text name: exact index hits first, then fuzzy
// matches above the configured thresholds.
func (d *Directory) ResolveIDs(raw string) Resolution {
	query := d.normalizer.Normalize(raw)
	if query == "" {
		return NotFound{Query: raw}
	}

	if ids := d.index[query]; len(ids) > 0 {
		return Resolved{IDs: append([]string{}, ids...)}
	}

	if d.matcher == nil {
		return NotFound{Query: raw}
	}

	match, found := d.matcher.FindBestMatch(query)
	if !found {
		return NotFound{Query: raw}
	}

	key := d.normalizer.Normalize(match.Name)
	ids := d.index[key]
	if len(ids) == 0 {
		return NotFound{Query: raw}
	}

	switch {
	case match.Score >= d.high:
		return Resolved{IDs: append([]string{}, ids...)}
	case match.Score >= d.low:
		return Suggested{
			Name:  d.DisplayName(key),
			Query: raw,
			Score: match.Score,
		}
	}

	return NotFound{Query: raw}
}

// Resolves a name to IDs, turning anything short of a resolution into
// an error: *SuggestionError or *StationNotFoundError.
func (d *Directory) Lookup(side Side, raw string) ([]string, error) {
	switch res := d.ResolveIDs(raw).(type) {
	case Resolved:
		return res.IDs, nil
	case Suggested:
		return nil, &SuggestionError{Suggested: res}
	}
	return nil, &StationNotFoundError{Side: side, Name: raw}
}

// Resolves a name by exact index lookup only.
func (d *Directory) ExactIDs(raw string) []string {
	ids := d.index[d.normalizer.Normalize(raw)]
	if len(ids) == 0 {
		return nil
	}
	return append([]string{}, ids...)
}

// The official display name of a station ID. Unknown IDs are returned
// as is.
func (d *Directory) OfficialName(id string) string {
	if name, found := d.names[id]; found {
		return name
	}
	return id
}

// The official display name of whatever raw resolves to exactly,
// falling back to the normalized form of raw.
func (d *Directory) DisplayName(raw string) string {
	key := d.normalizer.Normalize(raw)
	ids := d.index[key]
	if len(ids) > 0 {
		return d.OfficialName(ids[0])
	}
	return key
}

// Normalized names of the termini of every route passing through the
// named station, excluding the station itself. Nil if the name doesn't
// resolve exactly.
func (d *Directory) TerminalStations(name string) []string {
	ids := d.ExactIDs(name)
	if ids == nil {
		return nil
	}
	return d.TerminalStationsForIDs(ids)
}

// Like TerminalStations, for an already resolved set of IDs.
func (d *Directory) TerminalStationsForIDs(ids []string) []string {
	own := map[string]bool{}
	for _, id := range ids {
		own[d.normalizer.Normalize(d.OfficialName(id))] = true
	}

	set := map[string]bool{}
	for _, id := range ids {
		for _, t := range d.termini[id] {
			key := d.normalizer.Normalize(d.OfficialName(t))
			if !own[key] {
				set[key] = true
			}
		}
	}

	return sortedSet(set)
}

// All keys of the name index, sorted.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.index))
	for key := range d.index {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

// All station IDs, sorted.
func (d *Directory) StationIDs() []string {
	ids := make([]string, 0, len(d.names))
	for id := range d.names {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// A copy of the name index.
func (d *Directory) Index() map[string][]string {
	return copyIndex(d.index)
}

// Writes the name index as a JSON object of normalized name to sorted
// station IDs.
func (d *Directory) SaveIndex(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d.index); err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	return nil
}

// Reads a name index written by SaveIndex. ID lists are sorted and
// deduplicated; empty keys and lists are rejected.
func LoadIndex(r io.Reader) (map[string][]string, error) {
	raw := map[string][]string{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}

	index := map[string][]string{}
	for key, ids := range raw {
		if key == "" {
			return nil, fmt.Errorf("index has empty name")
		}
		set := map[string]bool{}
		for _, id := range ids {
			if id != "" {
				set[id] = true
			}
		}
		if len(set) == 0 {
			return nil, fmt.Errorf("index has no IDs for %q", key)
		}
		index[key] = sortedSet(set)
	}

	return index, nil
}

// Writes the name index to path, replacing any existing file
// atomically.
func (d *Directory) WriteIndexFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := d.SaveIndex(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}

	return nil
}

func ReadIndexFile(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadIndex(f)
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func copyIndex(index map[string][]string) map[string][]string {
	out := make(map[string][]string, len(index))
	for k, v := range index {
		out[k] = append([]string{}, v...)
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
