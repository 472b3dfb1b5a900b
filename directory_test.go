package trtc_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metropet.dev/trtc"
	"metropet.dev/trtc/fuzzy"
	"metropet.dev/trtc/model"
	"metropet.dev/trtc/normalize"
	"metropet.dev/trtc/testutil"
)

type stubMatcher struct {
	match fuzzy.Match
	found bool
	calls []string
}

func (m *stubMatcher) FindBestMatch(query string) (fuzzy.Match, bool) {
	m.calls = append(m.calls, query)
	return m.match, m.found
}

func smallDirectory(t *testing.T, opts ...trtc.DirectoryOption) *trtc.Directory {
	d, err := trtc.BuildDirectory(
		testutil.SmallNetwork().Routes,
		map[string]string{"北車": "台北車站"},
		opts...,
	)
	require.NoError(t, err)
	return d
}

func TestDirectoryAliasResolvesLikeOfficialName(t *testing.T) {
	d, err := trtc.BuildDirectory(
		[]model.Route{
			testutil.Route("X-1", "X1", "Central Station", "X2", "Harbour"),
		},
		map[string]string{"NorthStation": "Central Station"},
	)
	require.NoError(t, err)

	assert.Equal(t, trtc.Resolved{IDs: []string{"X1"}}, d.ResolveIDs("NorthStation"))
	assert.Equal(t, d.ResolveIDs("Central Station"), d.ResolveIDs("NorthStation"))
	assert.Equal(t, d.ResolveIDs("central"), d.ResolveIDs("  CENTRAL station "))
}

func TestDirectoryResolveExact(t *testing.T) {
	d := smallDirectory(t)

	for _, tc := range []struct {
		query string
		ids   []string
	}{
		{"台北車站", []string{"BL12", "R10"}},
		{"臺北車站", []string{"BL12", "R10"}},
		{"台北車", []string{"BL12", "R10"}},
		{"北車", []string{"BL12", "R10"}},
		{"台北車站（Taipei Main）", []string{"BL12", "R10"}},
		{"中山", []string{"G14", "R11"}},
		{" 西門 ", []string{"BL11"}},
	} {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, trtc.Resolved{IDs: tc.ids}, d.ResolveIDs(tc.query))
		})
	}
}

func TestDirectoryResolveReturnsCopies(t *testing.T) {
	d := smallDirectory(t)

	res := d.ResolveIDs("台北車站").(trtc.Resolved)
	res.IDs[0] = "mutated"

	assert.Equal(t, trtc.Resolved{IDs: []string{"BL12", "R10"}}, d.ResolveIDs("台北車站"))
}

func TestDirectoryResolveEmpty(t *testing.T) {
	m := &stubMatcher{match: fuzzy.Match{Name: "西門", Score: 1}, found: true}
	d := smallDirectory(t, trtc.WithFuzzyMatcher(m))

	assert.Equal(t, trtc.NotFound{Query: ""}, d.ResolveIDs(""))
	assert.Equal(t, trtc.NotFound{Query: "   "}, d.ResolveIDs("   "))
	assert.Equal(t, trtc.NotFound{Query: "站"}, d.ResolveIDs("站"))
	assert.Empty(t, m.calls)
}

func TestDirectoryFuzzyThresholds(t *testing.T) {
	for _, tc := range []struct {
		name     string
		score    float64
		expected trtc.Resolution
	}{
		{"above high", 0.9, trtc.Resolved{IDs: []string{"BL12", "R10"}}},
		{"at high", 0.7, trtc.Resolved{IDs: []string{"BL12", "R10"}}},
		{"between", 0.55, trtc.Suggested{Name: "台北車站", Query: "台北站前", Score: 0.55}},
		{"at low", 0.4, trtc.Suggested{Name: "台北車站", Query: "台北站前", Score: 0.4}},
		{"below low", 0.39, trtc.NotFound{Query: "台北站前"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := &stubMatcher{match: fuzzy.Match{Name: "台北車", Score: tc.score}, found: true}
			d := smallDirectory(t, trtc.WithFuzzyMatcher(m))

			assert.Equal(t, tc.expected, d.ResolveIDs("台北站前"))
			assert.Equal(t, []string{"台北站前"}, m.calls)
		})
	}
}

func TestDirectoryFuzzyNoMatch(t *testing.T) {
	d := smallDirectory(t, trtc.WithFuzzyMatcher(&stubMatcher{}))
	assert.Equal(t, trtc.NotFound{Query: "nowhere"}, d.ResolveIDs("nowhere"))

	// Matcher pointing at a name the index doesn't know.
	d = smallDirectory(t, trtc.WithFuzzyMatcher(&stubMatcher{
		match: fuzzy.Match{Name: "ghost", Score: 1},
		found: true,
	}))
	assert.Equal(t, trtc.NotFound{Query: "ghosts"}, d.ResolveIDs("ghosts"))

	// No matcher at all.
	d = smallDirectory(t)
	assert.Equal(t, trtc.NotFound{Query: "台北車占"}, d.ResolveIDs("台北車占"))
}

func TestDirectoryDefaultFuzzyMatcher(t *testing.T) {
	d := smallDirectory(t, trtc.WithDefaultFuzzyMatcher(0))

	assert.Equal(t, trtc.Resolved{IDs: []string{"BL12", "R10"}}, d.ResolveIDs("台北車占"))

	res, ok := d.ResolveIDs("西門町").(trtc.Suggested)
	require.True(t, ok)
	assert.Equal(t, "西門", res.Name)
	assert.Equal(t, "西門町", res.Query)
	assert.InDelta(t, 2.0/3.0, res.Score, 1e-9)

	assert.Equal(t, trtc.NotFound{Query: "xyzzy"}, d.ResolveIDs("xyzzy"))
}

func TestDirectoryFuzzyMatcherSharesNormalizer(t *testing.T) {
	// Without substitutions 臺 is kept, on both the index and the query
	d, err := trtc.BuildDirectory(
		[]model.Route{testutil.Route("R-1", "R09", "臺大醫院", "R10", "台北車站")},
		nil,
		trtc.WithNormalizer(normalize.New(map[string]string{}, nil)),
		trtc.WithDefaultFuzzyMatcher(0),
	)
	require.NoError(t, err)

	assert.Equal(t, trtc.Resolved{IDs: []string{"R09"}}, d.ResolveIDs("臺大醫"))

	res, ok := d.ResolveIDs("台大醫").(trtc.Suggested)
	require.True(t, ok)
	assert.Equal(t, "臺大醫院", res.Name)
	assert.InDelta(t, 0.5, res.Score, 1e-9)
}

func TestDirectoryLookup(t *testing.T) {
	m := &stubMatcher{match: fuzzy.Match{Name: "西門", Score: 0.5}, found: true}
	d := smallDirectory(t, trtc.WithFuzzyMatcher(m))

	ids, err := d.Lookup(trtc.SideStart, "北車")
	require.NoError(t, err)
	assert.Equal(t, []string{"BL12", "R10"}, ids)

	_, err = d.Lookup(trtc.SideEnd, "西門町")
	var suggestion *trtc.SuggestionError
	require.True(t, errors.As(err, &suggestion))
	assert.Equal(t, "西門", suggestion.Suggested.Name)
	assert.False(t, errors.Is(err, trtc.ErrStationNotFound))

	m.found = false
	_, err = d.Lookup(trtc.SideEnd, "西門町")
	var notFound *trtc.StationNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, trtc.SideEnd, notFound.Side)
	assert.Equal(t, "西門町", notFound.Name)
	assert.True(t, errors.Is(err, trtc.ErrStationNotFound))
}

func TestDirectoryNames(t *testing.T) {
	d, err := trtc.BuildDirectory(
		[]model.Route{
			testutil.Route("R-1", "R09", "臺大醫院", "R10", "台北車站"),
			testutil.Route("R-2", "R10", "台北車站", "R09", "臺大醫院"),
		},
		nil,
	)
	require.NoError(t, err)

	assert.Equal(t, "台大醫院", d.OfficialName("R09"))
	assert.Equal(t, "unknown", d.OfficialName("unknown"))
	assert.Equal(t, "台北車站", d.DisplayName("台北車"))
	assert.Equal(t, "nowhere", d.DisplayName("Nowhere Station"))
	assert.Equal(t, []string{"R09", "R10"}, d.StationIDs())
	assert.Equal(t, []string{"台北車", "台大醫院"}, d.Names())
}

func TestDirectoryTerminalStations(t *testing.T) {
	d := smallDirectory(t)

	assert.Equal(t, []string{"善導寺", "龍山寺"}, d.TerminalStations("西門"))
	assert.Equal(t, []string{"善導寺"}, d.TerminalStations("龍山寺"))
	assert.ElementsMatch(t, []string{"善導寺", "龍山寺", "台大醫院", "雙連"}, d.TerminalStations("北車"))
	assert.ElementsMatch(t, []string{"台大醫院", "雙連", "北門", "松江南京"}, d.TerminalStations("中山"))
	assert.Nil(t, d.TerminalStations("nowhere"))
}

func TestDirectoryDataLoadErrors(t *testing.T) {
	routes := testutil.SmallNetwork().Routes

	for _, tc := range []struct {
		name    string
		routes  []model.Route
		aliases map[string]string
		opts    []trtc.DirectoryOption
	}{
		{name: "no routes", routes: nil},
		{
			name:   "no named stations",
			routes: []model.Route{{ID: "X-1", LineCode: "X", Stations: []model.Station{{ID: "X1"}}}},
		},
		{name: "unknown alias target", routes: routes, aliases: map[string]string{"城中": "城中市場"}},
		{name: "alias collides", routes: routes, aliases: map[string]string{"西門": "台北車站"}},
		{name: "alias normalizes to nothing", routes: routes, aliases: map[string]string{"站": "台北車站"}},
		{
			name:   "inverted thresholds",
			routes: routes,
			opts:   []trtc.DirectoryOption{trtc.WithThresholds(0.3, 0.6)},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := trtc.BuildDirectory(tc.routes, tc.aliases, tc.opts...)
			assert.True(t, errors.Is(err, trtc.ErrDataLoad), "got %v", err)
		})
	}
}

func TestDirectoryAliases(t *testing.T) {
	routes := testutil.SmallNetwork().Routes

	// Lenient seeding skips unknown targets and keeps the rest.
	d, err := trtc.BuildDirectory(
		routes,
		map[string]string{"城中": "城中市場", "北車": "台北車站"},
		trtc.WithLenientAliases(),
	)
	require.NoError(t, err)
	assert.Equal(t, trtc.NotFound{Query: "城中"}, d.ResolveIDs("城中"))
	assert.Equal(t, trtc.Resolved{IDs: []string{"BL12", "R10"}}, d.ResolveIDs("北車"))

	// An alias equal to its station's own name is harmless.
	_, err = trtc.BuildDirectory(routes, map[string]string{"西門": "西門"})
	require.NoError(t, err)
}

func TestDirectoryIndexRoundTrip(t *testing.T) {
	d := smallDirectory(t)

	buf := &bytes.Buffer{}
	require.NoError(t, d.SaveIndex(buf))
	assert.Contains(t, buf.String(), `"北車"`)

	index, err := trtc.LoadIndex(buf)
	require.NoError(t, err)
	assert.Equal(t, d.Index(), index)

	// Loaded index brings the aliases along.
	loaded, err := trtc.BuildDirectory(testutil.SmallNetwork().Routes, nil, trtc.WithIndex(index))
	require.NoError(t, err)
	for _, name := range []string{"北車", "台北車站", "中山", "西門"} {
		assert.Equal(t, d.ResolveIDs(name), loaded.ResolveIDs(name), name)
	}

	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, d.WriteIndexFile(path))
	fromFile, err := trtc.ReadIndexFile(path)
	require.NoError(t, err)
	assert.Equal(t, index, fromFile)
}

func TestLoadIndex(t *testing.T) {
	index, err := trtc.LoadIndex(strings.NewReader(`{"a": ["B", "A", "B", ""]}`))
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"a": {"A", "B"}}, index)

	for _, bad := range []string{
		`{"": ["A"]}`,
		`{"a": []}`,
		`{"a": [""]}`,
		`["a"]`,
		`not json`,
	} {
		_, err := trtc.LoadIndex(strings.NewReader(bad))
		assert.Error(t, err, bad)
	}
}
