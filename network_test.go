package trtc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metropet.dev/trtc"
	"metropet.dev/trtc/model"
	"metropet.dev/trtc/normalize"
	"metropet.dev/trtc/testutil"
)

func testNetworkFare(t *testing.T, backend string) {
	n := testutil.LoadNetwork(t, backend, testutil.SmallNetwork(), trtc.NetworkOptions{})

	fare, err := n.Fare("西門", "中山")
	require.NoError(t, err)
	assert.Equal(t, &model.Fare{
		OriginStationID:      "BL11",
		DestinationStationID: "R11",
		Adult:                20,
		Child:                8,
	}, fare)

	// Cheapest over both IDs of the transfer station.
	fare, err = n.Fare("北車", "西門")
	require.NoError(t, err)
	require.NotNil(t, fare)
	assert.Equal(t, "BL12", fare.OriginStationID)
	assert.Equal(t, 20, fare.Adult)

	fare, err = n.Fare("西門", "雙連")
	require.NoError(t, err)
	assert.Nil(t, fare)

	_, err = n.Fare("nowhere", "西門")
	var notFound *trtc.StationNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, trtc.SideStart, notFound.Side)
}

func testNetworkStationInfo(t *testing.T, backend string) {
	n := testutil.LoadNetwork(t, backend, testutil.SmallNetwork(), trtc.NetworkOptions{})

	exits, err := n.Exits("台北車站")
	require.NoError(t, err)
	assert.Equal(t, []model.Exit{
		{StationID: "BL12", ExitID: "M1", Description: "忠孝西路"},
		{StationID: "R10", ExitID: "M2", Description: "館前路"},
	}, exits)

	exits, err = n.Exits("雙連")
	require.NoError(t, err)
	assert.Empty(t, exits)

	facilities, err := n.Facilities("北車")
	require.NoError(t, err)
	assert.Equal(t, []model.Facility{
		{StationID: "BL12", Description: "廁所"},
		{StationID: "R10", Description: "電梯"},
	}, facilities)

	trains, err := n.FirstLastTrains("臺北車站")
	require.NoError(t, err)
	require.Equal(t, 3, len(trains))
	assert.Equal(t, "BL23", trains[0].DestinationStationID)
	assert.Equal(t, "R02", trains[1].DestinationStationID)
	assert.Equal(t, "R28", trains[2].DestinationStationID)
	assert.Equal(t, "00:20", trains[1].LastTrainTime)

	terminals, err := n.TerminalStations("西門")
	require.NoError(t, err)
	assert.Equal(t, []string{"善導寺", "龍山寺"}, terminals)

	_, err = n.Exits("nowhere")
	assert.True(t, errors.Is(err, trtc.ErrStationNotFound))
}

func testNetworkRouting(t *testing.T, backend string) {
	rec := &stubRecommender{rec: &model.Recommendation{
		Waypoints:    []string{"西門", "台北車站", "中山", "雙連"},
		TotalMinutes: 9,
	}}
	n := testutil.LoadNetwork(t, backend, testutil.SmallNetwork(), trtc.NetworkOptions{
		Recommender: rec,
	})

	assert.Equal(t, 11, n.Graph.NodeCount())
	assert.Equal(t, 3, len(n.Graph.Lines()))

	result := routeResult(t)(n.Router.PlanRoute(context.Background(), "西門", "雙連"))
	assert.Equal(t, trtc.SourceOfficial, result.Source)
	assert.Equal(t, [][2]string{{"086", "131"}}, rec.calls)

	result = routeResult(t)(n.Router.FindShortestPath("北車", "中山"))
	assert.Equal(t, 3, result.EstimatedTimeMinutes)

	// Default fuzzy matcher is in place.
	res, ok := n.Directory.ResolveIDs("西門町").(trtc.Suggested)
	require.True(t, ok)
	assert.Equal(t, "西門", res.Name)
}

func TestNetwork(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			t.Run("Fare", func(t *testing.T) { testNetworkFare(t, backend) })
			t.Run("StationInfo", func(t *testing.T) { testNetworkStationInfo(t, backend) })
			t.Run("Routing", func(t *testing.T) { testNetworkRouting(t, backend) })
		})
	}
}

func TestNetworkDefaultAliases(t *testing.T) {
	dataset := testutil.SmallNetwork()
	dataset.Aliases = nil

	// DefaultAliases point at stations missing from this network,
	// which is fine.
	n := testutil.LoadNetwork(t, "memory", dataset, trtc.NetworkOptions{})
	assert.Equal(t, trtc.Resolved{IDs: []string{"BL12", "R10"}}, n.Directory.ResolveIDs("北車"))
	assert.Equal(t, trtc.Resolved{IDs: []string{"BL11"}}, n.Directory.ResolveIDs("西門"))
	assert.Equal(t, trtc.Resolved{IDs: []string{"BL11"}}, n.Directory.ResolveIDs("西門町"))

	// No default alias maps a name onto itself.
	for alias, official := range trtc.DefaultAliases {
		assert.NotEqual(t, normalize.Normalize(official), normalize.Normalize(alias), alias)
	}

	n = testutil.LoadNetwork(t, "memory", dataset, trtc.NetworkOptions{
		Aliases: map[string]string{"Ximen": "西門"},
	})
	assert.Equal(t, trtc.Resolved{IDs: []string{"BL11"}}, n.Directory.ResolveIDs("ximen"))
	assert.IsType(t, trtc.Suggested{}, n.Directory.ResolveIDs("北車"))
}

func TestNetworkOptions(t *testing.T) {
	n := testutil.LoadNetwork(t, "memory", testutil.SmallNetwork(), trtc.NetworkOptions{
		Graph: trtc.GraphOptions{RideWeight: 2},
		Index: map[string][]string{
			"西門":  {"BL11"},
			"ximen": {"BL11"},
			"雙連":  {"R12"},
		},
	})

	assert.Equal(t, trtc.Resolved{IDs: []string{"BL11"}}, n.Directory.ResolveIDs("Ximen"))

	// The index replaces names and aliases alike.
	assert.Equal(t, trtc.NotFound{Query: "北車"}, n.Directory.ResolveIDs("北車"))

	result := routeResult(t)(n.Router.FindShortestPath("西門", "雙連"))
	assert.Equal(t, 2+5+2+2, result.EstimatedTimeMinutes)
}

func TestNetworkDataLoadErrors(t *testing.T) {
	s := testutil.BuildStorage(t, "memory")

	metadata := testutil.WriteDataset(t, s, "empty", testutil.Dataset{})
	reader, err := s.GetReader("empty")
	require.NoError(t, err)
	_, err = trtc.NewNetwork(reader, metadata, trtc.NetworkOptions{})
	assert.True(t, errors.Is(err, trtc.ErrDataLoad))

	// Dataset aliases are strict.
	dataset := testutil.SmallNetwork()
	dataset.Aliases = append(dataset.Aliases, model.Alias{Alias: "城中", Official: "城中市場"})
	metadata = testutil.WriteDataset(t, s, "bad-alias", dataset)
	reader, err = s.GetReader("bad-alias")
	require.NoError(t, err)
	_, err = trtc.NewNetwork(reader, metadata, trtc.NetworkOptions{})
	assert.True(t, errors.Is(err, trtc.ErrDataLoad))
}

type stubLostItems struct {
	items []model.LostItem
	err   error
}

func (s *stubLostItems) LostItems(ctx context.Context) ([]model.LostItem, error) {
	return s.items, s.err
}

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func TestNetworkLostItems(t *testing.T) {
	source := &stubLostItems{items: []model.LostItem{
		{Name: "錢包", Place: "台北車站", Date: day(9)},
		{Name: "雨傘", Place: "捷運西門站", Date: day(8)},
		{Name: "黑色雨傘", Place: "中山站", Date: day(10)},
		{Name: "手機", Place: "台北車站(R10)", Date: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		{Name: "Umbrella", Place: "西門", Date: day(3)},
	}}

	n := testutil.LoadNetwork(t, "memory", testutil.SmallNetwork(), trtc.NetworkOptions{
		LostAndFound: source,
		TimeNow:      func() time.Time { return time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC) },
	})

	names := func(items []model.LostItem) []string {
		out := []string{}
		for _, it := range items {
			out = append(out, it.Name)
		}
		return out
	}

	for _, tc := range []struct {
		name    string
		station string
		item    string
		days    int
		names   []string
	}{
		{"last_week", "", "", 0, []string{"黑色雨傘", "錢包", "雨傘", "Umbrella"}},
		{"yesterday", "", "", 1, []string{"黑色雨傘", "錢包"}},
		{"two_months", "", "", 60, []string{"黑色雨傘", "錢包", "雨傘", "Umbrella", "手機"}},
		{"station_alias", "北車", "", 0, []string{"錢包"}},
		{"station_and_item", "西門", "傘", 0, []string{"雨傘"}},
		{"item_ignores_case", "", "UMBRELLA", 0, []string{"Umbrella"}},
		{"no_match", "雙連", "", 0, []string{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			items, err := n.LostItems(context.Background(), tc.station, tc.item, tc.days)
			require.NoError(t, err)
			assert.Equal(t, tc.names, names(items))
		})
	}

	_, err := n.LostItems(context.Background(), "nowhere", "", 0)
	var notFound *trtc.StationNotFoundError
	assert.True(t, errors.As(err, &notFound))

	source.err = errors.New("feed down")
	_, err = n.LostItems(context.Background(), "", "", 0)
	assert.Error(t, err)
}

func TestNetworkLostItemsLimit(t *testing.T) {
	source := &stubLostItems{}
	for i := 0; i < trtc.DefaultLostItemLimit+5; i++ {
		source.items = append(source.items, model.LostItem{Name: "悠遊卡", Place: "西門站", Date: day(10)})
	}

	n := testutil.LoadNetwork(t, "memory", testutil.SmallNetwork(), trtc.NetworkOptions{
		LostAndFound: source,
		TimeNow:      func() time.Time { return day(10) },
	})
	items, err := n.LostItems(context.Background(), "西門", "", 0)
	require.NoError(t, err)
	assert.Len(t, items, trtc.DefaultLostItemLimit)

	n = testutil.LoadNetwork(t, "memory", testutil.SmallNetwork(), trtc.NetworkOptions{})
	_, err = n.LostItems(context.Background(), "", "", 0)
	assert.True(t, errors.Is(err, trtc.ErrNoLostAndFound))
}
