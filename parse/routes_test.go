package parse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metropet.dev/trtc/model"
	"metropet.dev/trtc/storage"
)

func TestLineCode(t *testing.T) {
	assert.Equal(t, "BL", LineCode("BL-1"))
	assert.Equal(t, "R", LineCode("R22A"))
	assert.Equal(t, "BR", LineCode("BR"))
	assert.Equal(t, "", LineCode("1-BL"))
	assert.Equal(t, "", LineCode(""))
}

func TestParseStationOfRoute(t *testing.T) {
	for _, tc := range []struct {
		name     string
		content  string
		routes   []model.Route
		stations map[string]string
		err      bool
	}{
		{
			"minimal",
			`[{"RouteID": "G-1", "Stations": [
			  {"Sequence": 1, "StationID": "G01", "StationName": {"Zh_tw": "新店"}}]}]`,
			[]model.Route{{
				ID:       "G-1",
				LineCode: "G",
				Stations: []model.Station{{ID: "G01", Name: "新店"}},
			}},
			map[string]string{"G01": "新店"},
			false,
		},

		{
			"conflicting_station_names",
			`[{"RouteID": "O-1", "Stations": [
			  {"Sequence": 1, "StationID": "O01", "StationName": {"Zh_tw": "南勢角"}}]},
			 {"RouteID": "O-2", "Stations": [
			  {"Sequence": 1, "StationID": "O01", "StationName": {"Zh_tw": "景安"}}]}]`,
			nil,
			nil,
			true,
		},

		{
			"second_direction_ignored",
			`[
			 {"RouteID": "Y-1", "Direction": 0, "Stations": [
			  {"Sequence": 1, "StationID": "Y07", "StationName": {"Zh_tw": "大坪林"}},
			  {"Sequence": 2, "StationID": "Y08", "StationName": {"Zh_tw": "十四張"}}]},
			 {"RouteID": "Y-1", "Direction": 1, "Stations": [
			  {"Sequence": 1, "StationID": "Y08", "StationName": {"Zh_tw": "十四張"}},
			  {"Sequence": 2, "StationID": "Y07", "StationName": {"Zh_tw": "大坪林"}}]}]`,
			[]model.Route{{
				ID:       "Y-1",
				LineCode: "Y",
				Stations: []model.Station{
					{ID: "Y07", Name: "大坪林"},
					{ID: "Y08", Name: "十四張"},
				},
			}},
			map[string]string{"Y07": "大坪林", "Y08": "十四張"},
			false,
		},

		{
			"line_code_from_line_id",
			`[{"RouteID": "1", "LineID": "BR", "Stations": [
			  {"Sequence": 1, "StationID": "BR01", "StationName": {"Zh_tw": "動物園"}}]}]`,
			[]model.Route{{
				ID:       "1",
				LineCode: "BR",
				Stations: []model.Station{{ID: "BR01", Name: "動物園"}},
			}},
			map[string]string{"BR01": "動物園"},
			false,
		},

		{
			"empty_route_skipped",
			`[{"RouteID": "R-1", "Stations": []},
			  {"RouteID": "R-2", "Stations": [{"Sequence": 1, "StationID": "", "StationName": {"Zh_tw": "x"}}]}]`,
			[]model.Route{},
			map[string]string{},
			false,
		},

		{
			"missing_route_id",
			`[{"Stations": [{"Sequence": 1, "StationID": "G01", "StationName": {"Zh_tw": "新店"}}]}]`,
			nil,
			nil,
			true,
		},

		{
			"repeated_route_and_direction",
			`[{"RouteID": "G-1", "Direction": 0, "Stations": []},
			  {"RouteID": "G-1", "Direction": 0, "Stations": []}]`,
			nil,
			nil,
			true,
		},

		{
			"no_line_code",
			`[{"RouteID": "7", "Stations": []}]`,
			nil,
			nil,
			true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := storage.NewMemoryStorage()
			writer, err := s.GetWriter("test")
			require.NoError(t, err)

			stations, count, err := ParseStationOfRoute(writer, bytes.NewBufferString(tc.content))
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.stations, stations)
			assert.Equal(t, len(tc.routes), count)

			reader, err := s.GetReader("test")
			require.NoError(t, err)
			routes, err := reader.Routes()
			require.NoError(t, err)
			if len(tc.routes) == 0 {
				assert.Empty(t, routes)
			} else {
				assert.Equal(t, tc.routes, routes)
			}
		})
	}
}

func TestParseStationOfRouteSequence(t *testing.T) {
	s := storage.NewMemoryStorage()
	writer, err := s.GetWriter("test")
	require.NoError(t, err)

	_, _, err = ParseStationOfRoute(writer, bytes.NewBufferString(`[{"RouteID": "O-1", "Stations": [
	  {"Sequence": 3, "StationID": "O03", "StationName": {"Zh_tw": "永安市場"}},
	  {"Sequence": 1, "StationID": "O01", "StationName": {"Zh_tw": "南勢角"}},
	  {"Sequence": 2, "StationID": "O02", "StationName": {"Zh_tw": "景安"}}]}]`))
	require.NoError(t, err)

	reader, err := s.GetReader("test")
	require.NoError(t, err)
	routes, err := reader.Routes()
	require.NoError(t, err)
	require.Equal(t, 1, len(routes))

	ids := []string{}
	for _, st := range routes[0].Stations {
		ids = append(ids, st.ID)
	}
	assert.Equal(t, []string{"O01", "O02", "O03"}, ids)
}
