package parse

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"

	"metropet.dev/trtc/model"
	"metropet.dev/trtc/storage"
)

// A localized name as published by TDX.
type NameJSON struct {
	ZhTw string `json:"Zh_tw"`
	En   string `json:"En"`
}

type StationOfRouteJSON struct {
	LineNo    string `json:"LineNo"`
	LineID    string `json:"LineID"`
	RouteID   string `json:"RouteID"`
	Direction int    `json:"Direction"`
	Stations  []struct {
		Sequence    int      `json:"Sequence"`
		StationID   string   `json:"StationID"`
		StationName NameJSON `json:"StationName"`
	} `json:"Stations"`
}

var lineCodeRe = regexp.MustCompile(`^[A-Z]+`)

// Extracts the line code ("BL") from a route ID ("BL-1").
func LineCode(routeID string) string {
	return lineCodeRe.FindString(routeID)
}

// Parses StationOfRoute. Returns a map from station ID to official
// name, and the number of routes written.
//
// Routes are published once per direction. Only the first direction
// seen of each route is kept, as the graph is undirected.
func ParseStationOfRoute(writer storage.DatasetWriter, data io.Reader) (map[string]string, int, error) {
	routesJSON := []*StationOfRouteJSON{}
	if err := json.NewDecoder(data).Decode(&routesJSON); err != nil {
		return nil, 0, fmt.Errorf("unmarshaling routes: %w", err)
	}

	stations := map[string]string{}
	directions := map[string]int{}
	count := 0

	for _, r := range routesJSON {
		// ID is required
		if r.RouteID == "" {
			return nil, 0, fmt.Errorf("route has no RouteID")
		}

		if dir, seen := directions[r.RouteID]; seen {
			if dir == r.Direction {
				return nil, 0, fmt.Errorf("repeated RouteID: '%s'", r.RouteID)
			}
			continue
		}
		directions[r.RouteID] = r.Direction

		lineCode := LineCode(r.RouteID)
		if lineCode == "" {
			lineCode = LineCode(r.LineID)
		}
		if lineCode == "" {
			return nil, 0, fmt.Errorf("RouteID '%s' has no line code", r.RouteID)
		}

		sort.SliceStable(r.Stations, func(i, j int) bool {
			return r.Stations[i].Sequence < r.Stations[j].Sequence
		})

		route := model.Route{
			ID:       r.RouteID,
			LineCode: lineCode,
		}
		for _, s := range r.Stations {
			// Records without both name and ID carry nothing
			// to route on.
			if s.StationID == "" || s.StationName.ZhTw == "" {
				continue
			}
			if name, found := stations[s.StationID]; found && name != s.StationName.ZhTw {
				return nil, 0, fmt.Errorf(
					"StationID '%s' named both '%s' and '%s'",
					s.StationID, name, s.StationName.ZhTw,
				)
			}
			stations[s.StationID] = s.StationName.ZhTw

			route.Stations = append(route.Stations, model.Station{
				ID:          s.StationID,
				Name:        s.StationName.ZhTw,
				EnglishName: s.StationName.En,
			})
		}

		if len(route.Stations) == 0 {
			continue
		}

		err := writer.WriteRoute(route)
		if err != nil {
			return nil, 0, fmt.Errorf("writing route: %w", err)
		}
		count++
	}

	return stations, count, nil
}
