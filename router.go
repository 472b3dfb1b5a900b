package trtc

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

type RouteSource string

const (
	SourceLocal    RouteSource = "local"
	SourceOfficial RouteSource = "official"
)

// A planned trip: turn-by-turn directions and an estimated duration.
type RouteResult struct {
	StartStation         string      `json:"start_station_name"`
	EndStation           string      `json:"end_station_name"`
	PathDetails          []string    `json:"path_details"`
	EstimatedTimeMinutes int         `json:"estimated_time_minutes"`
	Message              string      `json:"message"`
	Source               RouteSource `json:"source"`

	// Station IDs along the trip.
	Path []string `json:"path,omitempty"`
}

// Plans trips over a Graph, resolving names through a Directory.
type Router struct {
	Directory *Directory
	Graph     *Graph

	// Optional. Enables OfficialRoute, with ExternalIDs mapping
	// station IDs to the recommender's station codes.
	Recommender Recommender
	ExternalIDs map[string]string
}

func NewRouter(directory *Directory, graph *Graph) *Router {
	return &Router{
		Directory: directory,
		Graph:     graph,
	}
}

// Finds the cheapest path between two station names, trying every
// combination of the IDs each name resolves to.
//
// If either name only resolves approximately, the Suggested name is
// returned as the plan. Unknown names give *StationNotFoundError, and
// unconnected stations *RouteNotFoundError.
func (r *Router) FindShortestPath(start, end string) (Plan, error) {
	if r.Graph == nil || !r.Graph.Ready() || r.Directory == nil {
		return nil, &RouteNotFoundError{Start: start, End: end, Reason: "network not loaded"}
	}

	startIDs, endIDs, err := r.resolvePair(start, end)
	if err != nil {
		var suggestion *SuggestionError
		if errors.As(err, &suggestion) {
			return suggestion.Suggested, nil
		}
		return nil, err
	}

	var bestPath []string
	bestWeight := math.Inf(1)
	for _, from := range startIDs {
		if !r.Graph.HasNode(from) {
			continue
		}
		for _, to := range endIDs {
			if !r.Graph.HasNode(to) {
				continue
			}
			path, weight, found := r.Graph.ShortestPath(from, to)
			if found && weight < bestWeight {
				bestPath = path
				bestWeight = weight
			}
		}
	}

	if bestPath == nil {
		return nil, &RouteNotFoundError{Start: start, End: end, Reason: "stations not connected"}
	}

	return r.result(bestPath, int(math.Round(bestWeight)), SourceLocal), nil
}

func (r *Router) resolvePair(start, end string) ([]string, []string, error) {
	startIDs, err := r.Directory.Lookup(SideStart, start)
	if err != nil {
		return nil, nil, err
	}
	endIDs, err := r.Directory.Lookup(SideEnd, end)
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(startIDs)
	sort.Strings(endIDs)
	return startIDs, endIDs, nil
}

func (r *Router) result(path []string, minutes int, source RouteSource) *RouteResult {
	details := r.Directions(path)
	return &RouteResult{
		StartStation:         r.Directory.OfficialName(path[0]),
		EndStation:           r.Directory.OfficialName(path[len(path)-1]),
		PathDetails:          details,
		EstimatedTimeMinutes: minutes,
		Message: fmt.Sprintf(
			"預估行車時間：%d 分鐘。\n%s",
			minutes, strings.Join(details, "\n"),
		),
		Source: source,
		Path:   append([]string{}, path...),
	}
}

// Renders a path of station IDs as directions. Consecutive rides on
// the same line become one directive; transfers and line changes get
// their own. Pairs of stations without an edge are skipped.
func (r *Router) Directions(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	name := r.Directory.OfficialName

	details := []string{fmt.Sprintf("從「%s」出發。", name(path[0]))}

	line := ""
	segStart := 0
	stops := 0
	flush := func(end int) {
		if line != "" && stops > 0 {
			details = append(details, r.rideDirective(line, path[segStart], path[end], stops))
		}
		line = ""
		stops = 0
	}

	for i := 0; i+1 < len(path); i++ {
		u, v := path[i], path[i+1]
		e, found := r.Graph.Edge(u, v)
		if !found {
			flush(i)
			continue
		}

		switch e.Type {
		case EdgeTransfer:
			flush(i)
			details = append(details, transferDirective(name(u), name(v)))

		case EdgeRide:
			if line != "" && e.Line != line {
				flush(i)
				details = append(details, transferDirective(name(u), name(u)))
			}
			if line == "" {
				line = e.Line
				segStart = i
			}
			stops++
		}
	}
	flush(len(path) - 1)

	final := "「" + name(path[len(path)-1]) + "」"
	if !strings.Contains(details[len(details)-1], final) {
		details = append(details, fmt.Sprintf("抵達%s。", final))
	}

	deduped := details[:1]
	for _, d := range details[1:] {
		if d != deduped[len(deduped)-1] {
			deduped = append(deduped, d)
		}
	}

	return deduped
}

func (r *Router) rideDirective(line, from, to string, stops int) string {
	arrive := r.Directory.OfficialName(to)

	if towards := r.towards(line, from, to); towards != "" {
		return fmt.Sprintf("搭乘【%s】往「%s」方向，坐 %d 站到「%s」。", r.lineLabel(line), towards, stops, arrive)
	}
	return fmt.Sprintf("搭乘【%s】，坐 %d 站到「%s」。", r.lineLabel(line), stops, arrive)
}

// Line name with its colour, e.g. "板南線 (藍線)".
func (r *Router) lineLabel(line string) string {
	if l, found := r.Graph.Line(line); found && l.Color != "" && l.Color != UnknownLineColor {
		return fmt.Sprintf("%s (%s)", line, l.Color)
	}
	return line
}

// The terminus of line that a ride from one station to another heads
// for: the one strictly closer to the destination than to the origin.
// Empty unless exactly one terminus qualifies.
func (r *Router) towards(line, from, to string) string {
	l, found := r.Graph.Line(line)
	if !found {
		return ""
	}

	termini := []string{l.Termini[0]}
	if l.Termini[1] != l.Termini[0] {
		termini = append(termini, l.Termini[1])
	}

	closer := []string{}
	for _, t := range termini {
		before, okBefore := r.Graph.LineDistance(line, from, t)
		after, okAfter := r.Graph.LineDistance(line, to, t)
		if okBefore && okAfter && after < before {
			closer = append(closer, t)
		}
	}

	if len(closer) != 1 {
		return ""
	}
	return r.Directory.OfficialName(closer[0])
}

func transferDirective(from, to string) string {
	if from == to {
		return fmt.Sprintf("在「%s」轉乘。", from)
	}
	return fmt.Sprintf("在「%s」轉乘至「%s」。", from, to)
}
