package trtc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"metropet.dev/trtc/model"
)

// A source of officially recommended routes, addressed by the
// operator's own station codes. Returns nil, nil when it has no
// recommendation.
type Recommender interface {
	Recommend(ctx context.Context, fromSID, toSID string) (*model.Recommendation, error)
}

// Recommendations listing more stations than this must take longer
// than MinPlausibleMinutes.
const (
	MaxStopsForInstantTrip = 3
	MinPlausibleMinutes    = 2
)

// Plans a trip using the Recommender, formatting its waypoints like a
// local route. Implausible recommendations, many stops in next to no
// time, are rejected with ErrImplausibleRecommendation.
func (r *Router) OfficialRoute(ctx context.Context, start, end string) (*RouteResult, error) {
	if r.Recommender == nil {
		return nil, ErrNoRecommender
	}
	if r.Directory == nil || r.Graph == nil {
		return nil, &RouteNotFoundError{Start: start, End: end, Reason: "network not loaded"}
	}

	startIDs, endIDs, err := r.resolvePair(start, end)
	if err != nil {
		return nil, err
	}

	fromSID := r.externalID(startIDs)
	toSID := r.externalID(endIDs)
	if fromSID == "" || toSID == "" {
		return nil, &RouteNotFoundError{Start: start, End: end, Reason: "no external station code"}
	}

	rec, err := r.Recommender.Recommend(ctx, fromSID, toSID)
	if err != nil {
		return nil, fmt.Errorf("getting recommendation: %w", err)
	}
	if rec == nil {
		return nil, &RouteNotFoundError{Start: start, End: end, Reason: "no recommendation"}
	}

	if len(rec.Waypoints) > MaxStopsForInstantTrip && rec.TotalMinutes <= MinPlausibleMinutes {
		return nil, fmt.Errorf(
			"%w: %d stations in %d minutes",
			ErrImplausibleRecommendation, len(rec.Waypoints), rec.TotalMinutes,
		)
	}

	path := r.waypointPath(rec.Waypoints)
	if len(path) < 2 {
		return nil, fmt.Errorf(
			"%w: waypoints %v don't match known stations",
			ErrImplausibleRecommendation, rec.Waypoints,
		)
	}

	return r.result(path, rec.TotalMinutes, SourceOfficial), nil
}

// Plans a trip, preferring the official recommendation and falling
// back to the local graph when it's unavailable or implausible.
// Suggestions and unknown stations end the chain.
func (r *Router) PlanRoute(ctx context.Context, start, end string) (Plan, error) {
	if r.Recommender != nil {
		result, err := r.OfficialRoute(ctx, start, end)
		if err == nil {
			return result, nil
		}

		var suggestion *SuggestionError
		if errors.As(err, &suggestion) {
			return suggestion.Suggested, nil
		}
		if errors.Is(err, ErrStationNotFound) {
			return nil, err
		}

		log.Printf("official route %q -> %q unavailable, using local graph: %v", start, end, err)
	}

	return r.FindShortestPath(start, end)
}

// The first of ids, in order, with an external station code.
func (r *Router) externalID(ids []string) string {
	for _, id := range ids {
		if sid := r.ExternalIDs[id]; sid != "" {
			return sid
		}
	}
	return ""
}

// Maps waypoint names to a connected path of station IDs. Each name
// prefers an ID adjacent to the previous one, then the cheapest one
// to reach, with the gap filled by the shortest path. Unknown names
// are dropped.
func (r *Router) waypointPath(waypoints []string) []string {
	path := []string{}
	var firstIDs []string
	for _, w := range waypoints {
		ids := r.Directory.ExactIDs(w)
		if len(ids) == 0 {
			continue
		}

		if len(path) == 0 {
			path = append(path, ids[0])
			firstIDs = ids
			continue
		}

		// Start on whichever ID of a transfer station connects
		// to the second waypoint.
		if len(path) == 1 {
			path[0] = r.connectedID(firstIDs, ids)
		}

		prev := path[len(path)-1]
		if containsID(ids, prev) {
			continue
		}

		next := ""
		for _, id := range ids {
			if _, found := r.Graph.Edge(prev, id); found {
				next = id
				break
			}
		}
		if next != "" {
			path = append(path, next)
			continue
		}

		var gap []string
		best := math.Inf(1)
		for _, id := range ids {
			p, weight, found := r.Graph.ShortestPath(prev, id)
			if found && weight < best {
				gap, best = p, weight
			}
		}
		if gap == nil {
			path = append(path, ids[0])
			continue
		}
		path = append(path, gap[1:]...)
	}

	return path
}

func (r *Router) connectedID(candidates, neighbours []string) string {
	for _, c := range candidates {
		for _, n := range neighbours {
			if _, found := r.Graph.Edge(c, n); found {
				return c
			}
		}
	}
	return candidates[0]
}

func containsID(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}
