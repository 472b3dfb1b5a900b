package trtc

import (
	"errors"
	"fmt"
)

var (
	ErrStationNotFound           = errors.New("station not found")
	ErrRouteNotFound             = errors.New("route not found")
	ErrDataLoad                  = errors.New("loading network data")
	ErrImplausibleRecommendation = errors.New("implausible recommendation")
	ErrNoRecommender             = errors.New("no recommender configured")
	ErrNoDataset                 = errors.New("no dataset available")
	ErrNoLostAndFound            = errors.New("no lost property source configured")
)

// Which end of a trip a station name was given for.
type Side string

const (
	SideStart Side = "start"
	SideEnd   Side = "end"
)

// A station name that could not be resolved, even approximately.
type StationNotFoundError struct {
	Side Side
	Name string
}

func (e *StationNotFoundError) Error() string {
	if e.Side == "" {
		return fmt.Sprintf("station not found: %q", e.Name)
	}
	return fmt.Sprintf("%s station not found: %q", e.Side, e.Name)
}

func (e *StationNotFoundError) Unwrap() error {
	return ErrStationNotFound
}

// Both stations resolved, but no path connects them.
type RouteNotFoundError struct {
	Start  string
	End    string
	Reason string
}

func (e *RouteNotFoundError) Error() string {
	msg := fmt.Sprintf("no route from %q to %q", e.Start, e.End)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *RouteNotFoundError) Unwrap() error {
	return ErrRouteNotFound
}

// Returned by operations that can't hand back a Suggested plan, when
// a name only matched approximately. The caller should confirm the
// suggested name with the user and retry.
type SuggestionError struct {
	Suggested Suggested
}

func (e *SuggestionError) Error() string {
	return fmt.Sprintf("%q not found, did you mean %q?", e.Suggested.Query, e.Suggested.Name)
}
