package model

import (
	"strconv"
	"strings"
	"time"
)

// Holds all external facing types and constants.

// A line-specific instance of a metro station. Transfer stations
// have one Station per line, sharing Name.
type Station struct {
	ID          string
	Name        string
	EnglishName string
}

// An ordered list of stations served by one route. LineCode is the
// alphabetic prefix of the route ID, e.g. "BL" for "BL-1".
type Route struct {
	ID       string
	LineCode string
	Stations []Station
}

// A walking connection between two station IDs. Cost is in the same
// unit as ride weights. A Cost of 0 means "use the default".
type Transfer struct {
	FromStationID string
	FromLineID    string
	ToStationID   string
	ToLineID      string
	Cost          float64
}

// Ticket prices in NTD between two station IDs.
type Fare struct {
	OriginStationID      string
	DestinationStationID string
	Adult                int
	Child                int
}

type Exit struct {
	StationID   string
	ExitID      string
	Description string
}

type Facility struct {
	StationID   string
	Description string
}

// First and last departures from a station towards a destination.
// Times are "HH:MM", local time.
type FirstLastTrain struct {
	StationID              string
	LineID                 string
	TripHeadSign           string
	DestinationStationID   string
	DestinationStationName string
	FirstTrainTime         string
	LastTrainTime          string
	ServiceDays            string
}

func (f *FirstLastTrain) FirstTrain() time.Duration {
	return parseClock(f.FirstTrainTime)
}

func (f *FirstLastTrain) LastTrain() time.Duration {
	return parseClock(f.LastTrainTime)
}

func parseClock(s string) time.Duration {
	h, m, _ := strings.Cut(s, ":")
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
}

// Maps an internal station ID to the station code used by the
// operator's own services (the "SID").
type ExternalID struct {
	StationID  string
	ExternalID string
}

// A colloquial name for a station, pointing at its official name.
type Alias struct {
	Alias    string
	Official string
}

// A metro line as seen by the graph: the ordered station IDs of the
// first route seen for it, and its two ends.
type Line struct {
	Code     string
	Name     string
	Color    string
	Stations []string
	Termini  [2]string
}

// A route suggested by the operator's recommendation service.
type Recommendation struct {
	Waypoints        []string
	TotalMinutes     int
	TransferStations []string
}

// An item handed in at a station's lost property office.
type LostItem struct {
	Name  string
	Place string
	// Day the item was found, midnight UTC.
	Date time.Time
}
