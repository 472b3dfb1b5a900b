package tdx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"

	"metropet.dev/trtc/parse"
)

type nameJSON struct {
	ZhTw string `json:"Zh_tw"`
	En   string `json:"En"`
}

// TDX publishes service day flags as booleans in some versions of the
// API and as 0/1 in others.
type dayFlag bool

func (f *dayFlag) UnmarshalJSON(b []byte) error {
	switch strings.TrimSpace(string(b)) {
	case "true", "1":
		*f = true
	case "false", "0", "null":
		*f = false
	default:
		return fmt.Errorf("invalid service day flag: %s", string(b))
	}
	return nil
}

type firstLastJSON struct {
	LineID                 string   `json:"LineID"`
	StationID              string   `json:"StationID"`
	TripHeadSign           string   `json:"TripHeadSign"`
	DestinationStaionID    string   `json:"DestinationStaionID"`
	DestinationStationID   string   `json:"DestinationStationID"`
	DestinationStationName nameJSON `json:"DestinationStationName"`
	FirstTrainTime         string   `json:"FirstTrainTime"`
	LastTrainTime          string   `json:"LastTrainTime"`
	ServiceDay             struct {
		Monday    dayFlag `json:"Monday"`
		Tuesday   dayFlag `json:"Tuesday"`
		Wednesday dayFlag `json:"Wednesday"`
		Thursday  dayFlag `json:"Thursday"`
		Friday    dayFlag `json:"Friday"`
		Saturday  dayFlag `json:"Saturday"`
		Sunday    dayFlag `json:"Sunday"`
	} `json:"ServiceDay"`
	UpdateTime string `json:"UpdateTime"`
}

// Converts FirstLastTimetable JSON to the CSV layout read by
// parse.ParseFirstLastTimetable. ServiceDays becomes a string of seven
// 0/1 flags, Monday first.
func FirstLastTimetableCSV(data []byte) ([]byte, error) {
	items := []*firstLastJSON{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling timetable: %w", err)
	}

	rows := make([]*parse.FirstLastCSV, 0, len(items))
	for _, it := range items {
		dest := it.DestinationStaionID
		if dest == "" {
			dest = it.DestinationStationID
		}

		days := ""
		for _, d := range []dayFlag{
			it.ServiceDay.Monday,
			it.ServiceDay.Tuesday,
			it.ServiceDay.Wednesday,
			it.ServiceDay.Thursday,
			it.ServiceDay.Friday,
			it.ServiceDay.Saturday,
			it.ServiceDay.Sunday,
		} {
			if d {
				days += "1"
			} else {
				days += "0"
			}
		}

		rows = append(rows, &parse.FirstLastCSV{
			StationID:              it.StationID,
			LineID:                 it.LineID,
			TripHeadSign:           it.TripHeadSign,
			DestinationStationID:   dest,
			DestinationStationName: it.DestinationStationName.ZhTw,
			FirstTrainTime:         it.FirstTrainTime,
			LastTrainTime:          it.LastTrainTime,
			ServiceDays:            days,
			UpdateTime:             it.UpdateTime,
		})
	}

	return gocsv.MarshalBytes(&rows)
}
