package parse

import (
	"fmt"
	"io"
	"regexp"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"metropet.dev/trtc/model"
	"metropet.dev/trtc/storage"
)

// A row of first_last_timetable.csv. The misspelled destination ID
// header is what the published export uses.
type FirstLastCSV struct {
	StationID              string `csv:"StationID"`
	LineID                 string `csv:"LineID"`
	TripHeadSign           string `csv:"TripHeadSign"`
	DestinationStationID   string `csv:"DestinationStaionID"`
	DestinationStationName string `csv:"DestinationStationName"`
	FirstTrainTime         string `csv:"FirstTrainTime"`
	LastTrainTime          string `csv:"LastTrainTime"`
	ServiceDays            string `csv:"ServiceDays"`
	UpdateTime             string `csv:"UpdateTime"`
}

var clockRe = regexp.MustCompile(`^([01]?[0-9]|2[0-9]):[0-5][0-9]$`)

// Parses first_last_timetable.csv. Rows for unknown stations are
// skipped.
func ParseFirstLastTimetable(writer storage.DatasetWriter, data io.Reader, stations map[string]string) error {
	i := 0
	err := gocsv.UnmarshalToCallbackWithError(data, func(r *FirstLastCSV) error {
		i++
		if stations[r.StationID] == "" {
			return nil
		}

		if !clockRe.MatchString(r.FirstTrainTime) {
			return fmt.Errorf("invalid FirstTrainTime '%s' (row %d)", r.FirstTrainTime, i)
		}
		if !clockRe.MatchString(r.LastTrainTime) {
			return fmt.Errorf("invalid LastTrainTime '%s' (row %d)", r.LastTrainTime, i)
		}

		err := writer.WriteFirstLastTrain(model.FirstLastTrain{
			StationID:              r.StationID,
			LineID:                 r.LineID,
			TripHeadSign:           r.TripHeadSign,
			DestinationStationID:   r.DestinationStationID,
			DestinationStationName: r.DestinationStationName,
			FirstTrainTime:         r.FirstTrainTime,
			LastTrainTime:          r.LastTrainTime,
			ServiceDays:            r.ServiceDays,
		})
		if err != nil {
			return errors.Wrapf(err, "writing first/last train (row %d)", i)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "unmarshaling first_last_timetable csv")
	}

	return nil
}
