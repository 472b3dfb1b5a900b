package parse

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"metropet.dev/trtc/model"
	"metropet.dev/trtc/storage"
)

// Fare categories as published in ODFare.
const (
	TicketTypeSingleJourney = 1
	FareClassAdult          = 1
	FareClassChild          = 4
)

type ODFareJSON struct {
	OriginStationID      string `json:"OriginStationID"`
	DestinationStationID string `json:"DestinationStationID"`
	Fares                []struct {
		TicketType int `json:"TicketType"`
		FareClass  int `json:"FareClass"`
		Price      int `json:"Price"`
	} `json:"Fares"`
}

type odPair struct {
	origin      string
	destination string
}

// Parses ODFare. Pairs lacking either an adult or a child single
// journey price are skipped, as are pairs referencing unknown
// stations. When only one direction of a pair is published, the same
// prices are written for the other.
//
// Must be called between BeginFares() and EndFares().
func ParseODFare(writer storage.DatasetWriter, data io.Reader, stations map[string]string) (int, error) {
	faresJSON := []*ODFareJSON{}
	if err := json.NewDecoder(data).Decode(&faresJSON); err != nil {
		return 0, fmt.Errorf("unmarshaling fares: %w", err)
	}

	seen := map[odPair]bool{}
	fares := []model.Fare{}

	for i, f := range faresJSON {
		if stations[f.OriginStationID] == "" || stations[f.DestinationStationID] == "" {
			continue
		}

		pair := odPair{f.OriginStationID, f.DestinationStationID}
		if seen[pair] {
			return 0, fmt.Errorf(
				"repeated fare %s -> %s (record %d)",
				pair.origin, pair.destination, i+1,
			)
		}

		fare := model.Fare{
			OriginStationID:      f.OriginStationID,
			DestinationStationID: f.DestinationStationID,
			Adult:                -1,
			Child:                -1,
		}
		for _, p := range f.Fares {
			if p.TicketType != TicketTypeSingleJourney {
				continue
			}
			if p.Price < 0 {
				return 0, fmt.Errorf("negative price (record %d)", i+1)
			}
			switch p.FareClass {
			case FareClassAdult:
				fare.Adult = p.Price
			case FareClassChild:
				fare.Child = p.Price
			}
		}
		if fare.Adult < 0 || fare.Child < 0 {
			continue
		}

		seen[pair] = true
		fares = append(fares, fare)
	}

	reverse := []model.Fare{}
	for _, f := range fares {
		pair := odPair{f.DestinationStationID, f.OriginStationID}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		reverse = append(reverse, model.Fare{
			OriginStationID:      f.DestinationStationID,
			DestinationStationID: f.OriginStationID,
			Adult:                f.Adult,
			Child:                f.Child,
		})
	}
	fares = append(fares, reverse...)

	for i, f := range fares {
		err := writer.WriteFare(f)
		if err != nil {
			return 0, errors.Wrapf(err, "writing fare (record %d)", i+1)
		}
	}

	return len(fares), nil
}
