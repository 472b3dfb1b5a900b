package parse

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"metropet.dev/trtc/model"
	"metropet.dev/trtc/storage"
)

type StationExitJSON struct {
	StationID       string   `json:"StationID"`
	ExitID          string   `json:"ExitID"`
	ExitDescription NameJSON `json:"ExitDescription"`
}

type StationFacilityJSON struct {
	StationID           string `json:"StationID"`
	FacilityDescription string `json:"FacilityDescription"`
}

// Parses StationExit. Exits of unknown stations are skipped.
func ParseStationExit(writer storage.DatasetWriter, data io.Reader, stations map[string]string) error {
	exitsJSON := []*StationExitJSON{}
	if err := json.NewDecoder(data).Decode(&exitsJSON); err != nil {
		return fmt.Errorf("unmarshaling exits: %w", err)
	}

	for i, e := range exitsJSON {
		if stations[e.StationID] == "" {
			continue
		}
		if e.ExitID == "" {
			return fmt.Errorf("exit without ExitID (record %d)", i+1)
		}

		err := writer.WriteExit(model.Exit{
			StationID:   e.StationID,
			ExitID:      e.ExitID,
			Description: strings.TrimSpace(e.ExitDescription.ZhTw),
		})
		if err != nil {
			return errors.Wrapf(err, "writing exit (record %d)", i+1)
		}
	}

	return nil
}

// Parses StationFacility. Descriptions are multi-line free text;
// line endings are normalized to "\n".
func ParseStationFacility(writer storage.DatasetWriter, data io.Reader, stations map[string]string) error {
	facilitiesJSON := []*StationFacilityJSON{}
	if err := json.NewDecoder(data).Decode(&facilitiesJSON); err != nil {
		return fmt.Errorf("unmarshaling facilities: %w", err)
	}

	for i, f := range facilitiesJSON {
		if stations[f.StationID] == "" {
			continue
		}

		desc := strings.ReplaceAll(f.FacilityDescription, "\r\n", "\n")
		desc = strings.TrimSpace(desc)
		if desc == "" {
			continue
		}

		err := writer.WriteFacility(model.Facility{
			StationID:   f.StationID,
			Description: desc,
		})
		if err != nil {
			return errors.Wrapf(err, "writing facility (record %d)", i+1)
		}
	}

	return nil
}
