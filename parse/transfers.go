package parse

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"metropet.dev/trtc/model"
	"metropet.dev/trtc/storage"
)

type LineTransferJSON struct {
	FromLineID       string  `json:"FromLineID"`
	FromStationID    string  `json:"FromStationID"`
	ToLineID         string  `json:"ToLineID"`
	ToStationID      string  `json:"ToStationID"`
	IsOnSiteTransfer int     `json:"IsOnSiteTransfer"`
	TransferTime     float64 `json:"TransferTime"`
}

// Parses LineTransfer. Station IDs are not checked against the set of
// known stations; transfers touching unknown stations are dropped when
// the graph is built.
func ParseLineTransfer(writer storage.DatasetWriter, data io.Reader) (int, error) {
	transfersJSON := []*LineTransferJSON{}
	if err := json.NewDecoder(data).Decode(&transfersJSON); err != nil {
		return 0, fmt.Errorf("unmarshaling transfers: %w", err)
	}

	for i, t := range transfersJSON {
		if t.FromStationID == "" || t.ToStationID == "" {
			return 0, fmt.Errorf("transfer %d is missing a station ID", i+1)
		}
		if t.TransferTime < 0 {
			return 0, fmt.Errorf("transfer %d has negative TransferTime", i+1)
		}

		err := writer.WriteTransfer(model.Transfer{
			FromStationID: t.FromStationID,
			FromLineID:    t.FromLineID,
			ToStationID:   t.ToStationID,
			ToLineID:      t.ToLineID,
			Cost:          t.TransferTime,
		})
		if err != nil {
			return 0, errors.Wrapf(err, "writing transfer (record %d)", i+1)
		}
	}

	return len(transfersJSON), nil
}
