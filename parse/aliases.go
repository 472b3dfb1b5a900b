package parse

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"metropet.dev/trtc/model"
	"metropet.dev/trtc/storage"
)

type AliasCSV struct {
	Alias    string `csv:"alias"`
	Official string `csv:"official"`
}

type SIDMapJSON struct {
	SCODE string   `json:"SCODE"`
	SID   sidValue `json:"SID"`
}

// SIDs are published both as numbers and as strings.
type sidValue string

func (v *sidValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = sidValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("SID is neither string nor number: %s", string(b))
	}
	*v = sidValue(n.String())
	return nil
}

// Parses aliases.csv. Official names are not checked here; aliases
// pointing at unknown names resolve to nothing.
func ParseAliases(writer storage.DatasetWriter, data io.Reader) error {
	aliasCsv := []*AliasCSV{}
	if err := gocsv.Unmarshal(data, &aliasCsv); err != nil {
		return errors.Wrap(err, "unmarshaling aliases csv")
	}

	seen := map[string]bool{}
	for i, a := range aliasCsv {
		alias := strings.TrimSpace(a.Alias)
		official := strings.TrimSpace(a.Official)
		if alias == "" || official == "" {
			return fmt.Errorf("empty alias or official name (row %d)", i+1)
		}
		if seen[alias] {
			return fmt.Errorf("repeated alias '%s' (row %d)", alias, i+1)
		}
		seen[alias] = true

		err := writer.WriteAlias(model.Alias{
			Alias:    alias,
			Official: official,
		})
		if err != nil {
			return errors.Wrapf(err, "writing alias (row %d)", i+1)
		}
	}

	return nil
}

// Parses the station ID to SID map used by the recommendation
// service.
func ParseSIDMap(writer storage.DatasetWriter, data io.Reader, stations map[string]string) error {
	mapJSON := []*SIDMapJSON{}
	if err := json.NewDecoder(data).Decode(&mapJSON); err != nil {
		return fmt.Errorf("unmarshaling sid map: %w", err)
	}

	for i, m := range mapJSON {
		if stations[m.SCODE] == "" {
			continue
		}
		if string(m.SID) == "" {
			return fmt.Errorf("station '%s' has empty SID (record %d)", m.SCODE, i+1)
		}

		err := writer.WriteExternalID(model.ExternalID{
			StationID:  m.SCODE,
			ExternalID: string(m.SID),
		})
		if err != nil {
			return errors.Wrapf(err, "writing external id (record %d)", i+1)
		}
	}

	return nil
}
