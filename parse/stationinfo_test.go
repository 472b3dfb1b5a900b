package parse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metropet.dev/trtc/model"
	"metropet.dev/trtc/storage"
)

func TestParseStationExit(t *testing.T) {
	stations := map[string]string{"BL11": "西門"}

	s := storage.NewMemoryStorage()
	writer, err := s.GetWriter("test")
	require.NoError(t, err)

	err = ParseStationExit(writer, bytes.NewBufferString(`[
	 {"StationID": "BL11", "ExitID": "6", "ExitDescription": {"Zh_tw": " 漢中街 "}},
	 {"StationID": "BL11", "ExitID": "1", "ExitDescription": {"Zh_tw": "成都路"}},
	 {"StationID": "XX99", "ExitID": "1", "ExitDescription": {"Zh_tw": "nowhere"}}
	]`), stations)
	require.NoError(t, err)

	reader, err := s.GetReader("test")
	require.NoError(t, err)
	exits, err := reader.Exits("BL11")
	require.NoError(t, err)
	assert.Equal(t, []model.Exit{
		{StationID: "BL11", ExitID: "1", Description: "成都路"},
		{StationID: "BL11", ExitID: "6", Description: "漢中街"},
	}, exits)

	exits, err = reader.Exits("XX99")
	require.NoError(t, err)
	assert.Empty(t, exits)

	// ExitID is required
	err = ParseStationExit(writer, bytes.NewBufferString(`[
	 {"StationID": "BL11", "ExitDescription": {"Zh_tw": "成都路"}}
	]`), stations)
	assert.Error(t, err)
}

func TestParseStationFacility(t *testing.T) {
	stations := map[string]string{"BL11": "西門"}

	s := storage.NewMemoryStorage()
	writer, err := s.GetWriter("test")
	require.NoError(t, err)

	err = ParseStationFacility(writer, bytes.NewBufferString(`[
	 {"StationID": "BL11", "FacilityDescription": "\r\n詢問處\r\n廁所\r\n"},
	 {"StationID": "BL11", "FacilityDescription": "  "},
	 {"StationID": "XX99", "FacilityDescription": "nowhere"}
	]`), stations)
	require.NoError(t, err)

	reader, err := s.GetReader("test")
	require.NoError(t, err)
	facilities, err := reader.Facilities("BL11")
	require.NoError(t, err)
	assert.Equal(t, []model.Facility{
		{StationID: "BL11", Description: "詢問處\n廁所"},
	}, facilities)
}
