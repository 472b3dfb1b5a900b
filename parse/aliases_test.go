package parse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metropet.dev/trtc/storage"
)

func TestParseAliases(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		aliases map[string]string
		err     bool
	}{
		{
			"simple",
			"alias,official\n北車,台北車站\n 101 , 台北101/世貿 \n",
			map[string]string{"北車": "台北車站", "101": "台北101/世貿"},
			false,
		},

		{
			"columns_reordered",
			"official,alias\n西門,Ximending\n",
			map[string]string{"Ximending": "西門"},
			false,
		},

		{
			"header_only",
			"alias,official\n",
			map[string]string{},
			false,
		},

		{
			"empty_official",
			"alias,official\n北車,\n",
			nil,
			true,
		},

		{
			"repeated_alias",
			"alias,official\n北車,台北車站\n北車,北門\n",
			nil,
			true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := storage.NewMemoryStorage()
			writer, err := s.GetWriter("test")
			require.NoError(t, err)

			err = ParseAliases(writer, bytes.NewBufferString(tc.content))
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			reader, err := s.GetReader("test")
			require.NoError(t, err)
			aliases, err := reader.Aliases()
			require.NoError(t, err)
			assert.Equal(t, tc.aliases, aliases)
		})
	}
}

func TestParseSIDMap(t *testing.T) {
	stations := map[string]string{"BL11": "西門", "R10": "台北車站", "R11": "中山"}

	for _, tc := range []struct {
		name    string
		content string
		ids     map[string]string
		err     bool
	}{
		{
			"strings_and_numbers",
			`[{"SCODE": "BL11", "SID": 86}, {"SCODE": "R10", "SID": "051"}]`,
			map[string]string{"BL11": "86", "R10": "051"},
			false,
		},

		{
			"unknown_station_skipped",
			`[{"SCODE": "Y07", "SID": "200"}, {"SCODE": "R11", "SID": "132"}]`,
			map[string]string{"R11": "132"},
			false,
		},

		{
			"empty_sid",
			`[{"SCODE": "R11", "SID": ""}]`,
			nil,
			true,
		},

		{
			"bad_sid",
			`[{"SCODE": "R11", "SID": [1]}]`,
			nil,
			true,
		},

		{
			"not_json",
			`SCODE,SID`,
			nil,
			true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := storage.NewMemoryStorage()
			writer, err := s.GetWriter("test")
			require.NoError(t, err)

			err = ParseSIDMap(writer, bytes.NewBufferString(tc.content), stations)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			reader, err := s.GetReader("test")
			require.NoError(t, err)
			ids, err := reader.ExternalIDs()
			require.NoError(t, err)
			assert.Equal(t, tc.ids, ids)
		})
	}
}
