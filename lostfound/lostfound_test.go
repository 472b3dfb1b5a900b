package lostfound

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metropet.dev/trtc/model"
)

func TestParseItems(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		items   []model.LostItem
		err     bool
	}{
		{
			"date_layouts",
			`[
			 {"laName": " 錢包 ", "laPlace": "台北車站", "laDate": "2024-05-09"},
			 {"laName": "雨傘", "laPlace": "西門站", "laDate": "2024/05/08"},
			 {"laName": "手機", "laPlace": "中山站", "laDate": "2024/5/7"},
			 {"laName": "耳機", "laPlace": "雙連站", "laDate": "2024-05-06 18:30:00"}
			]`,
			[]model.LostItem{
				{Name: "錢包", Place: "台北車站", Date: time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)},
				{Name: "雨傘", Place: "西門站", Date: time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)},
				{Name: "手機", Place: "中山站", Date: time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC)},
				{Name: "耳機", Place: "雙連站", Date: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)},
			},
			false,
		},

		{
			"bad_dates_skipped",
			`[
			 {"laName": "錢包", "laPlace": "台北車站"},
			 {"laName": "雨傘", "laPlace": "西門站", "laDate": "yesterday"},
			 {"laName": "手機", "laPlace": "中山站", "laDate": "2024-05-07"}
			]`,
			[]model.LostItem{
				{Name: "手機", Place: "中山站", Date: time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC)},
			},
			false,
		},

		{
			"bom",
			"\xef\xbb\xbf[]",
			[]model.LostItem{},
			false,
		},

		{
			"not_an_array",
			`{"laName": "錢包"}`,
			nil,
			true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			items, err := ParseItems([]byte(tc.content))
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.items, items)
		})
	}
}

func TestClientLostItems(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`[{"laName": "雨傘", "laPlace": "西門站", "laDate": "2024-05-08"}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL)

	items, err := c.LostItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.LostItem{
		{Name: "雨傘", Place: "西門站", Date: time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)},
	}, items)

	// Cached
	_, err = c.LostItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))

	c.CacheTTL = 0
	_, err = c.LostItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestClientLostItemsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).LostItems(context.Background())
	assert.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultURL, c.URL)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.Equal(t, DefaultCacheTTL, c.CacheTTL)
}
