// Package lostfound reads the metro's open lost property feed.
package lostfound

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spkg/bom"

	"metropet.dev/trtc/downloader"
	"metropet.dev/trtc/model"
)

const (
	DefaultURL      = "https://data.metro.taipei/api/v1/List/LostAndFound"
	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 10 * time.Minute
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

// Fetches the lost property list. The feed is small and changes a few
// times a day, so responses are cached for CacheTTL.
type Client struct {
	URL        string
	Timeout    time.Duration
	CacheTTL   time.Duration
	Downloader downloader.Downloader
}

func NewClient(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		URL:        url,
		Timeout:    DefaultTimeout,
		CacheTTL:   DefaultCacheTTL,
		Downloader: downloader.NewMemoryDownloader(),
	}
}

// All items currently listed, in feed order.
func (c *Client) LostItems(ctx context.Context) ([]model.LostItem, error) {
	body, err := c.Downloader.Get(ctx, c.URL, map[string]string{
		"Accept": "application/json",
	}, downloader.GetOptions{
		Timeout:  c.Timeout,
		Cache:    c.CacheTTL > 0,
		CacheTTL: c.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching lost items: %w", err)
	}

	return ParseItems(body)
}

type itemJSON struct {
	Name  string `json:"laName"`
	Place string `json:"laPlace"`
	Date  string `json:"laDate"`
}

// Parses the feed. Items with a missing or malformed date are skipped.
func ParseItems(data []byte) ([]model.LostItem, error) {
	raw := []itemJSON{}
	if err := json.Unmarshal(bom.Clean(data), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling lost items: %w", err)
	}

	items := make([]model.LostItem, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		date, ok := parseDate(r.Date)
		if !ok {
			skipped++
			continue
		}
		items = append(items, model.LostItem{
			Name:  strings.TrimSpace(r.Name),
			Place: strings.TrimSpace(r.Place),
			Date:  date,
		})
	}

	if skipped > 0 {
		log.Printf("lostfound: skipped %d items without a valid date", skipped)
	}

	return items, nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
