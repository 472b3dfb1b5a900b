// Package tdx fetches TRTC network data from the Transport Data
// eXchange (TDX) API.
package tdx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"metropet.dev/trtc/downloader"
	"metropet.dev/trtc/parse"
)

const (
	DefaultBaseURL      = "https://tdx.transportdata.tw/api/basic"
	DefaultTokenURL     = "https://tdx.transportdata.tw/auth/realms/TDXConnect/protocol/openid-connect/token"
	DefaultOperator     = "TRTC"
	DefaultPageSize     = 500
	DefaultFarePageSize = 1000
	DefaultTimeout      = 30 * time.Second
	DefaultMaxElapsed   = 2 * time.Minute
	DefaultRetryDelay   = time.Second
	DefaultMaxPages     = 200
)

// Fetches TDX datasets, page by page, authenticating with an OAuth2
// client credentials grant.
type Client struct {
	BaseURL      string
	Operator     string
	PageSize     int
	FarePageSize int
	MaxPages     int
	Timeout      time.Duration

	// Initial delay and upper bound on the time spent retrying a
	// single page.
	RetryDelay time.Duration
	MaxElapsed time.Duration

	// Responses are cached for CacheTTL when non-zero.
	CacheTTL time.Duration

	Downloader  downloader.Downloader
	TokenSource oauth2.TokenSource
}

// Creates a client for the public TDX API.
func NewClient(clientID, clientSecret string) *Client {
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     DefaultTokenURL,
	}
	return NewClientWithTokenSource(
		DefaultBaseURL,
		cc.TokenSource(context.Background()),
	)
}

func NewClientWithTokenSource(baseURL string, ts oauth2.TokenSource) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Operator:     DefaultOperator,
		PageSize:     DefaultPageSize,
		FarePageSize: DefaultFarePageSize,
		MaxPages:     DefaultMaxPages,
		Timeout:      DefaultTimeout,
		RetryDelay:   DefaultRetryDelay,
		MaxElapsed:   DefaultMaxElapsed,
		Downloader:   downloader.NewMemoryDownloader(),
		TokenSource:  ts,
	}
}

func (c *Client) Name() string {
	return "tdx"
}

// Fetches every dataset file TDX provides, keyed by the file names
// parse.ParseDataset expects.
func (c *Client) FetchDataset(ctx context.Context) (map[string][]byte, error) {
	files := map[string][]byte{}

	for _, ep := range []struct {
		dataset  string
		file     string
		pageSize int
	}{
		{"StationOfRoute", parse.StationOfRouteFile, c.PageSize},
		{"LineTransfer", parse.LineTransferFile, c.PageSize},
		{"ODFare", parse.ODFareFile, c.FarePageSize},
		{"StationExit", parse.StationExitFile, c.PageSize},
		{"StationFacility", parse.StationFacilityFile, c.PageSize},
	} {
		buf, err := c.FetchAll(ctx, ep.dataset, ep.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", ep.dataset, err)
		}
		files[ep.file] = buf
	}

	timetable, err := c.FetchAll(ctx, "FirstLastTimetable", c.PageSize)
	if err != nil {
		return nil, fmt.Errorf("fetching FirstLastTimetable: %w", err)
	}
	files[parse.FirstLastFile], err = FirstLastTimetableCSV(timetable)
	if err != nil {
		return nil, fmt.Errorf("converting FirstLastTimetable: %w", err)
	}

	return files, nil
}

// Fetches all pages of a dataset and returns them as a single JSON
// array.
func (c *Client) FetchAll(ctx context.Context, dataset string, pageSize int) ([]byte, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	all := []json.RawMessage{}
	for page := 0; ; page++ {
		if c.MaxPages > 0 && page >= c.MaxPages {
			return nil, fmt.Errorf("more than %d pages", c.MaxPages)
		}

		items, err := c.fetchPage(ctx, dataset, pageSize, page*pageSize)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		all = append(all, items...)

		if len(items) < pageSize {
			break
		}
	}

	log.Printf("tdx: fetched %d %s records", len(all), dataset)

	return json.Marshal(all)
}

func (c *Client) pageURL(dataset string, top, skip int) string {
	q := url.Values{}
	q.Set("$format", "JSON")
	q.Set("$top", fmt.Sprint(top))
	q.Set("$skip", fmt.Sprint(skip))
	return fmt.Sprintf(
		"%s/v2/Rail/Metro/%s/%s?%s",
		c.BaseURL, dataset, url.PathEscape(c.Operator), q.Encode(),
	)
}

func (c *Client) fetchPage(ctx context.Context, dataset string, top, skip int) ([]json.RawMessage, error) {
	pageURL := c.pageURL(dataset, top, skip)

	var body []byte
	operation := func() error {
		headers := map[string]string{"Accept": "application/json"}
		if c.TokenSource != nil {
			token, err := c.TokenSource.Token()
			if err != nil {
				return backoff.Permanent(fmt.Errorf("getting token: %w", err))
			}
			headers["Authorization"] = token.Type() + " " + token.AccessToken
		}

		var err error
		body, err = c.Downloader.Get(ctx, pageURL, headers, downloader.GetOptions{
			Timeout:  c.Timeout,
			Cache:    c.CacheTTL > 0,
			CacheTTL: c.CacheTTL,
		})
		if err == nil {
			return nil
		}

		var statusErr *downloader.StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryDelay
	b.MaxElapsedTime = c.MaxElapsed
	notify := func(err error, wait time.Duration) {
		log.Printf("tdx: %s: %v, retrying in %s", dataset, err, wait)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
	if err != nil {
		return nil, err
	}

	items := []json.RawMessage{}
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling page: %w", err)
	}

	return items, nil
}
