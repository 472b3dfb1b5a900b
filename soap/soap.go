// Package soap queries the metro operator's route recommendation web
// service.
package soap

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bluele/gcache"

	"metropet.dev/trtc/downloader"
	"metropet.dev/trtc/model"
)

const (
	DefaultEndpoint  = "https://ws.metro.taipei/trtcBeaconBE/RouteControl.asmx"
	DefaultTimeout   = 10 * time.Second
	DefaultCacheTTL  = 6 * time.Hour
	DefaultCacheSize = 512

	soapAction = `"http://tempuri.org/GetRecommandRoute"`
)

const envelope = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <GetRecommandRoute xmlns="http://tempuri.org/">
      <entrySid>%s</entrySid>
      <exitSid>%s</exitSid>
      <username>%s</username>
      <password>%s</password>
    </GetRecommandRoute>
  </soap:Body>
</soap:Envelope>`

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// Calls GetRecommandRoute. Results, including empty ones, are cached
// per station pair.
type Client struct {
	Endpoint string
	Username string
	Password string
	Timeout  time.Duration

	cache gcache.Cache
}

func NewClient(endpoint, username, password string, cacheTTL time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}

	return &Client{
		Endpoint: endpoint,
		Username: username,
		Password: password,
		Timeout:  DefaultTimeout,
		cache:    gcache.New(DefaultCacheSize).LRU().Expiration(cacheTTL).Build(),
	}
}

type cached struct {
	rec *model.Recommendation
}

// Gets the recommended route between two SIDs. Returns nil, nil when
// the service has no recommendation.
func (c *Client) Recommend(ctx context.Context, fromSID, toSID string) (*model.Recommendation, error) {
	key := fromSID + "->" + toSID
	if v, err := c.cache.Get(key); err == nil {
		return v.(cached).rec, nil
	}

	body := fmt.Sprintf(
		envelope,
		escape(fromSID), escape(toSID), escape(c.Username), escape(c.Password),
	)

	resp, err := downloader.HTTPDo(ctx, "POST", c.Endpoint, map[string]string{
		"Content-Type": "text/xml; charset=utf-8",
		"SOAPAction":   soapAction,
	}, []byte(body), downloader.GetOptions{Timeout: c.Timeout})
	if err != nil {
		return nil, fmt.Errorf("calling GetRecommandRoute: %w", err)
	}

	rec, err := ParseResponse(resp)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, cached{rec})

	return rec, nil
}

type recommendationJSON struct {
	Path             string          `json:"Path"`
	Time             json.RawMessage `json:"Time"`
	TransferStations string          `json:"TransferStations"`
}

// Extracts the recommendation from a GetRecommandRoute response. The
// result is a JSON document embedded in the SOAP envelope.
func ParseResponse(resp []byte) (*model.Recommendation, error) {
	resp = bytes.TrimPrefix(resp, []byte("\xef\xbb\xbf"))

	text := resultText(resp)
	block := jsonBlockRe.FindString(text)
	if block == "" {
		return nil, nil
	}

	r := recommendationJSON{}
	if err := json.Unmarshal([]byte(block), &r); err != nil {
		return nil, fmt.Errorf("unmarshaling recommendation: %w", err)
	}

	waypoints := splitStations(r.Path)
	if len(waypoints) == 0 {
		return nil, nil
	}

	minutes, err := parseTime(r.Time)
	if err != nil {
		return nil, err
	}

	return &model.Recommendation{
		Waypoints:        waypoints,
		TotalMinutes:     minutes,
		TransferStations: splitStations(r.TransferStations),
	}, nil
}

// The text content of the response envelope, entities decoded. Falls
// back to the raw response when it isn't well formed XML.
func resultText(resp []byte) string {
	decoder := xml.NewDecoder(bytes.NewReader(resp))
	var sb strings.Builder
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			sb.Write(cd)
		}
	}
	if strings.Contains(sb.String(), "{") {
		return sb.String()
	}
	return string(resp)
}

// Splits a "-" separated station list. Segments naming a line rather
// than a station are dropped.
func splitStations(s string) []string {
	stations := []string{}
	for _, seg := range strings.Split(s, "-") {
		seg = strings.TrimSpace(seg)
		if seg == "" || strings.Contains(seg, "線") {
			continue
		}
		stations = append(stations, seg)
	}
	return stations
}

func parseTime(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid Time %q", s)
		}
		return n, nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("invalid Time %s", string(raw))
	}
	return int(f), nil
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
