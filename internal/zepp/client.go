package zepp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBandDataURL = "https://api-mifit.huami.com"
	defaultEventURL    = "https://api-mifit.zepp.com"
	// PAI history is only served from the de2 cluster.
	defaultPaiEventURL = "https://api-mifit-de2.zepp.com"

	eventStress      = "all_day_stress"
	eventBloodOxygen = "blood_oxygen"
	eventPai         = "PaiHealthInfo"
	eventLimit       = "1000"
	eventTimeZone    = "Europe/London"
)

// DayData is one day's entry from the band data endpoint. Summary is a
// base64-encoded JSON envelope; HeartRate, when present, is a base64-encoded
// packed sample blob.
type DayData struct {
	Date      string `json:"date_time"`
	Summary   string `json:"summary"`
	HeartRate string `json:"data_hr"`
}

// DecodeEnvelope unwraps a day's base64 summary into its keyed sub-objects.
func DecodeEnvelope(summary string) (map[string]json.RawMessage, error) {
	raw, err := base64.StdEncoding.DecodeString(summary)
	if err != nil {
		return nil, fmt.Errorf("decode summary base64: %w", err)
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("parse summary envelope: %w", err)
	}
	return envelope, nil
}

// DecodeHeartRateBlob unwraps a day's base64 heart-rate sample blob.
func DecodeHeartRateBlob(blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decode heart rate base64: %w", err)
	}
	return raw, nil
}

// Client issues authenticated data queries against the Zepp/Mi-Fit API on
// behalf of one session.
type Client struct {
	bandDataURL string
	eventURL    string
	paiEventURL string
	session     Session
	client      *http.Client
	logger      *slog.Logger
}

func NewClient(session Session, logger *slog.Logger) *Client {
	return &Client{
		bandDataURL: defaultBandDataURL,
		eventURL:    defaultEventURL,
		paiEventURL: defaultPaiEventURL,
		session:     session,
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

type bandDataResponse struct {
	Data []DayData `json:"data"`
}

// BandData fetches the per-day summaries for the inclusive date range.
// Dates are formatted YYYY-MM-DD.
func (c *Client) BandData(ctx context.Context, fromDate, toDate string) ([]DayData, error) {
	params := url.Values{
		"query_type":  {"detail"},
		"device_type": {deviceModel},
		"userid":      {c.session.UserID},
		"from_date":   {fromDate},
		"to_date":     {toDate},
	}

	body, err := c.get(ctx, c.bandDataURL+"/v1/data/band_data.json", params)
	if err != nil {
		return nil, fmt.Errorf("band data query: %w", err)
	}

	var resp bandDataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse band data: %w", err)
	}
	return resp.Data, nil
}

// StressEvents fetches all-day stress entries between from and to.
func (c *Client) StressEvents(ctx context.Context, from, to time.Time) ([]json.RawMessage, error) {
	return c.events(ctx, c.eventURL, eventStress, from, to, "")
}

// BloodOxygenEvents fetches SpO2 events between from and to.
func (c *Client) BloodOxygenEvents(ctx context.Context, from, to time.Time) ([]json.RawMessage, error) {
	return c.events(ctx, c.eventURL, eventBloodOxygen, from, to, eventTimeZone)
}

// PaiEvents fetches Personal Activity Intelligence entries between from and to.
func (c *Client) PaiEvents(ctx context.Context, from, to time.Time) ([]json.RawMessage, error) {
	return c.events(ctx, c.paiEventURL, eventPai, from, to, eventTimeZone)
}

type eventsResponse struct {
	Items []json.RawMessage `json:"items"`
}

func (c *Client) events(ctx context.Context, base, eventType string, from, to time.Time, timeZone string) ([]json.RawMessage, error) {
	params := url.Values{
		"eventType": {eventType},
		"from":      {strconv.FormatInt(from.UnixMilli(), 10)},
		"to":        {strconv.FormatInt(to.UnixMilli(), 10)},
		"limit":     {eventLimit},
	}
	if timeZone != "" {
		params.Set("timeZone", timeZone)
	}

	body, err := c.get(ctx, base+"/users/"+url.PathEscape(c.session.UserID)+"/events", params)
	if err != nil {
		return nil, fmt.Errorf("%s events query: %w", eventType, err)
	}

	// Accounts without the feature get a body with no items key at all;
	// that is an empty result, not an error.
	var resp eventsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse %s events: %w", eventType, err)
	}
	return resp.Items, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apptoken", c.session.AppToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
