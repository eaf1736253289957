// Package sheets retrieves a thermostat schedule from the public Google
// Sheets list feed. The feed is fetched once per request, without
// retries; callers decide what a failure means.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/thermhub/thermhub/internal/schedule"
)

var (
	// ErrFetchFailed indicates the feed could not be retrieved.
	ErrFetchFailed = errors.New("schedule fetch failed")
	// ErrParseFailed indicates the feed did not contain a valid schedule document.
	ErrParseFailed = errors.New("schedule parse failed")
)

const defaultBaseURL = "https://spreadsheets.google.com"

// Client fetches schedule documents by spreadsheet id.
type Client struct {
	BaseURL string
	client  *resty.Client
	logger  *slog.Logger
}

// New returns a Client for the public Google Sheets feed.
func New(logger *slog.Logger) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		client:  resty.New().SetTimeout(10 * time.Second),
		logger:  logger,
	}
}

// cell is a single worksheet cell in the list feed.
type cell struct {
	Text string `json:"$t"`
}

type feedEntry struct {
	Day         *cell `json:"gsx$day"`
	Time        *cell `json:"gsx$time"`
	Temperature *cell `json:"gsx$temperature"`
}

type feedDocument struct {
	Feed *struct {
		Entry []feedEntry `json:"entry"`
	} `json:"feed"`
}

// Fetch retrieves the raw schedule rows for the given spreadsheet id.
func (c *Client) Fetch(ctx context.Context, scheduleID string) ([]schedule.RawEntry, error) {
	url := fmt.Sprintf("%s/feeds/list/%s/od6/public/values?alt=json", c.BaseURL, scheduleID)
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		c.logger.Warn("could not retrieve spreadsheet", slog.String("id", scheduleID), slog.Any("err", err))
		return nil, fmt.Errorf("%w: %s", ErrFetchFailed, err.Error())
	}
	if resp.StatusCode() != 200 {
		c.logger.Warn("could not retrieve spreadsheet", slog.String("id", scheduleID), slog.Int("code", resp.StatusCode()))
		return nil, fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode())
	}

	var document feedDocument
	if err = json.Unmarshal(resp.Body(), &document); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrParseFailed, err.Error())
	}
	if document.Feed == nil || document.Feed.Entry == nil {
		return nil, fmt.Errorf("%w: unexpected document structure", ErrParseFailed)
	}

	entries := make([]schedule.RawEntry, 0, len(document.Feed.Entry))
	for _, entry := range document.Feed.Entry {
		if entry.Day == nil || entry.Time == nil || entry.Temperature == nil {
			return nil, fmt.Errorf("%w: entry is missing a column", ErrParseFailed)
		}
		entries = append(entries, schedule.RawEntry{
			Day:         entry.Day.Text,
			Time:        entry.Time.Text,
			Temperature: entry.Temperature.Text,
		})
	}
	return entries, nil
}
