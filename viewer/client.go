package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"delyzer.dev/delyzer/downloader"
	"delyzer.dev/delyzer/model"
)

const (
	DefaultURL     = "http://127.0.0.1:8000"
	DefaultTimeout = 10 * time.Second
)

// Client for the delay statistics API. Any non-200 response or
// malformed body is an error.
type Client struct {
	BaseURL    string
	Downloader downloader.Downloader
	Timeout    time.Duration
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Downloader: downloader.HTTP{},
		Timeout:    DefaultTimeout,
	}
}

func (c *Client) get(ctx context.Context, v interface{}, path ...string) error {
	escaped := make([]string, len(path))
	for i, p := range path {
		escaped[i] = url.PathEscape(p)
	}
	u := c.BaseURL + "/" + strings.Join(escaped, "/")

	body, err := c.Downloader.Get(ctx, u, map[string]string{
		"Accept": "application/json",
	}, downloader.GetOptions{Timeout: c.Timeout})
	if err != nil {
		return fmt.Errorf("requesting %s: %w", u, err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", u, err)
	}

	return nil
}

func (c *Client) Lines(ctx context.Context) ([]model.Line, error) {
	resp := struct {
		Lines *[]model.Line `json:"lines"`
	}{}
	if err := c.get(ctx, &resp, "lines"); err != nil {
		return nil, err
	}
	if resp.Lines == nil {
		return nil, fmt.Errorf("response lacks lines")
	}
	return *resp.Lines, nil
}

func (c *Client) LineDelays(ctx context.Context) ([]model.LineDelay, error) {
	resp := struct {
		Delays *[]model.LineDelay `json:"delays"`
	}{}
	if err := c.get(ctx, &resp, "delay", "lines"); err != nil {
		return nil, err
	}
	if resp.Delays == nil {
		return nil, fmt.Errorf("response lacks delays")
	}
	return *resp.Delays, nil
}

func (c *Client) StationDelays(ctx context.Context, line model.Line) ([]model.StationDelay, error) {
	resp := struct {
		Delays *[]model.StationDelay `json:"delays"`
	}{}
	if err := c.get(ctx, &resp, "delay", "stations", line.Number, line.Direction); err != nil {
		return nil, err
	}
	if resp.Delays == nil {
		return nil, fmt.Errorf("response lacks delays")
	}
	return *resp.Delays, nil
}

func (c *Client) StationRisks(ctx context.Context, line model.Line) ([]model.StationDelay, error) {
	resp := struct {
		Propability *[]model.StationDelay `json:"propability"`
	}{}
	if err := c.get(ctx, &resp, "propability", "stations", line.Number, line.Direction); err != nil {
		return nil, err
	}
	if resp.Propability == nil {
		return nil, fmt.Errorf("response lacks propability")
	}
	return *resp.Propability, nil
}

func (c *Client) TimeDelays(ctx context.Context, line model.Line) ([]model.TimeslotDelay, error) {
	resp := struct {
		Times *[][]model.TimeslotDelay `json:"times"`
	}{}
	if err := c.get(ctx, &resp, "delay", "times", line.Number, line.Direction); err != nil {
		return nil, err
	}
	if resp.Times == nil {
		return nil, fmt.Errorf("response lacks times")
	}

	slots := []model.TimeslotDelay{}
	for _, inner := range *resp.Times {
		slots = append(slots, inner...)
	}
	return slots, nil
}
