// Package weather fetches current conditions from OpenWeather.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const baseURL = "https://api.openweathermap.org/data/2.5/weather"

// ErrNotConfigured means the OpenWeather API key is absent. The tool
// layer turns this into a soft error payload instead of failing the turn.
var ErrNotConfigured = errors.New("weather: api key not configured")

// Report is the condensed weather answer handed to the model.
type Report struct {
	Location    string `json:"location"`
	Temperature string `json:"temperature"`
	Description string `json:"description"`
	Humidity    string `json:"humidity"`
}

// Client calls the OpenWeather current-conditions endpoint.
type Client struct {
	apiKey string
	base   string
	http   *http.Client
}

// New creates a weather client. An empty apiKey is allowed; lookups then
// return ErrNotConfigured.
func New(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		base:   baseURL,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

type apiResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// Current returns the current conditions for location.
func (c *Client) Current(ctx context.Context, location string) (Report, error) {
	if c.apiKey == "" {
		return Report{}, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("lang", "es")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"?"+q.Encode(), nil)
	if err != nil {
		return Report{}, fmt.Errorf("weather request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("weather lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Report{}, fmt.Errorf("weather lookup: unexpected status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Report{}, fmt.Errorf("weather decode: %w", err)
	}

	description := ""
	if len(body.Weather) > 0 {
		description = body.Weather[0].Description
	}

	return Report{
		Location:    location,
		Temperature: fmt.Sprintf("%g°C", body.Main.Temp),
		Description: description,
		Humidity:    fmt.Sprintf("%d%%", body.Main.Humidity),
	}, nil
}
