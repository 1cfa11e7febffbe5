// Package weather turns live OpenWeatherMap readings into the climate that
// scales need drift.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the OpenWeatherMap current-weather endpoint.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// A failing endpoint is left alone for a penalty that doubles per failure.
const (
	minPenalty = time.Minute
	maxPenalty = 10 * time.Minute
)

// Client polls OpenWeatherMap for one place. A reading is reused until it
// goes stale, and the last good reading stands in while the endpoint fails.
type Client struct {
	apiKey   string
	place    string
	endpoint string
	http     *http.Client
	now      func() time.Time

	mu         sync.Mutex
	last       *Conditions
	lastAt     time.Time
	ttl        time.Duration
	quietUntil time.Time
	penalty    time.Duration
}

// NewClient creates a weather client, or nil when no key is configured.
func NewClient(apiKey, place string) *Client {
	if apiKey == "" {
		return nil
	}
	if place == "" {
		place = "San Diego,US"
	}
	return &Client{
		apiKey:   apiKey,
		place:    place,
		endpoint: DefaultBaseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		ttl:      5 * time.Minute,
	}
}

// WithBaseURL points the client at another endpoint.
func (c *Client) WithBaseURL(u string) *Client {
	c.endpoint = u
	return c
}

// Conditions holds parsed weather data from the API.
type Conditions struct {
	Temp        float64 `json:"temp"` // Celsius
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"` // m/s
	IsStorm     bool    `json:"is_storm"`
	IsSnow      bool    `json:"is_snow"`
	IsRain      bool    `json:"is_rain"`
}

// Fetch returns the current conditions. An error is returned only when the
// endpoint fails and no earlier reading exists.
func (c *Client) Fetch(ctx context.Context) (*Conditions, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.last != nil && now.Sub(c.lastAt) < c.ttl {
		return c.last, nil
	}
	if now.Before(c.quietUntil) {
		return c.fallback(fmt.Errorf("weather: endpoint quiet until %s", c.quietUntil.Format(time.TimeOnly)))
	}

	cond, err := c.get(ctx)
	if err != nil {
		c.penalty = min(max(2*c.penalty, minPenalty), maxPenalty)
		c.quietUntil = now.Add(c.penalty)
		slog.Debug("weather unavailable", "place", c.place, "retry_in", c.penalty, "error", err)
		return c.fallback(err)
	}
	c.last, c.lastAt = cond, now
	c.penalty, c.quietUntil = 0, time.Time{}
	return cond, nil
}

func (c *Client) fallback(err error) (*Conditions, error) {
	if c.last != nil {
		return c.last, nil
	}
	return nil, err
}

// get performs one request and parses the reply.
func (c *Client) get(ctx context.Context) (*Conditions, error) {
	q := url.Values{}
	q.Set("q", c.place)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: get %s: %w", c.place, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("weather: read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var owm struct {
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	}
	if err := json.Unmarshal(body, &owm); err != nil {
		return nil, fmt.Errorf("weather: decode reply: %w", err)
	}

	cond := &Conditions{Temp: owm.Main.Temp, WindSpeed: owm.Wind.Speed}
	if len(owm.Weather) > 0 {
		w := owm.Weather[0]
		cond.Description = w.Description
		switch strings.ToLower(w.Main) {
		case "rain", "drizzle":
			cond.IsRain = true
		case "snow":
			cond.IsSnow = true
		case "thunderstorm":
			cond.IsStorm = true
		}
	}
	cond.IsStorm = cond.IsStorm || cond.WindSpeed > 15

	slog.Debug("weather fetched", "place", c.place, "temp", cond.Temp, "desc", cond.Description)
	return cond, nil
}

// Climate is how hot or cold the world currently runs, each in [0, 1].
// The zero value is mild weather and leaves need drift untouched.
type Climate struct {
	Heat        float64 `json:"heat"`
	Cold        float64 `json:"cold"`
	Description string  `json:"description,omitempty"`
}

// Scale returns the drift multiplier for a need with the given sensitivities.
func (c Climate) Scale(heatFactor, coldFactor float64) float64 {
	return max(1+c.Heat*heatFactor+c.Cold*coldFactor, 0)
}

// MapToClimate converts real weather conditions to a climate. Heat ramps from
// 20°C to 40°C and cold from 10°C down to -10°C; snow and storms add chill.
func MapToClimate(c *Conditions) Climate {
	if c == nil {
		return Climate{Description: "fair weather"}
	}
	cl := Climate{Description: c.Description}
	cl.Heat = clamp01((c.Temp - 20) / 20)
	cl.Cold = clamp01((10 - c.Temp) / 20)
	if c.IsSnow {
		cl.Cold = clamp01(cl.Cold + 0.25)
	}
	if c.IsStorm {
		cl.Cold = clamp01(cl.Cold + 0.1)
	}
	return cl
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
