// Package telemetry talks to the ThingSpeak channel that holds live sensor
// readings (field1..field5) and receives the forecast (field6).
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/caci-forecaster/internal/forecast"
)

var (
	// ErrFetch wraps every failure to read the latest reading.
	ErrFetch = errors.New("fetch latest reading")
	// ErrPublish wraps every failure to write the forecast.
	ErrPublish = errors.New("publish forecast")
)

// OutputField is the channel field the forecast is written to.
const OutputField = "field6"

// Config identifies the channel and its keys.
type Config struct {
	BaseURL   string
	ChannelID string
	ReadKey   string
	WriteKey  string
	// Interval is the scheduled run cadence; it bounds how long a tripped
	// breaker rejects requests.
	Interval  time.Duration
}

// Client reads the latest channel entry and writes forecasts back.
// No request is retried; the next scheduled run is the retry.
type Client struct {
	cfg      Config
	client   *http.Client
	readCB   *gobreaker.CircuitBreaker
	writeCB  *gobreaker.CircuitBreaker
	maxBytes int64
}

func NewClient(client *http.Client, cfg Config) *Client {
	return &Client{
		cfg:      cfg,
		client:   client,
		readCB:   newCircuitBreaker("thingspeak-read", cfg.Interval),
		writeCB:  newCircuitBreaker("thingspeak-write", cfg.Interval),
		maxBytes: 1 << 20,
	}
}

// lastEntry is the feeds/last.json payload. ThingSpeak sends field values
// as strings, or null when a field was not written in that entry.
type lastEntry struct {
	CreatedAt string          `json:"created_at"`
	EntryID   int64           `json:"entry_id"`
	Field1    json.RawMessage `json:"field1"`
	Field2    json.RawMessage `json:"field2"`
	Field3    json.RawMessage `json:"field3"`
	Field4    json.RawMessage `json:"field4"`
	Field5    json.RawMessage `json:"field5"`
}

// FetchLatest reads the most recent channel entry.
func (c *Client) FetchLatest(ctx context.Context) (forecast.SensorReading, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		if c.cfg.ReadKey != "" {
			values.Set("api_key", c.cfg.ReadKey)
		}
		u := fmt.Sprintf("%s/channels/%s/feeds/last.json", c.cfg.BaseURL, url.PathEscape(c.cfg.ChannelID))
		if len(values) > 0 {
			u += "?" + values.Encode()
		}
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, c.client, c.readCB, buildRequest)
	if err != nil {
		return forecast.SensorReading{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return forecast.SensorReading{}, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	body = bytes.TrimSpace(body)
	// ThingSpeak answers -1 for a private channel read without a valid key.
	if string(body) == "-1" {
		return forecast.SensorReading{}, fmt.Errorf("%w: channel access denied", ErrFetch)
	}

	var payload lastEntry
	if err := json.Unmarshal(body, &payload); err != nil {
		return forecast.SensorReading{}, fmt.Errorf("%w: decode: %v", ErrFetch, err)
	}

	var vals [forecast.FeatureCount]float64
	for i, raw := range []json.RawMessage{payload.Field1, payload.Field2, payload.Field3, payload.Field4, payload.Field5} {
		v, err := parseField(raw)
		if err != nil {
			return forecast.SensorReading{}, fmt.Errorf("%w: field%d (%s): %v", ErrFetch, i+1, forecast.FeatureNames[i], err)
		}
		vals[i] = v
	}

	return forecast.SensorReading{
		CO2:         vals[0],
		Temperature: vals[1],
		Humidity:    vals[2],
		AQI:         vals[3],
		CACI:        vals[4],
	}, nil
}

// Publish writes the forecast to the output field.
func (c *Client) Publish(ctx context.Context, v forecast.Value) error {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("api_key", c.cfg.WriteKey)
		values.Set(OutputField, FormatValue(v))
		u := fmt.Sprintf("%s/update?%s", c.cfg.BaseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, c.client, c.writeCB, buildRequest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrPublish, err)
	}
	// The update endpoint answers with the new entry id, or 0 when the
	// update was rejected (bad key, rate limit).
	if strings.TrimSpace(string(body)) == "0" {
		return fmt.Errorf("%w: update rejected by channel", ErrPublish)
	}
	return nil
}

// FormatValue renders a forecast the way it is written to the channel.
func FormatValue(v forecast.Value) string {
	return strconv.FormatFloat(forecast.Round2(float64(v)), 'f', -1, 64)
}

func parseField(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return 0, nil
		}
	}
	return strconv.ParseFloat(s, 64)
}
