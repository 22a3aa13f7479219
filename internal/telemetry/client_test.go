package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/i474232898/caci-forecaster/internal/forecast"
)

func newTestClient(srv *httptest.Server, timeout time.Duration) *Client {
	return NewClient(&http.Client{Timeout: timeout}, Config{
		BaseURL:   srv.URL,
		ChannelID: "123",
		ReadKey:   "rk",
		WriteKey:  "wk",
	})
}

func TestFetchLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/123/feeds/last.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_key"); got != "rk" {
			t.Errorf("expected read key, got %q", got)
		}
		_, _ = w.Write([]byte(`{"created_at":"2026-10-19T08:00:00Z","entry_id":9,
			"field1":"400","field2":"25.5","field3":"50","field4":null,"field5":"60"}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv, time.Second).FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := forecast.SensorReading{CO2: 400, Temperature: 25.5, Humidity: 50, AQI: 0, CACI: 60}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("reading mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchLatestAbsentFieldsReadAsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entry_id":1,"field1":"410","field3":""}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv, time.Second).FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(forecast.SensorReading{CO2: 410}, got); diff != "" {
		t.Fatalf("reading mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchLatestFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"access denied", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("-1"))
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}},
		{"non-numeric field", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"field1":"n/a"}`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newTestClient(srv, 50*time.Millisecond).FetchLatest(context.Background())
			if !errors.Is(err, ErrFetch) {
				t.Fatalf("expected ErrFetch, got %v", err)
			}
		})
	}
}

func TestPublish(t *testing.T) {
	var gotValue, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/update" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotValue = r.URL.Query().Get(OutputField)
		gotKey = r.URL.Query().Get("api_key")
		_, _ = w.Write([]byte("42"))
	}))
	defer srv.Close()

	if err := newTestClient(srv, time.Second).Publish(context.Background(), 63.1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotValue != "63.1" || gotKey != "wk" {
		t.Fatalf("expected field6=63.1 api_key=wk, got field6=%q api_key=%q", gotValue, gotKey)
	}
}

func TestPublishRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0"))
	}))
	defer srv.Close()

	err := newTestClient(srv, time.Second).Publish(context.Background(), 50)
	if !errors.Is(err, ErrPublish) {
		t.Fatalf("expected ErrPublish, got %v", err)
	}
}

func TestPublishDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestClient(srv, time.Second).Publish(context.Background(), 50)
	if !errors.Is(err, ErrPublish) {
		t.Fatalf("expected ErrPublish, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one request, got %d", calls)
	}
}

func TestTrippedBreakerReopensWithinInterval(t *testing.T) {
	var hits atomic.Int32
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"field1":"400"}`))
	}))
	defer srv.Close()

	interval := 40 * time.Millisecond
	c := NewClient(&http.Client{Timeout: time.Second}, Config{
		BaseURL:   srv.URL,
		ChannelID: "123",
		Interval:  interval,
	})

	for i := 0; i < 5; i++ {
		if _, err := c.FetchLatest(context.Background()); !errors.Is(err, ErrFetch) {
			t.Fatalf("run %d: expected ErrFetch, got %v", i, err)
		}
	}
	if got := hits.Load(); got != 5 {
		t.Fatalf("expected 5 requests before the breaker trips, got %d", got)
	}

	healthy.Store(true)
	time.Sleep(interval)

	got, err := c.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("next run after trip: unexpected error: %v", err)
	}
	if got.CO2 != 400 {
		t.Fatalf("expected CO2 400, got %v", got.CO2)
	}
	if hits.Load() != 6 {
		t.Fatalf("expected the next run to reach the channel, got %d requests", hits.Load())
	}
}

func TestBreakerTimeout(t *testing.T) {
	cases := map[time.Duration]time.Duration{
		0:                maxOpenTimeout,
		2 * time.Minute:  time.Minute,
		7 * time.Minute:  210 * time.Second,
		30 * time.Minute: maxOpenTimeout,
	}
	for interval, want := range cases {
		if got := breakerTimeout(interval); got != want {
			t.Errorf("breakerTimeout(%v): expected %v, got %v", interval, want, got)
		}
	}
}

func TestFormatValue(t *testing.T) {
	cases := map[forecast.Value]string{
		63:       "63",
		63.1:     "63.1",
		57.456:   "57.46",
		0.004999: "0",
	}
	for in, want := range cases {
		if got := FormatValue(in); got != want {
			t.Errorf("FormatValue(%v): expected %q, got %q", in, want, got)
		}
	}
}
