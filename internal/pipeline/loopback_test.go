package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/i474232898/caci-forecaster/internal/forecast"
)

func TestLoopbackForecaster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != TransformPath || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]float64
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		for _, k := range forecast.FeatureNames {
			if _, ok := body[k]; !ok {
				t.Errorf("missing key %s in %v", k, body)
			}
		}
		_, _ = w.Write([]byte(`{"status":"success","predicted_caci_1hr":61.25}`))
	}))
	defer srv.Close()

	lf := NewLoopbackForecaster(srv.URL, &http.Client{Timeout: time.Second})
	got, err := lf.Forecast(context.Background(), forecast.SensorReading{CO2: 400})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 61.25 {
		t.Fatalf("expected 61.25, got %v", got)
	}
}

func TestLoopbackForecasterErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   forecast.ErrorKind
	}{
		{"unavailable", http.StatusServiceUnavailable, `{"error":"model not loaded","kind":"model_unavailable"}`, forecast.KindModelUnavailable},
		{"bad input", http.StatusBadRequest, `{"error":"bad"}`, forecast.KindInputShape},
		{"no body", http.StatusInternalServerError, ``, forecast.KindModelInference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewLoopbackForecaster(srv.URL, &http.Client{Timeout: time.Second}).
				Forecast(context.Background(), forecast.SensorReading{})
			if got := forecast.KindOf(err); got != tt.want {
				t.Fatalf("expected kind %s, got %s (%v)", tt.want, got, err)
			}
		})
	}
}

func TestLoopbackForecasterUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewLoopbackForecaster(url, &http.Client{Timeout: time.Second}).
		Forecast(context.Background(), forecast.SensorReading{})
	if err == nil {
		t.Fatal("expected error for unreachable transform")
	}
}
