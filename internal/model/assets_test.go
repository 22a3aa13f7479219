package model

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/i474232898/caci-forecaster/internal/forecast"
)

func testPaths(modelFile, inputScaler string) Paths {
	return Paths{
		Model:        filepath.Join("testdata", modelFile),
		InputScaler:  filepath.Join("testdata", inputScaler),
		OutputScaler: filepath.Join("testdata", "scaler_Y.json"),
	}
}

func TestLoadRandomForest(t *testing.T) {
	assets, err := Load(testPaths("rf_caci_model.json", "scaler_X.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr := forecast.NewTransformer(assets)
	got, err := tr.Forecast(context.Background(), forecast.SensorReading{
		CO2: 400, Temperature: 25, Humidity: 50, AQI: 80, CACI: 60,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 63 {
		t.Fatalf("expected 63, got %v", got)
	}
}

func TestLoadLinearYAML(t *testing.T) {
	assets, err := Load(testPaths("linear_model.yaml", "scaler_X.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := forecast.NewTransformer(assets).Forecast(context.Background(), forecast.SensorReading{
		CO2: 400, Temperature: 25, Humidity: 50, AQI: 80, CACI: 60,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 79 {
		t.Fatalf("expected 79, got %v", got)
	}
}

func TestLoadIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name  string
		paths Paths
		want  string
	}{
		{
			name:  "missing model file",
			paths: testPaths("does_not_exist.json", "scaler_X.json"),
			want:  "load model",
		},
		{
			name:  "reordered input features",
			paths: testPaths("rf_caci_model.json", "scaler_X_reordered.json"),
			want:  "input scaler feature 0",
		},
		{
			name:  "malformed tree",
			paths: testPaths("broken_tree.json", "scaler_X.json"),
			want:  "children out of range",
		},
		{
			name: "output scaler too wide",
			paths: Paths{
				Model:        filepath.Join("testdata", "rf_caci_model.json"),
				InputScaler:  filepath.Join("testdata", "scaler_X.json"),
				OutputScaler: filepath.Join("testdata", "scaler_X.json"),
			},
			want: "need 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets, err := Load(tt.paths)
			if err == nil {
				t.Fatalf("expected error, got assets %+v", assets)
			}
			if assets != nil {
				t.Fatalf("expected nil assets on failure")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestScalerRoundTrip(t *testing.T) {
	s, err := NewScaler(ScalerFile{Kind: ScalerMinMax, Min: []float64{-0.5}, Scale: []float64{0.02}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	scaled, err := s.Transform(forecast.FeatureVector{40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := s.InverseTransform(forecast.ScaledPrediction(scaled[0]))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if forecast.Round2(back) != 40 {
		t.Fatalf("expected 40 after round trip, got %v", back)
	}
}

func TestStandardScalerZeroScale(t *testing.T) {
	s, err := NewScaler(ScalerFile{Kind: ScalerStandard, Mean: []float64{3}, Scale: []float64{0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := s.Transform(forecast.FeatureVector{5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0] != 2 {
		t.Fatalf("expected 2, got %v", out[0])
	}
}

func TestScalerWidthMismatch(t *testing.T) {
	s, err := NewScaler(ScalerFile{Kind: ScalerStandard, Mean: []float64{0, 0}, Scale: []float64{1, 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Transform(forecast.FeatureVector{1, 2, 3}); err == nil {
		t.Fatal("expected width error")
	}
}
