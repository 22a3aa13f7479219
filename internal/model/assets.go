package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/i474232898/caci-forecaster/internal/forecast"
)

// Kind selects the regressor a model file describes.
type Kind string

const (
	KindRandomForest Kind = "random_forest"
	KindLinear       Kind = "linear"
)

// File is the persisted form of the trained regressor.
type File struct {
	Kind      Kind       `json:"kind" yaml:"kind"`
	Trees     []TreeFile `json:"trees,omitempty" yaml:"trees,omitempty"`
	Coef      []float64  `json:"coef,omitempty" yaml:"coef,omitempty"`
	Intercept float64    `json:"intercept,omitempty" yaml:"intercept,omitempty"`
}

// Paths locates the three persisted assets.
type Paths struct {
	Model        string
	InputScaler  string
	OutputScaler string
}

// Load reads the model and both scalers. Loading is all-or-nothing: any
// failure returns an error and no assets.
func Load(p Paths) (*forecast.Assets, error) {
	var inFile, outFile ScalerFile
	if err := decodeFile(p.InputScaler, &inFile); err != nil {
		return nil, fmt.Errorf("load input scaler: %w", err)
	}
	if err := decodeFile(p.OutputScaler, &outFile); err != nil {
		return nil, fmt.Errorf("load output scaler: %w", err)
	}
	var mf File
	if err := decodeFile(p.Model, &mf); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return Build(inFile, mf, outFile)
}

// Build validates decoded asset files and assembles the capability set.
func Build(in ScalerFile, mf File, out ScalerFile) (*forecast.Assets, error) {
	input, err := NewScaler(in)
	if err != nil {
		return nil, fmt.Errorf("input scaler: %w", err)
	}
	if input.Width() != forecast.FeatureCount {
		return nil, fmt.Errorf("input scaler fitted on %d features, need %d", input.Width(), forecast.FeatureCount)
	}
	if names := input.FeatureNames(); len(names) > 0 {
		for i, n := range names {
			if n != forecast.FeatureNames[i] {
				return nil, fmt.Errorf("input scaler feature %d is %q, want %q", i, n, forecast.FeatureNames[i])
			}
		}
	}

	output, err := NewScaler(out)
	if err != nil {
		return nil, fmt.Errorf("output scaler: %w", err)
	}
	if output.Width() != 1 {
		return nil, fmt.Errorf("output scaler fitted on %d columns, need 1", output.Width())
	}

	var predictor forecast.Predictor
	switch mf.Kind {
	case KindRandomForest:
		predictor, err = NewForest(mf.Trees, forecast.FeatureCount)
	case KindLinear:
		predictor, err = NewLinear(mf.Coef, mf.Intercept, forecast.FeatureCount)
	default:
		err = fmt.Errorf("unknown model kind %q", mf.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	return &forecast.Assets{Input: input, Model: predictor, Output: output}, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return nil
}
