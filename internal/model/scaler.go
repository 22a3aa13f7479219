package model

import (
	"fmt"

	"github.com/i474232898/caci-forecaster/internal/forecast"
)

// ScalerKind selects the fitted transform a scaler file describes.
type ScalerKind string

const (
	ScalerStandard ScalerKind = "standard"
	ScalerMinMax   ScalerKind = "minmax"
)

// ScalerFile is the persisted form of a fitted scaler.
//
// standard: x' = (x - mean) / scale
// minmax:   x' = x*scale + min
type ScalerFile struct {
	Kind         ScalerKind `json:"kind" yaml:"kind"`
	FeatureNames []string   `json:"feature_names,omitempty" yaml:"feature_names,omitempty"`
	Mean         []float64  `json:"mean,omitempty" yaml:"mean,omitempty"`
	Scale        []float64  `json:"scale" yaml:"scale"`
	Min          []float64  `json:"min,omitempty" yaml:"min,omitempty"`
}

// Scaler is an immutable per-column affine transform.
type Scaler struct {
	kind   ScalerKind
	names  []string
	offset []float64
	scale  []float64
}

// NewScaler validates a scaler file and builds a Scaler from it.
func NewScaler(f ScalerFile) (*Scaler, error) {
	if len(f.Scale) == 0 {
		return nil, fmt.Errorf("scaler has no columns")
	}
	s := &Scaler{kind: f.Kind, names: append([]string(nil), f.FeatureNames...)}
	s.scale = make([]float64, len(f.Scale))
	copy(s.scale, f.Scale)

	switch f.Kind {
	case ScalerStandard:
		if len(f.Mean) != len(f.Scale) {
			return nil, fmt.Errorf("standard scaler: mean has %d columns, scale has %d", len(f.Mean), len(f.Scale))
		}
		s.offset = append([]float64(nil), f.Mean...)
		// A zero-variance column is fitted with scale 1.
		for i, v := range s.scale {
			if v == 0 {
				s.scale[i] = 1
			}
		}
	case ScalerMinMax:
		if len(f.Min) != len(f.Scale) {
			return nil, fmt.Errorf("minmax scaler: min has %d columns, scale has %d", len(f.Min), len(f.Scale))
		}
		for i, v := range s.scale {
			if v == 0 {
				return nil, fmt.Errorf("minmax scaler: column %d has zero scale", i)
			}
		}
		s.offset = append([]float64(nil), f.Min...)
	default:
		return nil, fmt.Errorf("unknown scaler kind %q", f.Kind)
	}

	if len(s.names) > 0 && len(s.names) != len(s.scale) {
		return nil, fmt.Errorf("scaler has %d feature names for %d columns", len(s.names), len(s.scale))
	}
	return s, nil
}

// Width returns the number of columns the scaler was fitted on.
func (s *Scaler) Width() int {
	return len(s.scale)
}

// FeatureNames returns the column names recorded at fit time, if any.
func (s *Scaler) FeatureNames() []string {
	return s.names
}

// Transform implements forecast.InputScaler.
func (s *Scaler) Transform(x forecast.FeatureVector) (forecast.ScaledFeatureVector, error) {
	if len(x) != s.Width() {
		return nil, fmt.Errorf("expected %d columns, got %d", s.Width(), len(x))
	}
	out := make(forecast.ScaledFeatureVector, len(x))
	for i, v := range x {
		out[i] = s.forward(i, v)
	}
	return out, nil
}

// InverseTransform implements forecast.OutputScaler for a single-column scaler.
func (s *Scaler) InverseTransform(y forecast.ScaledPrediction) (float64, error) {
	if s.Width() != 1 {
		return 0, fmt.Errorf("inverse transform of a scalar needs a 1-column scaler, have %d", s.Width())
	}
	return s.inverse(0, float64(y)), nil
}

func (s *Scaler) forward(i int, v float64) float64 {
	if s.kind == ScalerMinMax {
		return v*s.scale[i] + s.offset[i]
	}
	return (v - s.offset[i]) / s.scale[i]
}

func (s *Scaler) inverse(i int, v float64) float64 {
	if s.kind == ScalerMinMax {
		return (v - s.offset[i]) / s.scale[i]
	}
	return v*s.scale[i] + s.offset[i]
}
