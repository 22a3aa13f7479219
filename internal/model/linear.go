package model

import (
	"fmt"

	"github.com/i474232898/caci-forecaster/internal/forecast"
)

// Linear is a linear regressor over scaled features.
type Linear struct {
	coef      []float64
	intercept float64
}

func NewLinear(coef []float64, intercept float64, width int) (*Linear, error) {
	if len(coef) != width {
		return nil, fmt.Errorf("linear model has %d coefficients for %d features", len(coef), width)
	}
	return &Linear{coef: append([]float64(nil), coef...), intercept: intercept}, nil
}

// Predict implements forecast.Predictor.
func (l *Linear) Predict(x forecast.ScaledFeatureVector) (forecast.ScaledPrediction, error) {
	if len(x) != len(l.coef) {
		return 0, fmt.Errorf("linear model expects %d features, got %d", len(l.coef), len(x))
	}
	score := l.intercept
	for i, c := range l.coef {
		score += c * x[i]
	}
	return forecast.ScaledPrediction(score), nil
}
