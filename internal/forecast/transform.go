package forecast

import (
	"context"
	"fmt"
	"math"
)

// InputScaler normalizes raw features before inference.
type InputScaler interface {
	Width() int
	Transform(FeatureVector) (ScaledFeatureVector, error)
}

// Predictor maps scaled features to a scaled one-hour-ahead forecast.
type Predictor interface {
	Predict(ScaledFeatureVector) (ScaledPrediction, error)
}

// OutputScaler maps a scaled prediction back to composite-index units.
type OutputScaler interface {
	InverseTransform(ScaledPrediction) (float64, error)
}

// Assets is the capability set loaded once at startup. It is never mutated
// after construction and is safe for concurrent use.
type Assets struct {
	Input  InputScaler
	Model  Predictor
	Output OutputScaler
}

// Transformer runs the scale -> predict -> inverse-scale sequence.
type Transformer struct {
	assets *Assets
}

// NewTransformer creates a Transformer. A nil or incomplete assets value
// disables the transform for the lifetime of the Transformer.
func NewTransformer(assets *Assets) *Transformer {
	if assets != nil && (assets.Input == nil || assets.Model == nil || assets.Output == nil) {
		assets = nil
	}
	return &Transformer{assets: assets}
}

// Available reports whether model assets are loaded.
func (t *Transformer) Available() bool {
	return t != nil && t.assets != nil
}

// Forecast produces the one-hour-ahead composite index for a reading.
func (t *Transformer) Forecast(ctx context.Context, reading SensorReading) (Value, error) {
	if !t.Available() {
		return 0, ErrModelUnavailable
	}
	return t.run(ctx, reading.Features())
}

// ForecastVector is Forecast for an already assembled feature vector.
func (t *Transformer) ForecastVector(ctx context.Context, features FeatureVector) (Value, error) {
	if !t.Available() {
		return 0, ErrModelUnavailable
	}
	if len(features) != FeatureCount {
		return 0, newError(KindInputShape, nil, "expected %d features, got %d", FeatureCount, len(features))
	}
	return t.run(ctx, features)
}

func (t *Transformer) run(ctx context.Context, features FeatureVector) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = 0, newError(KindModelInference, nil, "model panicked: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return 0, newError(KindModelInference, err, "transform cancelled")
	}
	if w := t.assets.Input.Width(); w != len(features) {
		return 0, newError(KindInputShape, nil, "input scaler expects %d features, got %d", w, len(features))
	}
	for i, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, newError(KindInputShape, nil, "feature %s is not a finite number", featureName(i))
		}
	}

	scaled, err := t.assets.Input.Transform(features)
	if err != nil {
		return 0, newError(KindInputShape, err, "scale input")
	}

	pred, err := t.assets.Model.Predict(scaled)
	if err != nil {
		return 0, newError(KindModelInference, err, "predict")
	}
	if !finite(float64(pred)) {
		return 0, newError(KindModelInference, nil, "model returned %v", float64(pred))
	}

	actual, err := t.assets.Output.InverseTransform(pred)
	if err != nil {
		return 0, newError(KindModelInference, err, "inverse scale output")
	}
	if !finite(actual) {
		return 0, newError(KindModelInference, nil, "inverse scaler returned %v", actual)
	}

	return Value(Round2(actual)), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func featureName(i int) string {
	if i >= 0 && i < FeatureCount {
		return FeatureNames[i]
	}
	return fmt.Sprintf("#%d", i)
}
