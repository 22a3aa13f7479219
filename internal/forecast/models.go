package forecast

import "math"

// FeatureNames is the feature order the model was trained on.
// Any permutation silently produces wrong predictions.
var FeatureNames = [FeatureCount]string{"CO2", "Temp", "Hum", "AQI", "CACI"}

// FeatureCount is the width of a FeatureVector.
const FeatureCount = 5

// SensorReading is one telemetry sample. Missing fields are zero.
type SensorReading struct {
	CO2         float64 `json:"CO2"`
	Temperature float64 `json:"Temp"`
	Humidity    float64 `json:"Hum"`
	AQI         float64 `json:"AQI"`
	CACI        float64 `json:"CACI"`
}

// Features assembles the reading into model order: CO2, Temp, Hum, AQI, CACI.
func (r SensorReading) Features() FeatureVector {
	return FeatureVector{r.CO2, r.Temperature, r.Humidity, r.AQI, r.CACI}
}

// FeatureVector is an ordered set of raw feature values.
type FeatureVector []float64

// ScaledFeatureVector is a FeatureVector after the input scaler.
type ScaledFeatureVector []float64

// ScaledPrediction is the model output before inverse scaling.
type ScaledPrediction float64

// Value is a forecast in real composite-index units, rounded to two decimals.
type Value float64

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
