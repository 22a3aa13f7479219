package forecast

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ReadingFromMap builds a SensorReading from a decoded JSON object keyed by
// CO2, Temp, Hum, AQI and CACI. Absent or null keys read as 0. Keys outside
// that set and non-numeric values are rejected as input shape errors.
func ReadingFromMap(m map[string]any) (SensorReading, error) {
	var vals [FeatureCount]float64
	var extra []string

	for k, raw := range m {
		idx := featureIndex(k)
		if idx < 0 {
			extra = append(extra, k)
			continue
		}
		f, err := toFloat(raw)
		if err != nil {
			return SensorReading{}, newError(KindInputShape, err, "field %s", k)
		}
		vals[idx] = f
	}

	if len(extra) > 0 {
		sort.Strings(extra)
		return SensorReading{}, newError(KindInputShape, nil,
			"unexpected feature keys %s; expected %s", strings.Join(extra, ","), strings.Join(FeatureNames[:], ","))
	}

	return SensorReading{
		CO2:         vals[0],
		Temperature: vals[1],
		Humidity:    vals[2],
		AQI:         vals[3],
		CACI:        vals[4],
	}, nil
}

// ParseReading decodes a JSON object body into a SensorReading.
func ParseReading(body []byte) (SensorReading, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return SensorReading{}, newError(KindInputShape, err, "body must be a JSON object")
	}
	if m == nil {
		return SensorReading{}, newError(KindInputShape, nil, "body must be a JSON object")
	}
	return ReadingFromMap(m)
}

func featureIndex(name string) int {
	for i, n := range FeatureNames {
		if n == name {
			return i
		}
	}
	return -1
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
