package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/i474232898/caci-forecaster/internal/forecast"
)

// TransformPath is the route the transform is served on.
const TransformPath = "/predict_caci_internal"

// LoopbackForecaster calls the transform over HTTP, usually on this same
// process. It is the network-callable variant of the in-process transform.
type LoopbackForecaster struct {
	baseURL string
	client  *http.Client
}

func NewLoopbackForecaster(baseURL string, client *http.Client) *LoopbackForecaster {
	return &LoopbackForecaster{baseURL: baseURL, client: client}
}

type transformResponse struct {
	Status           string   `json:"status"`
	PredictedCACI1hr *float64 `json:"predicted_caci_1hr"`
	Error            string   `json:"error"`
	Kind             string   `json:"kind"`
}

// Forecast posts the reading and decodes the forecast. Non-success
// responses become *forecast.Error values carrying the server's kind.
func (l *LoopbackForecaster) Forecast(ctx context.Context, reading forecast.SensorReading) (forecast.Value, error) {
	jsonData, err := json.Marshal(reading)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+TransformPath, bytes.NewReader(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("transform unreachable: %w", err)
	}
	defer resp.Body.Close()

	var body transformResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode != http.StatusOK {
		msg := body.Error
		if msg == "" {
			msg = resp.Status
		}
		kind := forecast.ErrorKind(body.Kind)
		if kind == "" {
			kind = kindForStatus(resp.StatusCode)
		}
		return 0, &forecast.Error{Kind: kind, Message: fmt.Sprintf("status %d: %s", resp.StatusCode, msg)}
	}
	if decodeErr != nil {
		return 0, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if body.Status != "success" || body.PredictedCACI1hr == nil {
		return 0, fmt.Errorf("transform returned status %q without a forecast", body.Status)
	}
	return forecast.Value(*body.PredictedCACI1hr), nil
}

func kindForStatus(code int) forecast.ErrorKind {
	switch {
	case code == http.StatusServiceUnavailable:
		return forecast.KindModelUnavailable
	case code >= 400 && code < 500:
		return forecast.KindInputShape
	default:
		return forecast.KindModelInference
	}
}
