package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/i474232898/caci-forecaster/internal/config"
	"github.com/i474232898/caci-forecaster/internal/forecast"
	"github.com/i474232898/caci-forecaster/internal/model"
)

var predictFlags struct {
	reading          forecast.SensorReading
	modelPath        string
	inputScalerPath  string
	outputScalerPath string
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run the forecast transform once on a reading and print the result",
	RunE:  runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.Float64Var(&predictFlags.reading.CO2, "co2", 0, "CO2 reading")
	f.Float64Var(&predictFlags.reading.Temperature, "temp", 0, "Temperature reading")
	f.Float64Var(&predictFlags.reading.Humidity, "hum", 0, "Humidity reading")
	f.Float64Var(&predictFlags.reading.AQI, "aqi", 0, "AQI reading")
	f.Float64Var(&predictFlags.reading.CACI, "caci", 0, "Current CACI")
	f.StringVar(&predictFlags.modelPath, "model", "", "Model file (default $MODEL_PATH)")
	f.StringVar(&predictFlags.inputScalerPath, "scaler-x", "", "Input scaler file (default $SCALER_X_PATH)")
	f.StringVar(&predictFlags.outputScalerPath, "scaler-y", "", "Output scaler file (default $SCALER_Y_PATH)")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	paths := model.Paths{
		Model:        firstNonEmpty(predictFlags.modelPath, cfg.ModelPath),
		InputScaler:  firstNonEmpty(predictFlags.inputScalerPath, cfg.InputScalerPath),
		OutputScaler: firstNonEmpty(predictFlags.outputScalerPath, cfg.OutputScalerPath),
	}
	assets, err := model.Load(paths)
	if err != nil {
		return fmt.Errorf("load model assets: %w", err)
	}

	v, err := forecast.NewTransformer(assets).Forecast(cmd.Context(), predictFlags.reading)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"status":             "success",
		"predicted_caci_1hr": float64(v),
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
