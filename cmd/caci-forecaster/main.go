// caci-forecaster forecasts the composite air-quality index (CACI) one hour
// ahead from live ThingSpeak telemetry and writes the forecast back to the
// channel.
//
// Usage:
//
//	caci-forecaster [serve]
//	caci-forecaster predict --co2=400 --temp=25 --hum=50 --aqi=80 --caci=60
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
