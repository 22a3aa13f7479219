package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Transform call paths used by the scheduler.
const (
	TransformInProcess = "inprocess"
	TransformHTTP      = "http"
)

type AppConfig struct {
	// ThingSpeak credentials and channel.
	ReadKey   string
	WriteKey  string `validate:"required_with=ChannelID"`
	ChannelID string
	BaseURL   string `validate:"required,url"`

	Port string `validate:"required,numeric"`

	// Interval between pipeline runs.
	Interval time.Duration `validate:"gt=0"`
	// RunOnStart also fires a run right after startup instead of waiting one interval.
	RunOnStart bool

	// HTTPTimeout bounds every outbound call; RunTimeout bounds a whole run.
	HTTPTimeout time.Duration `validate:"gt=0"`
	RunTimeout  time.Duration `validate:"gt=0"`

	TransformMode string `validate:"oneof=inprocess http"`

	ModelPath        string `validate:"required"`
	InputScalerPath  string `validate:"required"`
	OutputScalerPath string `validate:"required"`

	LogLevel  string
	LogFormat string `validate:"oneof=console json"`

	// In-memory run status retention.
	StoreMaxHistory int           // max number of run outcomes kept (0 = unlimited)
	StoreMaxAge     time.Duration // max age of run outcomes (0 = unlimited)

	MQTT MQTTConfig
}

// MQTTConfig enables the optional forecast mirror when Broker is set.
type MQTTConfig struct {
	Broker   string
	ClientID string `validate:"required_with=Broker"`
	Username string
	Password string
	Topic    string `validate:"required_with=Broker"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.ReadKey = os.Getenv("TS_READ_KEY")
	cfg.WriteKey = os.Getenv("TS_WRITE_KEY")
	cfg.ChannelID = os.Getenv("CHANNEL_ID")
	cfg.BaseURL = strings.TrimRight(getenvDefault("TS_BASE_URL", "https://api.thingspeak.com"), "/")
	cfg.Port = getenvDefault("PORT", "5000")

	// Scheduler interval: default 7 minutes.
	minutes := getenvInt("PREDICTION_INTERVAL_MINUTES", 7)
	cfg.Interval = time.Duration(minutes) * time.Minute
	cfg.RunOnStart = getenvBool("RUN_ON_START", false)

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = getenvDuration("RUN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.TransformMode = strings.ToLower(getenvDefault("TRANSFORM_MODE", TransformInProcess))

	cfg.ModelPath = getenvDefault("MODEL_PATH", "rf_caci_model.json")
	cfg.InputScalerPath = getenvDefault("SCALER_X_PATH", "scaler_X.json")
	cfg.OutputScalerPath = getenvDefault("SCALER_Y_PATH", "scaler_Y.json")

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "console"))

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 48)
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.MQTT = MQTTConfig{
		Broker:   os.Getenv("MQTT_BROKER"),
		ClientID: getenvDefault("MQTT_CLIENT_ID", "caci-forecaster"),
		Username: os.Getenv("MQTT_USERNAME"),
		Password: os.Getenv("MQTT_PASSWORD"),
		Topic:    strings.ReplaceAll(getenvDefault("MQTT_TOPIC", "caci/{channel_id}/forecast"), "{channel_id}", cfg.ChannelID),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string {
	return ":" + c.Port
}

// LocalURL is the loopback base URL of this process's HTTP server.
func (c *AppConfig) LocalURL() string {
	return "http://127.0.0.1:" + c.Port
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		log.Printf("WARN: invalid %s=%q, using default %d", key, v, def)
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
		log.Printf("WARN: invalid %s=%q, using default %t", key, v, def)
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
