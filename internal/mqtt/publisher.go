// Package mqtt mirrors published forecasts to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/i474232898/caci-forecaster/internal/forecast"
)

// ClientConfig holds MQTT client configuration.
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Connect opens a paho client with auto-reconnect.
func Connect(cfg ClientConfig, logger zerolog.Logger) (paho.Client, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("mqtt: connected")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt: connection lost")
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// Message is the mirrored forecast payload.
type Message struct {
	ChannelID        string    `json:"channel_id"`
	PredictedCACI1hr float64   `json:"predicted_caci_1hr"`
	Timestamp        time.Time `json:"timestamp"`
}

// Publisher implements pipeline.Publisher on top of an MQTT client.
type Publisher struct {
	client    paho.Client
	topic     string
	channelID string
	now       func() time.Time
}

func NewPublisher(client paho.Client, topic, channelID string) *Publisher {
	return &Publisher{
		client:    client,
		topic:     topic,
		channelID: channelID,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Publish sends the forecast with QoS 1, not retained.
func (p *Publisher) Publish(ctx context.Context, v forecast.Value) error {
	payload, err := json.Marshal(Message{
		ChannelID:        p.channelID,
		PredictedCACI1hr: float64(v),
		Timestamp:        p.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal forecast: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish to %s: %w", p.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", p.topic, err)
	}
	return nil
}
