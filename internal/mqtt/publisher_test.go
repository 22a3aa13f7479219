package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	ch := make(chan struct{})
	close(ch)
	return &doneToken{err: err, done: ch}
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

// fakeClient records publishes; the embedded interface panics on anything else.
type fakeClient struct {
	paho.Client
	topic    string
	qos      byte
	retained bool
	payload  []byte
	token    paho.Token
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.topic, c.qos, c.retained = topic, qos, retained
	c.payload, _ = payload.([]byte)
	return c.token
}

func TestPublisherPublish(t *testing.T) {
	client := &fakeClient{token: newDoneToken(nil)}
	p := NewPublisher(client, "caci/42/forecast", "42")
	p.now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }

	if err := p.Publish(context.Background(), 63.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.topic != "caci/42/forecast" || client.qos != 1 || client.retained {
		t.Fatalf("unexpected publish topic=%q qos=%d retained=%t", client.topic, client.qos, client.retained)
	}

	var msg Message
	if err := json.Unmarshal(client.payload, &msg); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if msg.ChannelID != "42" || msg.PredictedCACI1hr != 63.5 {
		t.Fatalf("unexpected payload %+v", msg)
	}
}

func TestPublisherErrors(t *testing.T) {
	client := &fakeClient{token: newDoneToken(errors.New("not connected"))}
	if err := NewPublisher(client, "t", "1").Publish(context.Background(), 1); err == nil {
		t.Fatal("expected publish error")
	}

	pending := &doneToken{done: make(chan struct{})}
	client = &fakeClient{token: pending}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := NewPublisher(client, "t", "1").Publish(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
