// Package mqtt publishes panel activity to an MQTT broker so the rest of
// the house can react to it.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/timfel/ha-display/internal/config"
)

// Event describes one interpreted touch.
type Event struct {
	Page      string    `json:"page"`
	Action    string    `json:"action"`
	Scene     string    `json:"scene,omitempty"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

// Client wraps a paho client. Publishing never blocks the caller; messages
// are queued and sent by the goroutine started with Start.
type Client struct {
	client mqtt.Client
	cfg    config.MQTTConfig
	queue  chan message
	log    zerolog.Logger
}

// NewClient creates a client for cfg. It does not connect.
func NewClient(cfg config.MQTTConfig, log zerolog.Logger) *Client {
	if cfg.ClientID == "" {
		cfg.ClientID = "ha-display-" + uuid.NewString()[:8]
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("mqtt connected")
	})

	return &Client{
		client: mqtt.NewClient(opts),
		cfg:    cfg,
		queue:  make(chan message, 32),
		log:    log,
	}
}

// Connect establishes the broker connection.
func (c *Client) Connect() error {
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}
	return nil
}

// Start sends queued messages until ctx is done, then disconnects.
func (c *Client) Start(ctx context.Context) {
	go func() {
		defer c.client.Disconnect(250)
		for {
			select {
			case m := <-c.queue:
				token := c.client.Publish(m.topic, 1, m.retained, m.payload)
				if token.WaitTimeout(5*time.Second) && token.Error() != nil {
					c.log.Warn().Err(token.Error()).Str("topic", m.topic).Msg("mqtt publish failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// PublishPage announces the selected page (retained).
func (c *Client) PublishPage(page string) {
	c.enqueue(message{topic: c.cfg.Topic + "/page", payload: []byte(page), retained: true})
}

// PublishAction announces an interpreted touch.
func (c *Client) PublishAction(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		c.log.Warn().Err(err).Msg("encode mqtt event")
		return
	}
	c.enqueue(message{topic: c.cfg.Topic + "/action", payload: payload})
}

func (c *Client) enqueue(m message) {
	select {
	case c.queue <- m:
	default:
		c.log.Warn().Str("topic", m.topic).Msg("mqtt queue full, dropping message")
	}
}

// Nop discards everything. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishPage(string)  {}
func (Nop) PublishAction(Event) {}
