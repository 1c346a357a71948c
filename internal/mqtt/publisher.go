package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lucasfepe/5G-PollutionMap/internal/config"
	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

const (
	qos            = byte(1)
	publishTimeout = 5 * time.Second
)

// Publisher pushes records to an MQTT broker, one retained message per
// location and pollutant.
type Publisher struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	reconnect bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

type Option func(*Publisher)

// WithReconnect enables background reconnects after the broker drops the
// connection. Without it a lost connection stays lost.
func WithReconnect() Option {
	return func(p *Publisher) { p.reconnect = true }
}

func NewPublisher(cfg config.Config, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	co.SetClientID(cfg.MQTTClientID)
	co.SetCleanSession(true)

	co.SetAutoReconnect(p.reconnect)
	co.SetConnectRetry(false)
	co.SetConnectTimeout(10 * time.Second)
	co.SetMaxReconnectInterval(30 * time.Second)

	co.SetKeepAlive(30 * time.Second)
	co.SetPingTimeout(10 * time.Second)

	co.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	co.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("mqtt reconnecting", "broker", cfg.MQTTBroker)
	})

	p.client = mqtt.NewClient(co)
	return p
}

// Connect waits for the broker connection, honouring ctx and Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// The OnConnect handler runs on its own goroutine and may lag.
			p.setConnected(true)
			return nil
		}

		select {
		case <-ctx.Done():
			p.client.Disconnect(0)
			return ctx.Err()
		case <-p.stopCh:
			p.client.Disconnect(0)
			return fmt.Errorf("publisher stopped")
		default:
		}
	}
}

// Publish sends every record, stopping at the first failure.
func (p *Publisher) Publish(ctx context.Context, records []pollution.Record) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		topic := Topic(p.cfg.MQTTTopicPrefix, rec)
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}

		token := p.client.Publish(topic, qos, true, payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish timeout for topic %s", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		p.logger.Debug("published record", "topic", topic, "value", rec.Value)
	}
	p.logger.Info("published records to mqtt", "count", len(records))
	return nil
}

func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect is idempotent; Connect fails after it.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	if p.client != nil {
		p.client.Disconnect(250)
	}
	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
}

// Close satisfies the sink interface used by the app.
func (p *Publisher) Close() error {
	p.Disconnect()
	return nil
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// Topic returns <prefix>/locations/<id>/<pollutant>. The pollutant segment is
// the display name with MQTT wildcard and separator characters replaced.
func Topic(prefix string, rec pollution.Record) string {
	return prefix + "/locations/" + strconv.Itoa(rec.ID) + "/" + topicSegment(rec.Pollutant)
}

func topicSegment(s string) string {
	if s == "" {
		return "unknown"
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '/', '+', '#', ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
