package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/lucasfepe/5G-PollutionMap/internal/config"
	"github.com/lucasfepe/5G-PollutionMap/internal/kafkasink"
	"github.com/lucasfepe/5G-PollutionMap/internal/mqtt"
	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

// Sink receives every successful collection after it has been emitted.
type Sink interface {
	Publish(ctx context.Context, records []pollution.Record) error
	Close() error
}

type sinkOpener func(ctx context.Context, cfg config.Config, logger *slog.Logger) []Sink

// openSinks connects the configured publishers for a one-shot run. A broker
// that cannot be reached is logged and skipped so the pipeline still produces
// its output.
func openSinks(ctx context.Context, cfg config.Config, logger *slog.Logger) []Sink {
	return newSinks(ctx, cfg, logger)
}

// openServeSinks is openSinks for the long-running server: the MQTT client
// reconnects after the broker drops it.
func openServeSinks(ctx context.Context, cfg config.Config, logger *slog.Logger) []Sink {
	return newSinks(ctx, cfg, logger, mqtt.WithReconnect())
}

func newSinks(ctx context.Context, cfg config.Config, logger *slog.Logger, mqttOpts ...mqtt.Option) []Sink {
	var sinks []Sink

	if cfg.MQTTEnabled() {
		pub := mqtt.NewPublisher(cfg, logger, mqttOpts...)
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := pub.Connect(connectCtx)
		cancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
			pub.Disconnect()
		} else {
			sinks = append(sinks, pub)
		}
	}

	if cfg.KafkaEnabled() {
		sinks = append(sinks, kafkasink.New(cfg, logger))
	}

	return sinks
}

func publishAll(ctx context.Context, sinks []Sink, records []pollution.Record, logger *slog.Logger) {
	for _, s := range sinks {
		if err := s.Publish(ctx, records); err != nil {
			logger.Warn("publish failed", "sink", sinkName(s), "error", err)
		}
	}
}

func closeSinks(sinks []Sink, logger *slog.Logger) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			logger.Error("sink close", "sink", sinkName(s), "error", err)
		}
	}
}

func sinkName(s Sink) string {
	switch s.(type) {
	case *mqtt.Publisher:
		return "mqtt"
	case *kafkasink.Sink:
		return "kafka"
	default:
		return "custom"
	}
}
