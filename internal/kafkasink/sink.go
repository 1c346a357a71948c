package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/lucasfepe/5G-PollutionMap/internal/config"
	"github.com/lucasfepe/5G-PollutionMap/internal/pollution"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink writes records to a Kafka topic keyed by location id, so all readings
// of a location land on the same partition.
type Sink struct {
	w      messageWriter
	topic  string
	logger *slog.Logger
}

func New(cfg config.Config, logger *slog.Logger) *Sink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Sink{w: w, topic: cfg.KafkaTopic, logger: logger.With(slog.String("component", "kafka-sink"))}
}

func (s *Sink) Publish(ctx context.Context, records []pollution.Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs, err := Messages(records)
	if err != nil {
		return err
	}
	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write %s: %w", s.topic, err)
	}
	s.logger.Info("published records to kafka", "topic", s.topic, "count", len(msgs))
	return nil
}

func (s *Sink) Close() error {
	return s.w.Close()
}

// Messages encodes one message per record.
func Messages(records []pollution.Record) ([]kafka.Message, error) {
	out := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		out = append(out, kafka.Message{
			Key:   []byte(strconv.Itoa(rec.ID)),
			Value: b,
			Headers: []kafka.Header{
				{Key: "pollutant", Value: []byte(rec.Pollutant)},
				{Key: "unit", Value: []byte(rec.Unit)},
			},
		})
	}
	return out, nil
}
