// Package ledger publishes every appended reading to a Kafka topic so
// downstream consumers can replay the full report history.
package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/thermhub/thermhub/internal/engine"
	"github.com/thermhub/thermhub/internal/store"
)

type Updates interface {
	Subscribe() chan engine.Update
	Unsubscribe(chan engine.Update)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Ledger struct {
	updates Updates
	writer  MessageWriter
	logger  *slog.Logger
}

func New(cfg Config, updates Updates, logger *slog.Logger) *Ledger {
	return &Ledger{
		updates: updates,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
	}
}

type record struct {
	DeviceID string        `json:"deviceId"`
	Reading  store.Reading `json:"reading"`
}

func (l *Ledger) Run(ctx context.Context) error {
	l.logger.Debug("started")
	defer l.logger.Debug("stopped")
	defer func() { _ = l.writer.Close() }()

	ch := l.updates.Subscribe()
	defer l.updates.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			if !update.Appended {
				continue
			}
			if err := l.publish(ctx, update); err != nil {
				l.logger.Error("failed to publish reading", "err", err, "device_id", update.DeviceID)
			}
		}
	}
}

func (l *Ledger) publish(ctx context.Context, update engine.Update) error {
	body, err := json.Marshal(record{DeviceID: update.DeviceID, Reading: update.Reading})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return l.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(update.DeviceID),
		Value: body,
	})
}
