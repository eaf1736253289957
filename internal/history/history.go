// Package history mirrors stored readings to InfluxDB for long-term
// retention and dashboarding.
package history

import (
	"context"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/thermhub/thermhub/internal/engine"
)

type Updates interface {
	Subscribe() chan engine.Update
	Unsubscribe(chan engine.Update)
}

type Writer struct {
	updates Updates
	write   api.WriteAPIBlocking
	close   func()
	logger  *slog.Logger
}

type Config struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

func New(cfg Config, updates Updates, logger *slog.Logger) *Writer {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Writer{
		updates: updates,
		write:   client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		close:   client.Close,
		logger:  logger,
	}
}

func (w *Writer) Run(ctx context.Context) error {
	w.logger.Debug("started")
	defer w.logger.Debug("stopped")
	defer w.close()

	ch := w.updates.Subscribe()
	defer w.updates.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			// merged updates rewrite the latest point in place; only
			// appended records make a new datapoint
			if !update.Appended {
				continue
			}
			if err := w.store(ctx, update); err != nil {
				w.logger.Error("failed to store reading", "err", err, "device_id", update.DeviceID)
			}
		}
	}
}

func (w *Writer) store(ctx context.Context, update engine.Update) error {
	point := influxdb2.NewPoint("reading",
		map[string]string{"device_id": update.DeviceID},
		map[string]any{
			"temperature":     float64(update.Reading.Temperature) / 10,
			"humidity":        float64(update.Reading.Humidity) / 10,
			"set_temperature": float64(update.Reading.SetTemperature) / 10,
			"hold":            update.Reading.Hold,
			"heat_on":         update.Reading.HeatOn,
		},
		update.Reading.Time,
	)
	return w.write.WritePoint(ctx, point)
}
