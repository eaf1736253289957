package notifier

import (
	"context"
	"log/slog"

	"github.com/thermhub/thermhub/internal/engine"
)

// Updates is the stream of stored reports.
type Updates interface {
	Subscribe() chan engine.Update
	Unsubscribe(chan engine.Update)
}

// Monitor watches the report stream and notifies whenever a device's
// heat flag flips.
type Monitor struct {
	updates   Updates
	notifiers Notifiers
	logger    *slog.Logger
	heatOn    map[string]bool
}

func NewMonitor(updates Updates, notifiers Notifiers, logger *slog.Logger) *Monitor {
	return &Monitor{
		updates:   updates,
		notifiers: notifiers,
		logger:    logger,
		heatOn:    make(map[string]bool),
	}
}

func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Debug("started")
	defer m.logger.Debug("stopped")

	ch := m.updates.Subscribe()
	defer m.updates.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			m.process(update)
		}
	}
}

func (m *Monitor) process(update engine.Update) {
	previous, seen := m.heatOn[update.DeviceID]
	m.heatOn[update.DeviceID] = update.Reading.HeatOn
	if seen && previous == update.Reading.HeatOn {
		return
	}
	m.notifiers.Notify(update)
}
