// Package notifier reports heating state changes to one or more sinks.
package notifier

import (
	"fmt"

	"github.com/thermhub/thermhub/internal/engine"
)

type Notifier interface {
	Notify(engine.Update)
}

type Notifiers []Notifier

func (n Notifiers) Notify(update engine.Update) {
	for _, l := range n {
		l.Notify(update)
	}
}

func buildMessage(update engine.Update) string {
	verb := "off"
	if update.Reading.HeatOn {
		verb = "on"
	}
	return fmt.Sprintf("device %s: heat switched %s (%.1f°, set %.1f°)",
		update.DeviceID,
		verb,
		float64(update.Reading.Temperature)/10,
		float64(update.Reading.SetTemperature)/10,
	)
}
