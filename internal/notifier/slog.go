package notifier

import (
	"log/slog"

	"github.com/thermhub/thermhub/internal/engine"
)

type SLogNotifier struct {
	Logger *slog.Logger
}

var _ Notifier = &SLogNotifier{}

func (s SLogNotifier) Notify(update engine.Update) {
	s.Logger.Info(buildMessage(update), "device_id", update.DeviceID)
}
