package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thermhub/thermhub/internal/schedule"
	"github.com/thermhub/thermhub/internal/store"
	"github.com/thermhub/thermhub/internal/timezone"
)

// AssignSchedule fetches and resolves the schedule with the given id and
// attaches it to the device. Resolution is all-or-nothing: on any
// failure the device's schedule state is left untouched. When the device
// is not holding, its latest reading is moved to the schedule's current
// set temperature.
func (e *Engine) AssignSchedule(ctx context.Context, deviceID, userID, scheduleID, tzAbbr string, now time.Time) error {
	defer e.lockDevice(deviceID)()

	device, err := e.store.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return fmt.Errorf("%w: %q", ErrUnknownDevice, deviceID)
		}
		return err
	}
	if device.OwnerID != userID {
		return fmt.Errorf("%w: device %q", ErrNotOwner, deviceID)
	}
	if !e.zones.Abbreviations().Contains(tzAbbr) {
		return fmt.Errorf("%w: unknown timezone %q", timezone.ErrParse, tzAbbr)
	}

	rawEntries, err := e.source.Fetch(ctx, scheduleID)
	if err != nil {
		return err
	}
	serialized, err := schedule.Resolve(rawEntries, tzAbbr, e.zones, now)
	if err != nil {
		return err
	}
	setTemperature, nextChange, err := schedule.NextEvent(serialized, e.zones, now)
	if err != nil {
		return err
	}

	device.ScheduleID = scheduleID
	device.Timezone = tzAbbr
	device.Schedule = serialized
	device.NextChange = nextChange
	if err = e.store.PutDevice(ctx, device); err != nil {
		return err
	}

	// move the device to the schedule's current set point, unless it is holding
	readings, err := e.store.LastReadings(ctx, deviceID, 1)
	if err != nil {
		return err
	}
	if len(readings) > 0 && !readings[0].Hold {
		reading := readings[0]
		reading.SetTemperature = setTemperature
		if err = e.store.UpdateLastReading(ctx, deviceID, reading); err != nil {
			return err
		}
	}

	e.logger.Info("schedule assigned",
		slog.String("device", deviceID),
		slog.String("schedule", scheduleID),
		slog.Time("nextChange", nextChange),
	)
	return nil
}
