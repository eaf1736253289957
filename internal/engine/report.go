package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thermhub/thermhub/internal/schedule"
	"github.com/thermhub/thermhub/internal/store"
)

const (
	// deadband is the hysteresis width in tenths of a degree: heat
	// switches on below set-4 and off at or above set+4.
	deadband = 4
	// mergeWindow decides whether a report is averaged into the latest
	// reading or stored as a new one.
	mergeWindow = 5*time.Minute + 10*time.Second
)

// defaultReading stands in for the latest reading on a device that has
// never reported.
var defaultReading = store.Reading{Temperature: 680, Humidity: 500, SetTemperature: 680}

// Report is one periodic device report. Nil fields mean "unchanged":
// they default to the device's latest stored reading.
type Report struct {
	DeviceID       string
	Token          string
	Temperature    *int
	Humidity       *int
	Hold           *bool
	SetTemperature *int
}

// Result is the control decision returned to the device.
type Result struct {
	SetTemperature int
	Hold           bool
	HeatOn         bool
}

// ProcessReport validates a report, decides the effective set
// temperature and heat state at instant now, and stores the reading.
// A failed report leaves no trace: nothing is written and no state
// changes.
func (e *Engine) ProcessReport(ctx context.Context, report Report, now time.Time) (Result, error) {
	defer e.lockDevice(report.DeviceID)()

	device, err := e.store.GetDevice(ctx, report.DeviceID)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return Result{}, fmt.Errorf("%w: %q", ErrUnknownDevice, report.DeviceID)
		}
		return Result{}, err
	}
	if report.Token != device.Token {
		return Result{}, fmt.Errorf("%w: device %q", ErrInvalidToken, report.DeviceID)
	}

	readings, err := e.store.LastReadings(ctx, report.DeviceID, 2)
	if err != nil {
		return Result{}, err
	}
	last := defaultReading
	if len(readings) > 0 {
		last = readings[0]
	}

	temperature := valueOr(report.Temperature, last.Temperature)
	humidity := valueOr(report.Humidity, last.Humidity)
	hold := last.Hold
	if report.Hold != nil {
		hold = *report.Hold
	}

	setTemperature := last.SetTemperature
	if report.SetTemperature != nil {
		setTemperature = *report.SetTemperature
	} else if !hold && device.ScheduleID != "" && !now.Before(device.NextChange) {
		// crossed a schedule boundary: advance the schedule pointer,
		// exactly once per crossing
		if scheduled, next, evErr := schedule.NextEvent(device.Schedule, e.zones, now); evErr != nil {
			e.logger.Warn("cannot resolve stored schedule", slog.String("device", device.ID), slog.Any("err", evErr))
		} else {
			setTemperature = scheduled
			device.NextChange = next
			if err = e.store.PutDevice(ctx, device); err != nil {
				return Result{}, err
			}
		}
	}

	heatOn := heatDecision(last.HeatOn, temperature, setTemperature)

	reading := store.Reading{
		Time:           now,
		Temperature:    temperature,
		Humidity:       humidity,
		SetTemperature: setTemperature,
		Hold:           hold,
		HeatOn:         heatOn,
		NumAveraged:    1,
	}

	// a new record is cut when the reading before the latest one is
	// older than the merge window; until then reports are averaged
	// into the latest record
	appended := len(readings) < 2 || now.Sub(readings[1].Time) >= mergeWindow
	if appended {
		err = e.store.AppendReading(ctx, report.DeviceID, reading)
	} else {
		reading.Temperature = addToAverage(last.Temperature, temperature, last.NumAveraged)
		reading.Humidity = addToAverage(last.Humidity, humidity, last.NumAveraged)
		reading.NumAveraged = last.NumAveraged + 1
		err = e.store.UpdateLastReading(ctx, report.DeviceID, reading)
	}
	if err != nil {
		return Result{}, err
	}

	e.logger.Debug("report processed",
		slog.String("device", report.DeviceID),
		slog.Int("temperature", reading.Temperature),
		slog.Int("setTemperature", setTemperature),
		slog.Bool("heatOn", heatOn),
	)
	e.Hub.Publish(Update{DeviceID: report.DeviceID, Reading: reading, Appended: appended})

	return Result{SetTemperature: setTemperature, Hold: hold, HeatOn: heatOn}, nil
}

// heatDecision implements the two-threshold hysteresis: once on, heat
// stays on until the temperature reaches set+deadband; once off, it
// stays off until the temperature drops below set-deadband.
func heatDecision(wasOn bool, temperature, setTemperature int) bool {
	if wasOn {
		return temperature < setTemperature+deadband
	}
	return temperature < setTemperature-deadband
}

// addToAverage folds one sample into a running average, truncating.
func addToAverage(average, sample, count int) int {
	return (average*count + sample) / (count + 1)
}

func valueOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}
