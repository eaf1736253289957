// Package store defines the persisted thermostat state: device
// identities keyed by device id, and readings ordered by time.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDeviceNotFound indicates no device identity exists for the id.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrNoReadings indicates a device has no stored readings.
	ErrNoReadings = errors.New("no readings")
)

// Device is one claimed thermostat. Token gates report writes and never
// changes after the device is claimed. The schedule fields hold the
// serialized weekly schedule and the instant of its next change.
type Device struct {
	ID         string    `yaml:"id"`
	OwnerID    string    `yaml:"owner_id"`
	Token      string    `yaml:"token"`
	Timezone   string    `yaml:"timezone,omitempty"`
	ScheduleID string    `yaml:"schedule_id,omitempty"`
	Schedule   string    `yaml:"schedule,omitempty"`
	NextChange time.Time `yaml:"next_change,omitempty"`
}

// Reading is a stored sensor sample, or the running average of several
// samples that arrived close together. Temperatures and humidity are in
// tenths of a unit.
type Reading struct {
	Time           time.Time `yaml:"time" json:"time"`
	Temperature    int       `yaml:"temperature" json:"temperature"`
	Humidity       int       `yaml:"humidity" json:"humidity"`
	SetTemperature int       `yaml:"set_temperature" json:"setTemperature"`
	Hold           bool      `yaml:"hold" json:"hold"`
	HeatOn         bool      `yaml:"heat_on" json:"heatOn"`
	NumAveraged    int       `yaml:"num_averaged" json:"numAveraged"`
}

// DeviceStore persists device identities. Last write wins per device.
type DeviceStore interface {
	GetDevice(ctx context.Context, id string) (Device, error)
	PutDevice(ctx context.Context, device Device) error
}

// ReadingStore persists readings per device. Readings returned are
// ordered newest first.
type ReadingStore interface {
	LastReadings(ctx context.Context, id string, limit int) ([]Reading, error)
	ReadingsSince(ctx context.Context, id string, since time.Time) ([]Reading, error)
	AppendReading(ctx context.Context, id string, reading Reading) error
	UpdateLastReading(ctx context.Context, id string, reading Reading) error
}

// Store combines device and reading persistence.
type Store interface {
	DeviceStore
	ReadingStore
}
