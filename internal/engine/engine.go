// Package engine contains the thermostat decision core: it turns device
// reports into stored readings and heat-on/off decisions, and manages
// device claims and schedule assignments. All decisions take the current
// time as a parameter; nothing in this package reads the clock.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/thermhub/thermhub/internal/schedule"
	"github.com/thermhub/thermhub/internal/store"
	"github.com/thermhub/thermhub/internal/timezone"
	"github.com/thermhub/thermhub/pkg/pubsub"
)

var (
	// ErrUnknownDevice indicates no device identity exists for the reported id.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrInvalidToken indicates the report's token does not match the device's.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotOwner indicates the caller does not own the device.
	ErrNotOwner = errors.New("not the device owner")
	// ErrAlreadyClaimed indicates the device id has already been claimed.
	ErrAlreadyClaimed = errors.New("device already claimed")
)

// Update is published after every stored report.
type Update struct {
	DeviceID string
	Reading  store.Reading
	Appended bool
}

// ScheduleSource fetches the raw schedule rows for a schedule id.
type ScheduleSource interface {
	Fetch(ctx context.Context, scheduleID string) ([]schedule.RawEntry, error)
}

// Engine is the decision core. Reports for the same device are
// serialized through a per-device mutex; different devices do not
// contend.
type Engine struct {
	store  store.Store
	source ScheduleSource
	zones  timezone.Zones
	logger *slog.Logger
	*pubsub.Hub[Update]
	lock  sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns an Engine backed by the given store and schedule source.
func New(s store.Store, source ScheduleSource, zones timezone.Zones, logger *slog.Logger) *Engine {
	return &Engine{
		store:  s,
		source: source,
		zones:  zones,
		logger: logger,
		Hub:    pubsub.New[Update](logger.With(slog.String("component", "hub"))),
		locks:  make(map[string]*sync.Mutex),
	}
}

// HeatState returns the heat-on flag of the device's latest reading.
func (e *Engine) HeatState(ctx context.Context, deviceID string) (bool, error) {
	readings, err := e.store.LastReadings(ctx, deviceID, 1)
	if err != nil {
		return false, err
	}
	if len(readings) == 0 {
		return false, fmt.Errorf("%w: %q", store.ErrNoReadings, deviceID)
	}
	return readings[0].HeatOn, nil
}

// ClaimDevice creates the device identity for an unclaimed id, owned by
// userID, with a freshly generated write token.
func (e *Engine) ClaimDevice(ctx context.Context, deviceID, userID string) (store.Device, error) {
	defer e.lockDevice(deviceID)()

	_, err := e.store.GetDevice(ctx, deviceID)
	if err == nil {
		return store.Device{}, fmt.Errorf("%w: %q", ErrAlreadyClaimed, deviceID)
	}
	if !errors.Is(err, store.ErrDeviceNotFound) {
		return store.Device{}, err
	}

	device := store.Device{ID: deviceID, OwnerID: userID, Token: newToken()}
	if err = e.store.PutDevice(ctx, device); err != nil {
		return store.Device{}, err
	}
	e.logger.Info("device claimed", slog.String("device", deviceID))
	return device, nil
}

// lockDevice serializes access to one device; the returned function
// releases the lock.
func (e *Engine) lockDevice(deviceID string) func() {
	e.lock.Lock()
	l, ok := e.locks[deviceID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[deviceID] = l
	}
	e.lock.Unlock()
	l.Lock()
	return l.Unlock
}

const tokenCharacters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newToken() string {
	token := make([]byte, 8)
	for i := range token {
		token[i] = tokenCharacters[rand.IntN(len(tokenCharacters))]
	}
	return string(token)
}
