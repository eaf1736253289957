// Package memstore keeps all device state in memory, optionally backed
// by a YAML snapshot that is rewritten atomically on every mutation.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thermhub/thermhub/internal/store"
)

var _ store.Store = &Store{}

type snapshot struct {
	Devices  map[string]store.Device    `yaml:"devices"`
	Readings map[string][]store.Reading `yaml:"readings"`
}

// Store implements store.Store. A blank path disables persistence.
type Store struct {
	path     string
	logger   *slog.Logger
	devices  map[string]store.Device
	readings map[string][]store.Reading // oldest first
	lock     sync.RWMutex
}

// New returns a Store, loading the snapshot at path when one exists.
func New(path string, logger *slog.Logger) (*Store, error) {
	s := Store{
		path:     path,
		logger:   logger,
		devices:  make(map[string]store.Device),
		readings: make(map[string][]store.Reading),
	}
	if path == "" {
		return &s, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap snapshot
	if err = yaml.Unmarshal(content, &snap); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snap.Devices != nil {
		s.devices = snap.Devices
	}
	if snap.Readings != nil {
		s.readings = snap.Readings
	}
	logger.Info("snapshot loaded", slog.String("path", path), slog.Int("devices", len(s.devices)))
	return &s, nil
}

func (s *Store) GetDevice(_ context.Context, id string) (store.Device, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	device, ok := s.devices[id]
	if !ok {
		return store.Device{}, fmt.Errorf("%w: %q", store.ErrDeviceNotFound, id)
	}
	return device, nil
}

func (s *Store) PutDevice(_ context.Context, device store.Device) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.devices[device.ID] = device
	return s.save()
}

func (s *Store) LastReadings(_ context.Context, id string, limit int) ([]store.Reading, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	stored := s.readings[id]
	if limit > len(stored) {
		limit = len(stored)
	}
	readings := make([]store.Reading, 0, limit)
	for i := range limit {
		readings = append(readings, stored[len(stored)-1-i])
	}
	return readings, nil
}

func (s *Store) ReadingsSince(_ context.Context, id string, since time.Time) ([]store.Reading, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	stored := s.readings[id]
	var readings []store.Reading
	for i := len(stored) - 1; i >= 0; i-- {
		if stored[i].Time.Before(since) {
			break
		}
		readings = append(readings, stored[i])
	}
	return readings, nil
}

func (s *Store) AppendReading(_ context.Context, id string, reading store.Reading) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.readings[id] = append(s.readings[id], reading)
	return s.save()
}

func (s *Store) UpdateLastReading(_ context.Context, id string, reading store.Reading) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	stored := s.readings[id]
	if len(stored) == 0 {
		return fmt.Errorf("%w: %q", store.ErrNoReadings, id)
	}
	stored[len(stored)-1] = reading
	return s.save()
}

// save writes the snapshot. Callers hold the write lock.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	content, err := yaml.Marshal(snapshot{Devices: s.devices, Readings: s.readings})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Debug("snapshot saved", slog.String("path", filepath.Base(s.path)))
	return nil
}
