// Package health serves a liveness endpoint summarizing per-device
// report activity.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/thermhub/thermhub/internal/engine"
)

// Updates is the stream of stored reports.
type Updates interface {
	Subscribe() chan engine.Update
	Unsubscribe(chan engine.Update)
}

// Health tracks when each device last reported and serves that as JSON.
type Health struct {
	updates Updates
	logger  *slog.Logger
	lock    sync.RWMutex
	started time.Time
	seen    map[string]time.Time
}

func New(updates Updates, logger *slog.Logger) *Health {
	return &Health{
		updates: updates,
		logger:  logger,
		seen:    make(map[string]time.Time),
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	h.lock.Lock()
	h.started = time.Now()
	h.lock.Unlock()

	ch := h.updates.Subscribe()
	defer h.updates.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			h.lock.Lock()
			h.seen[update.DeviceID] = update.Reading.Time
			h.lock.Unlock()
		}
	}
}

type report struct {
	Started    time.Time            `json:"started"`
	Devices    int                  `json:"devices"`
	LastReport map[string]time.Time `json:"lastReport,omitempty"`
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	r := report{Started: h.started, Devices: len(h.seen), LastReport: make(map[string]time.Time, len(h.seen))}
	for id, at := range h.seen {
		r.LastReport[id] = at
	}
	h.lock.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
