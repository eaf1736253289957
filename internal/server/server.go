// Package server exposes the HTTP surface: the device reporting
// endpoints, the schedule management endpoints and a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/thermhub/thermhub/internal/engine"
	"github.com/thermhub/thermhub/internal/store"
	"github.com/thermhub/thermhub/internal/timezone"
)

// Controller is the part of the engine the server uses.
type Controller interface {
	ProcessReport(ctx context.Context, report engine.Report, now time.Time) (engine.Result, error)
	HeatState(ctx context.Context, deviceID string) (bool, error)
	ClaimDevice(ctx context.Context, deviceID, userID string) (store.Device, error)
	AssignSchedule(ctx context.Context, deviceID, userID, scheduleID, tzAbbr string, now time.Time) error
}

var _ Controller = &engine.Engine{}

type Server struct {
	controller Controller
	readings   store.ReadingStore
	zones      timezone.Zones
	logger     *slog.Logger
	now        func() time.Time
}

// New returns the assembled HTTP handler. User-facing endpoints sit
// behind the JWT middleware; device endpoints authenticate with the
// device token.
func New(controller Controller, readings store.ReadingStore, zones timezone.Zones, auth AuthConfig, logger *slog.Logger) (http.Handler, error) {
	s := Server{
		controller: controller,
		readings:   readings,
		zones:      zones,
		logger:     logger,
		now:        time.Now,
	}

	requireUser, err := authMiddleware(auth)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.HandleFunc("/post", s.report).Methods(http.MethodGet)
	r.HandleFunc("/getheat", s.getHeat).Methods(http.MethodGet)
	r.Handle("/update", requireUser(http.HandlerFunc(s.updateSchedule))).Methods(http.MethodPost)
	r.Handle("/claim", requireUser(http.HandlerFunc(s.claim))).Methods(http.MethodPost)
	r.Handle("/api/devices/{id}/readings", requireUser(http.HandlerFunc(s.deviceReadings))).Methods(http.MethodGet)

	return handlers.LoggingHandler(os.Stdout, cors.AllowAll().Handler(r)), nil
}

// report accepts a sensor reading and replies with the line the
// firmware expects: "<set temperature>,<hold>,<heat>".
func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	deviceID := q.Get("id")
	if deviceID == "" {
		http.Error(w, "invalid ID", http.StatusBadRequest)
		return
	}

	report := engine.Report{DeviceID: deviceID, Token: q.Get("k")}
	var err error
	if report.Temperature, err = optionalInt(q, "t"); err == nil {
		if report.Humidity, err = optionalInt(q, "h"); err == nil {
			report.SetTemperature, err = optionalInt(q, "s")
		}
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if q.Has("d") {
		hold := q.Get("d") == "y"
		report.Hold = &hold
	}

	result, err := s.controller.ProcessReport(r.Context(), report, s.now())
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrUnknownDevice):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, engine.ErrInvalidToken):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	_, _ = fmt.Fprintf(w, "%d,%d,%d", result.SetTemperature, boolInt(result.Hold), boolInt(result.HeatOn))
}

func (s *Server) getHeat(w http.ResponseWriter, r *http.Request) {
	heatOn, err := s.controller.HeatState(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	_, _ = fmt.Fprintf(w, "%d", boolInt(heatOn))
}

// updateSchedule fetches and resolves a schedule, assigns it to the
// device and redirects back to the device page with a status message.
func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	deviceID := r.FormValue("id")
	scheduleID := r.FormValue("scheduleId")

	tzAbbr, err := s.zoneFromIndex(r.FormValue("tz"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	uid, err := userID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	message := "Successfully updated schedule"
	err = s.controller.AssignSchedule(r.Context(), deviceID, uid, scheduleID, tzAbbr, s.now())
	switch {
	case errors.Is(err, engine.ErrUnknownDevice):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, engine.ErrNotOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	case err != nil:
		s.logger.Warn("schedule update failed", "err", err, "device_id", deviceID)
		message = "Could not process schedule"
	}

	http.Redirect(w, r, "/?id="+url.QueryEscape(deviceID)+"&msg="+url.QueryEscape(message), http.StatusSeeOther)
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	deviceID := r.FormValue("id")
	if deviceID == "" {
		http.Error(w, "invalid ID", http.StatusBadRequest)
		return
	}
	uid, err := userID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	device, err := s.controller.ClaimDevice(r.Context(), deviceID, uid)
	if err != nil {
		if errors.Is(err, engine.ErrAlreadyClaimed) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	}{ID: device.ID, Token: device.Token})
}

// deviceReadings returns the last 24 hours of readings, newest first.
func (s *Server) deviceReadings(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	readings, err := s.readings.ReadingsSince(r.Context(), deviceID, s.now().Add(-24*time.Hour))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if readings == nil {
		readings = []store.Reading{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(readings)
}

func (s *Server) zoneFromIndex(value string) (string, error) {
	index, err := strconv.Atoi(value)
	if err != nil || index < 0 || index >= len(s.zones) {
		return "", fmt.Errorf("invalid time zone index %q", value)
	}
	return s.zones[index].Abbr, nil
}

func optionalInt(q url.Values, key string) (*int, error) {
	if !q.Has(key) {
		return nil, nil
	}
	value, err := strconv.Atoi(q.Get(key))
	if err != nil {
		return nil, fmt.Errorf("invalid value for %q: %w", key, err)
	}
	return &value, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
