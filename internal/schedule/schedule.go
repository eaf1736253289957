// Package schedule turns raw (day, time, temperature) rows into a stored
// weekly schedule and resolves the schedule against a point in time.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/thermhub/thermhub/internal/timezone"
)

var (
	// ErrInvalidData indicates a structurally incomplete schedule.
	ErrInvalidData = errors.New("invalid schedule data")
	// ErrInvalidTimeFormat indicates a day/time that cannot be parsed.
	ErrInvalidTimeFormat = errors.New("invalid time format")
	// ErrInvalidTemperature indicates a non-integer temperature.
	ErrInvalidTemperature = errors.New("invalid temperature")
)

// RawEntry is one row of the external schedule source, still unvalidated.
type RawEntry struct {
	Day         string
	Time        string
	Temperature string
}

// entry is the stored form: the raw "day time zone" text and the target
// temperature in whole degrees. Temperatures are only converted to
// tenths when the schedule is resolved.
type entry struct {
	DayTime     string `json:"dt"`
	Temperature int    `json:"t"`
}

// Resolve validates raw entries against the given timezone and returns
// the serialized schedule. Validation is all-or-nothing: any bad entry
// fails the whole schedule.
func Resolve(entries []RawEntry, tzAbbr string, zones timezone.Zones, now time.Time) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: no entries", ErrInvalidData)
	}

	resolved := make([]entry, 0, len(entries))
	for _, raw := range entries {
		if raw.Day == "" || raw.Time == "" || raw.Temperature == "" {
			return "", fmt.Errorf("%w: missing field in entry %v", ErrInvalidData, raw)
		}
		dayTime := raw.Day + " " + raw.Time + " " + tzAbbr
		if _, err := timezone.ParseDayTime(dayTime, zones, now); err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidTimeFormat, dayTime)
		}
		temperature, err := strconv.Atoi(strings.TrimSpace(raw.Temperature))
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidTemperature, raw.Temperature)
		}
		resolved = append(resolved, entry{DayTime: dayTime, Temperature: temperature})
	}

	sort.Slice(resolved, func(i, j int) bool { return resolved[i].DayTime < resolved[j].DayTime })

	serialized, err := json.Marshal(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidData, err.Error())
	}
	return string(serialized), nil
}

// NextEvent resolves a serialized schedule at instant now. Every entry is
// re-parsed and folded into the week starting at now; the entry with the
// latest folded instant is the change most recently wrapped past now, so
// its temperature (in tenths) is the active set temperature, and the
// earliest folded instant is the next scheduled change. This
// single-window fold misbehaves on pathological schedules (see the
// package tests); it is kept as is because stored next-change instants
// depend on it.
func NextEvent(serialized string, zones timezone.Zones, now time.Time) (int, time.Time, error) {
	var entries []entry
	if err := json.Unmarshal([]byte(serialized), &entries); err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %s", ErrInvalidData, err.Error())
	}
	if len(entries) == 0 {
		return 0, time.Time{}, fmt.Errorf("%w: no entries", ErrInvalidData)
	}

	type event struct {
		at          time.Time
		temperature int
	}
	events := make([]event, 0, len(entries))
	for _, e := range entries {
		at, err := timezone.ParseDayTime(e.DayTime, zones, now)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, e.DayTime)
		}
		events = append(events, event{at: timezone.NormalizeToWeek(at, now), temperature: e.Temperature})
	}

	sort.Slice(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })

	return events[len(events)-1].temperature * 10, events[0].at, nil
}
