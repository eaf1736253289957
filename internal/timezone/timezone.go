// Package timezone resolves the named US timezones a thermostat schedule
// may refer to, and parses "day-of-week time-of-day abbreviation" strings
// into absolute instants.
package timezone

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clambin/go-common/set"
)

// ErrParse indicates an unrecognized day, time or timezone abbreviation.
var ErrParse = errors.New("parse error")

// Zone is one entry of the fixed timezone table. Offset is the standard
// time offset from UTC. Zones with DST set follow the US daylight saving
// rule: DST starts at 02:00 local on the second Sunday of March and ends
// at 02:00 local on the first Sunday of November.
type Zone struct {
	Name   string
	Abbr   string
	Offset time.Duration
	DST    bool
}

// Zones is the timezone table. It is an explicit value, passed to
// whoever needs it, so parsing stays deterministic and testable.
type Zones []Zone

// Defaults returns the eight zones devices can be configured with.
func Defaults() Zones {
	return Zones{
		{Name: "Eastern", Abbr: "ET", Offset: -5 * time.Hour, DST: true},
		{Name: "Central", Abbr: "CT", Offset: -6 * time.Hour, DST: true},
		{Name: "Mountain", Abbr: "MT", Offset: -7 * time.Hour, DST: true},
		{Name: "Arizona", Abbr: "AZT", Offset: -7 * time.Hour},
		{Name: "Pacific", Abbr: "PT", Offset: -8 * time.Hour, DST: true},
		{Name: "Alaska", Abbr: "AKT", Offset: -9 * time.Hour, DST: true},
		{Name: "Hawaii-Aleutian", Abbr: "HAT", Offset: -10 * time.Hour, DST: true},
		{Name: "Hawaii", Abbr: "HT", Offset: -10 * time.Hour},
	}
}

// Get looks up a zone by its abbreviation.
func (z Zones) Get(abbr string) (Zone, bool) {
	for _, zone := range z {
		if zone.Abbr == abbr {
			return zone, true
		}
	}
	return Zone{}, false
}

// Abbreviations returns the set of valid zone abbreviations.
func (z Zones) Abbreviations() set.Set[string] {
	abbrs := set.New[string]()
	for _, zone := range z {
		abbrs.Add(zone.Abbr)
	}
	return abbrs
}

// OffsetAt returns the zone's UTC offset at instant t, accounting for
// daylight saving where the zone observes it.
func (z Zone) OffsetAt(t time.Time) time.Duration {
	if !z.DST {
		return z.Offset
	}
	year := t.Add(z.Offset).Year()
	// transitions happen at 02:00 local: standard time in March, daylight time in November
	start := nthSunday(year, time.March, 2).Add(2 * time.Hour).Add(-z.Offset)
	end := nthSunday(year, time.November, 1).Add(2 * time.Hour).Add(-(z.Offset + time.Hour))
	if !t.Before(start) && t.Before(end) {
		return z.Offset + time.Hour
	}
	return z.Offset
}

// Location returns a fixed location for the zone's offset at instant t.
func (z Zone) Location(t time.Time) *time.Location {
	return time.FixedZone(z.Abbr, int(z.OffsetAt(t)/time.Second))
}

// Midnight returns the zone's local midnight of the day containing now,
// as an instant.
func (z Zone) Midnight(now time.Time) time.Time {
	local := now.In(z.Location(now))
	year, month, day := local.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, local.Location()).UTC()
}

// nthSunday returns midnight (zone wall clock) of the n-th Sunday of the
// given month, as a wall-clock date with no location applied.
func nthSunday(year int, month time.Month, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Sunday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+7*(n-1))
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var clockLayouts = []string{"15:04:05", "15:04", "3:04PM", "3:04 PM", "3PM"}

// ParseDayTime parses a "<day-of-week> <time-of-day> <zone-abbreviation>"
// string, e.g. "Monday 7:00 ET". The day of week resolves to its first
// occurrence on or after the zone's local midnight of the day containing
// now. The result is returned in UTC.
func ParseDayTime(text string, zones Zones, now time.Time) (time.Time, error) {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrParse, text)
	}

	zone, ok := zones.Get(fields[len(fields)-1])
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown timezone %q", ErrParse, fields[len(fields)-1])
	}

	weekday, ok := weekdays[strings.ToLower(fields[0])]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown day %q", ErrParse, fields[0])
	}

	clockText := strings.ToUpper(strings.Join(fields[1:len(fields)-1], " "))
	var clock time.Time
	var err error
	for _, layout := range clockLayouts {
		if clock, err = time.Parse(layout, clockText); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid time %q", ErrParse, clockText)
	}

	reference := now.In(zone.Location(now))
	days := (int(weekday) - int(reference.Weekday()) + 7) % 7
	year, month, day := reference.AddDate(0, 0, days).Date()

	// the offset in effect depends on the resolved date itself, so
	// resolve once in standard time and correct for DST
	guess := time.Date(year, month, day, clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC).Add(-zone.Offset)
	loc := zone.Location(guess)
	return time.Date(year, month, day, clock.Hour(), clock.Minute(), clock.Second(), 0, loc).UTC(), nil
}

// NormalizeToWeek folds a weekly recurring instant into the window
// [now, now+7d] by adding or subtracting whole weeks. Applying it twice
// with the same now is a no-op.
func NormalizeToWeek(t, now time.Time) time.Time {
	const week = 7 * 24 * time.Hour
	for t.Before(now) {
		t = t.Add(week)
	}
	for weekFromNow := now.Add(week); t.After(weekFromNow); {
		t = t.Add(-week)
	}
	return t
}
