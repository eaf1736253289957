package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZones_Get(t *testing.T) {
	zones := Defaults()
	assert.Len(t, zones, 8)

	zone, ok := zones.Get("ET")
	require.True(t, ok)
	assert.Equal(t, "Eastern", zone.Name)
	assert.True(t, zone.DST)

	_, ok = zones.Get("CET")
	assert.False(t, ok)

	abbrs := zones.Abbreviations()
	assert.True(t, abbrs.Contains("AZT"))
	assert.False(t, abbrs.Contains("UTC"))
}

func TestZone_OffsetAt(t *testing.T) {
	zones := Defaults()
	eastern, _ := zones.Get("ET")
	arizona, _ := zones.Get("AZT")

	tests := []struct {
		name string
		zone Zone
		time time.Time
		want time.Duration
	}{
		{"winter", eastern, time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC), -5 * time.Hour},
		{"summer", eastern, time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC), -4 * time.Hour},
		{"last minute before DST", eastern, time.Date(2025, time.March, 9, 6, 59, 0, 0, time.UTC), -5 * time.Hour},
		{"DST start", eastern, time.Date(2025, time.March, 9, 7, 0, 0, 0, time.UTC), -4 * time.Hour},
		{"last minute of DST", eastern, time.Date(2025, time.November, 2, 5, 59, 0, 0, time.UTC), -4 * time.Hour},
		{"DST end", eastern, time.Date(2025, time.November, 2, 6, 0, 0, 0, time.UTC), -5 * time.Hour},
		{"arizona winter", arizona, time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC), -7 * time.Hour},
		{"arizona summer", arizona, time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC), -7 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.zone.OffsetAt(tt.time))
		})
	}
}

func TestZone_Midnight(t *testing.T) {
	zones := Defaults()
	eastern, _ := zones.Get("ET")

	// Monday 24 March 2025, 12:00 EDT
	now := time.Date(2025, time.March, 24, 16, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 24, 4, 0, 0, 0, time.UTC), eastern.Midnight(now))

	// already Tuesday in UTC but still Monday evening in New York
	now = time.Date(2025, time.March, 25, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 24, 4, 0, 0, 0, time.UTC), eastern.Midnight(now))
}

func TestParseDayTime(t *testing.T) {
	zones := Defaults()
	// Monday 24 March 2025, 12:00 EDT / 09:00 PDT
	now := time.Date(2025, time.March, 24, 16, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		text    string
		want    time.Time
		wantErr bool
	}{
		{name: "same day", text: "Monday 7:00 ET", want: time.Date(2025, time.March, 24, 11, 0, 0, 0, time.UTC)},
		{name: "later in the week", text: "Friday 10:30PM PT", want: time.Date(2025, time.March, 29, 5, 30, 0, 0, time.UTC)},
		{name: "short day name", text: "wed 22:00 CT", want: time.Date(2025, time.March, 27, 3, 0, 0, 0, time.UTC)},
		{name: "no daylight saving", text: "Monday 7:00 AZT", want: time.Date(2025, time.March, 24, 14, 0, 0, 0, time.UTC)},
		{name: "unknown day", text: "Someday 7:00 ET", wantErr: true},
		{name: "unknown zone", text: "Monday 7:00 XX", wantErr: true},
		{name: "invalid time", text: "Monday 25:99 ET", wantErr: true},
		{name: "too few fields", text: "Monday ET", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseDayTime(tt.text, zones, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, parsed)
		})
	}
}

func TestNormalizeToWeek(t *testing.T) {
	now := time.Date(2025, time.March, 24, 16, 0, 0, 0, time.UTC)
	week := 7 * 24 * time.Hour

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"in window", now.Add(10 * time.Hour), now.Add(10 * time.Hour)},
		{"already passed", now.Add(-5 * time.Hour), now.Add(-5 * time.Hour).Add(week)},
		{"weeks in the past", now.Add(-3 * week), now},
		{"weeks in the future", now.Add(2*week + time.Hour), now.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeToWeek(tt.in, now)
			assert.Equal(t, tt.want, got)
			assert.False(t, got.Before(now))
			assert.False(t, got.After(now.Add(week)))
			// idempotent on its own output
			assert.Equal(t, got, NormalizeToWeek(got, now))
		})
	}
}
