package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuietHours_Validation(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		timezone string
		wantErr  bool
	}{
		{"valid same-day window", "13:00", "15:30", "UTC", false},
		{"valid midnight-crossing window", "22:00", "07:00", "Europe/London", false},
		{"bad start format", "9:00", "17:00", "UTC", true},
		{"bad end format", "09:00", "24:00", "UTC", true},
		{"start equals end", "10:00", "10:00", "UTC", true},
		{"unknown timezone", "22:00", "07:00", "Mars/Olympus", true},
		{"offset instead of IANA name", "22:00", "07:00", "+01:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := NewQuietHours(tt.start, tt.end, tt.timezone)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, q.Start)
			assert.Equal(t, tt.end, q.End)
		})
	}
}

func TestQuietHours_Contains_MidnightCrossing(t *testing.T) {
	q, err := NewQuietHours("22:00", "07:00", "Europe/London")
	require.NoError(t, err)

	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"late evening inside", time.Date(2026, 7, 14, 23, 30, 0, 0, london), true},
		{"small hours inside", time.Date(2026, 7, 15, 3, 15, 0, 0, london), true},
		{"exactly at start", time.Date(2026, 7, 14, 22, 0, 0, 0, london), true},
		{"exactly at end", time.Date(2026, 7, 15, 7, 0, 0, 0, london), false},
		{"midday outside", time.Date(2026, 7, 15, 12, 0, 0, 0, london), false},
		{"one minute before start", time.Date(2026, 7, 14, 21, 59, 0, 0, london), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := q.Contains(tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuietHours_Contains_EvaluatesInConfiguredZone(t *testing.T) {
	// 03:15 London in summer is 02:15 UTC; the window must be evaluated in
	// London time regardless of the instant's own location.
	q, err := NewQuietHours("22:00", "07:00", "Europe/London")
	require.NoError(t, err)

	utcInstant := time.Date(2026, 7, 15, 2, 15, 0, 0, time.UTC)
	got, err := q.Contains(utcInstant)
	require.NoError(t, err)
	assert.True(t, got)

	// 07:30 London expressed as UTC is outside the window.
	utcInstant = time.Date(2026, 7, 15, 6, 30, 0, 0, time.UTC)
	got, err = q.Contains(utcInstant)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestQuietHours_Contains_SameDayWindow(t *testing.T) {
	q, err := NewQuietHours("13:00", "15:00", "UTC")
	require.NoError(t, err)

	inside, err := q.Contains(time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, inside)

	outside, err := q.Contains(time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, outside)
}
