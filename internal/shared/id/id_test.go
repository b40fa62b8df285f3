package id

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	got, err := Generate(12)
	require.NoError(t, err)
	assert.Len(t, got, 12)

	for _, r := range got {
		assert.Contains(t, alphabet, string(r))
	}
}

func TestGenerate_DefaultLength(t *testing.T) {
	got, err := Generate(0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultLength)
}

func TestGenerateWithPrefix(t *testing.T) {
	got, err := GenerateWithPrefix(PrefixSecret, 16)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "sec_"))
	assert.Len(t, got, len("sec_")+16)
}

func TestSessionID_RoundTrip(t *testing.T) {
	startAt := time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		sensorID string
	}{
		{"plain id", "hall-pir-01"},
		{"id with underscores", "living_room_pir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessionID, err := NewSessionID(tt.sensorID, startAt)
			require.NoError(t, err)

			gotSensor, gotStart, err := ParseSessionID(sessionID)
			require.NoError(t, err)
			assert.Equal(t, tt.sensorID, gotSensor)
			assert.Equal(t, startAt, gotStart)
		})
	}
}

func TestParseSessionID_Invalid(t *testing.T) {
	tests := []string{
		"",
		"not-a-session-id",
		"sec_abc_123_xyz",
		"ses_only_two",
	}
	for _, sessionID := range tests {
		_, _, err := ParseSessionID(sessionID)
		assert.Error(t, err, sessionID)
	}
}

func TestNewSessionID_Uniqueness(t *testing.T) {
	startAt := time.Now().UTC()
	a, err := NewSessionID("hall-pir-01", startAt)
	require.NoError(t, err)
	b, err := NewSessionID("hall-pir-01", startAt)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "the random suffix separates concurrent opens")
}
