package music

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resona-io/resona/internal/shared/config"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *SpotifyService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSpotifyService(&config.SpotifyConfig{APIBaseURL: server.URL}, logger.NewLogger())
}

func TestGetPlaybackState(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/player", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"is_playing": true,
			"device": {"id": "device-1", "name": "Kitchen speaker"},
			"item": {"uri": "spotify:track:abc"}
		}`))
	})

	state, err := svc.GetPlaybackState(context.Background(), "access-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.IsPlaying)
	assert.Equal(t, "device-1", state.DeviceID)
	assert.Equal(t, "Kitchen speaker", state.DeviceName)
	assert.Equal(t, "spotify:track:abc", state.TrackURI)
}

func TestGetPlaybackState_NoActiveDevice(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	state, err := svc.GetPlaybackState(context.Background(), "access-1")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		check  func(t *testing.T, err error)
	}{
		{
			"401 is auth expired",
			http.StatusUnauthorized, nil,
			func(t *testing.T, err error) {
				assert.True(t, errors.IsAuthExpiredError(err))
			},
		},
		{
			"429 carries the retry hint",
			http.StatusTooManyRequests, http.Header{"Retry-After": []string{"17"}},
			func(t *testing.T, err error) {
				assert.True(t, errors.IsRateLimitedError(err))
				assert.Equal(t, 17*time.Second, errors.RetryAfterHint(err))
			},
		},
		{
			"429 without header uses the default hint",
			http.StatusTooManyRequests, nil,
			func(t *testing.T, err error) {
				assert.True(t, errors.IsRateLimitedError(err))
				assert.Equal(t, 5*time.Second, errors.RetryAfterHint(err))
			},
		},
		{
			"500 is transient",
			http.StatusInternalServerError, nil,
			func(t *testing.T, err error) {
				assert.True(t, errors.IsRetryable(err))
			},
		},
		{
			"400 is not retryable",
			http.StatusBadRequest, nil,
			func(t *testing.T, err error) {
				assert.True(t, errors.IsValidationError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				for key, values := range tt.header {
					w.Header()[key] = values
				}
				w.WriteHeader(tt.status)
			})

			_, err := svc.GetPlaybackState(context.Background(), "access-1")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestStartPlayback(t *testing.T) {
	var gotPath, gotQuery, gotBody string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("device_id")
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusNoContent)
	})

	err := svc.StartPlayback(context.Background(), "access-1", "device-1", "spotify:playlist:morning")
	require.NoError(t, err)
	assert.Equal(t, "/me/player/play", gotPath)
	assert.Equal(t, "device-1", gotQuery)
	assert.JSONEq(t, `{"context_uri":"spotify:playlist:morning"}`, gotBody)
}

func TestStartPlayback_NoDevice(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := svc.StartPlayback(context.Background(), "access-1", "", "")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestPausePlayback_AbsentStatesAreSuccess(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusNoContent} {
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/me/player/pause", r.URL.Path)
			w.WriteHeader(status)
		})

		err := svc.PausePlayback(context.Background(), "access-1")
		assert.NoError(t, err, "status %d: the desired end state already holds", status)
	}
}

func TestListDevices(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/player/devices", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"devices": [
			{"id": "device-1", "name": "Kitchen speaker", "type": "Speaker", "is_active": true, "volume_percent": 60},
			{"id": "device-2", "name": "TV", "type": "TV", "is_restricted": true}
		]}`))
	})

	devices, err := svc.ListDevices(context.Background(), "access-1")
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "device-1", devices[0].ID)
	assert.True(t, devices[0].IsActive)
	assert.Equal(t, 60, devices[0].VolumePercent)
	assert.True(t, devices[1].IsRestricted)
}

func TestUnreachableProviderIsTransient(t *testing.T) {
	svc := NewSpotifyService(&config.SpotifyConfig{APIBaseURL: "http://127.0.0.1:1"}, logger.NewLogger())

	_, err := svc.GetPlaybackState(context.Background(), "access-1")
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}
