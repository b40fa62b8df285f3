// Package music implements the playback-provider port against the Spotify
// Web API.
package music

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/resona-io/resona/internal/application/music"
	"github.com/resona-io/resona/internal/shared/config"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
)

const (
	requestTimeout = 10 * time.Second
	// Maximum response body size for player API responses (256KB)
	maxResponseSize = 256 << 10
	// Fallback retry hint when a 429 arrives without a Retry-After header
	defaultRetryAfter = 5 * time.Second
)

// SpotifyService implements music.Service over the Spotify player API.
type SpotifyService struct {
	httpClient *http.Client
	baseURL    string
	logger     logger.Interface
}

func NewSpotifyService(cfg *config.SpotifyConfig, log logger.Interface) *SpotifyService {
	return &SpotifyService{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    cfg.APIBaseURL,
		logger:     log,
	}
}

var _ music.Service = (*SpotifyService)(nil)

type playbackStateResponse struct {
	IsPlaying bool `json:"is_playing"`
	Device    struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"device"`
	Item struct {
		URI string `json:"uri"`
	} `json:"item"`
}

type devicesResponse struct {
	Devices []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Type          string `json:"type"`
		IsActive      bool   `json:"is_active"`
		IsRestricted  bool   `json:"is_restricted"`
		VolumePercent int    `json:"volume_percent"`
	} `json:"devices"`
}

func (s *SpotifyService) GetPlaybackState(ctx context.Context, accessToken string) (*music.PlaybackState, error) {
	resp, err := s.do(ctx, http.MethodGet, "/me/player", accessToken, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 204 means the account has no active device.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if err := s.classifyStatus(resp, "get playback state"); err != nil {
		return nil, err
	}

	var data playbackStateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode playback state: %w", err)
	}
	return &music.PlaybackState{
		IsPlaying:  data.IsPlaying,
		DeviceID:   data.Device.ID,
		DeviceName: data.Device.Name,
		TrackURI:   data.Item.URI,
	}, nil
}

func (s *SpotifyService) StartPlayback(ctx context.Context, accessToken, deviceID, contextURI string) error {
	path := "/me/player/play"
	if deviceID != "" {
		path += "?device_id=" + url.QueryEscape(deviceID)
	}

	var body io.Reader
	if contextURI != "" {
		payload, err := json.Marshal(map[string]string{"context_uri": contextURI})
		if err != nil {
			return fmt.Errorf("failed to encode play request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	resp, err := s.do(ctx, http.MethodPut, path, accessToken, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.NewNotFoundError("no playback device available")
	}
	return s.classifyStatus(resp, "start playback")
}

func (s *SpotifyService) PausePlayback(ctx context.Context, accessToken string) error {
	resp, err := s.do(ctx, http.MethodPut, "/me/player/pause", accessToken, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// No active device, or nothing playing. The desired end state holds.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode == http.StatusForbidden {
		s.logger.Debugw("pause rejected by provider, treating as already paused")
		return nil
	}
	return s.classifyStatus(resp, "pause playback")
}

func (s *SpotifyService) ListDevices(ctx context.Context, accessToken string) ([]music.Device, error) {
	resp, err := s.do(ctx, http.MethodGet, "/me/player/devices", accessToken, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := s.classifyStatus(resp, "list devices"); err != nil {
		return nil, err
	}

	var data devicesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode devices: %w", err)
	}
	devices := make([]music.Device, len(data.Devices))
	for i, d := range data.Devices {
		devices[i] = music.Device{
			ID:            d.ID,
			Name:          d.Name,
			Type:          d.Type,
			IsActive:      d.IsActive,
			IsRestricted:  d.IsRestricted,
			VolumePercent: d.VolumePercent,
		}
	}
	return devices, nil
}

func (s *SpotifyService) do(ctx context.Context, method, path, accessToken string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransientError("music provider unreachable", err.Error())
	}
	return resp, nil
}

// classifyStatus maps provider status codes onto the shared error taxonomy.
// 2xx is success; everything else closes over the same rules so callers can
// branch on kind instead of status codes.
func (s *SpotifyService) classifyStatus(resp *http.Response, op string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.NewAuthExpiredError("music provider rejected access token", op)
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.NewRateLimitedError("music provider rate limit", parseRetryAfter(resp), op)
	case resp.StatusCode >= 500:
		return errors.NewTransientError(fmt.Sprintf("music provider returned %d", resp.StatusCode), op)
	default:
		return errors.NewValidationError(fmt.Sprintf("music provider rejected request with %d", resp.StatusCode), op)
	}
}

func parseRetryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}
