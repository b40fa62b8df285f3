package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resona-io/resona/internal/application/music"
	"github.com/resona-io/resona/internal/application/token"
	"github.com/resona-io/resona/internal/domain/user"
	"github.com/resona-io/resona/internal/infrastructure/secretstore"
	"github.com/resona-io/resona/internal/interfaces/http/middleware"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/id"
	"github.com/resona-io/resona/internal/shared/logger"
	"github.com/resona-io/resona/internal/shared/utils"
)

// UserHandler serves the caller's profile, preferences, and music connection.
type UserHandler struct {
	userRepo  user.Repository
	vault     *secretstore.TokenVault
	tokens    *token.Service
	refresher music.TokenRefresher
	player    music.Service
	logger    logger.Interface
}

func NewUserHandler(
	userRepo user.Repository,
	vault *secretstore.TokenVault,
	tokens *token.Service,
	refresher music.TokenRefresher,
	player music.Service,
	log logger.Interface,
) *UserHandler {
	return &UserHandler{
		userRepo:  userRepo,
		vault:     vault,
		tokens:    tokens,
		refresher: refresher,
		player:    player,
		logger:    log,
	}
}

type userResponse struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email,omitempty"`
	MusicConnected bool   `json:"music_connected"`

	DefaultMotionDebounceSeconds    int    `json:"default_motion_debounce_seconds"`
	DefaultInactivityTimeoutSeconds int    `json:"default_inactivity_timeout_seconds"`
	QuietHoursStart                 string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd                   string `json:"quiet_hours_end,omitempty"`
	QuietHoursTimezone              string `json:"quiet_hours_timezone,omitempty"`
	NotifyOnLowBattery              bool   `json:"notify_on_low_battery"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		UserID:                          u.UserID,
		Email:                           u.Email,
		MusicConnected:                  u.MusicConnected,
		DefaultMotionDebounceSeconds:    u.Preferences.DefaultMotionDebounceSeconds,
		DefaultInactivityTimeoutSeconds: u.Preferences.DefaultInactivityTimeoutSeconds,
		QuietHoursStart:                 u.Preferences.QuietHoursStart,
		QuietHoursEnd:                   u.Preferences.QuietHoursEnd,
		QuietHoursTimezone:              u.Preferences.QuietHoursTimezone,
		NotifyOnLowBattery:              u.Preferences.NotifyOnLowBattery,
	}
}

// GetMe returns the caller's profile.
func (h *UserHandler) GetMe(c *gin.Context) {
	u, err := h.userRepo.GetByID(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toUserResponse(u))
}

// UpdatePreferencesRequest carries partial preference updates.
type UpdatePreferencesRequest struct {
	DefaultMotionDebounceSeconds    *int    `json:"default_motion_debounce_seconds"`
	DefaultInactivityTimeoutSeconds *int    `json:"default_inactivity_timeout_seconds"`
	QuietHoursStart                 *string `json:"quiet_hours_start"`
	QuietHoursEnd                   *string `json:"quiet_hours_end"`
	QuietHoursTimezone              *string `json:"quiet_hours_timezone"`
	NotifyOnLowBattery              *bool   `json:"notify_on_low_battery"`
}

func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	var req UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	u, err := h.userRepo.GetByID(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if req.DefaultMotionDebounceSeconds != nil {
		if *req.DefaultMotionDebounceSeconds < 0 {
			utils.ErrorResponseWithError(c, errors.NewValidationError("debounce must not be negative"))
			return
		}
		u.Preferences.DefaultMotionDebounceSeconds = *req.DefaultMotionDebounceSeconds
	}
	if req.DefaultInactivityTimeoutSeconds != nil {
		if *req.DefaultInactivityTimeoutSeconds <= 0 {
			utils.ErrorResponseWithError(c, errors.NewValidationError("inactivity timeout must be positive"))
			return
		}
		u.Preferences.DefaultInactivityTimeoutSeconds = *req.DefaultInactivityTimeoutSeconds
	}
	if req.QuietHoursStart != nil {
		u.Preferences.QuietHoursStart = *req.QuietHoursStart
	}
	if req.QuietHoursEnd != nil {
		u.Preferences.QuietHoursEnd = *req.QuietHoursEnd
	}
	if req.QuietHoursTimezone != nil {
		u.Preferences.QuietHoursTimezone = *req.QuietHoursTimezone
	}
	if req.NotifyOnLowBattery != nil {
		u.Preferences.NotifyOnLowBattery = *req.NotifyOnLowBattery
	}

	if err := h.userRepo.Update(c.Request.Context(), u); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Preferences updated", toUserResponse(u))
}

// ConnectMusicRequest links the caller's music account by handing over an
// OAuth refresh token obtained through the provider's consent flow.
type ConnectMusicRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ConnectMusic validates the refresh token by exchanging it once, then stores
// the material encrypted under a fresh secret reference.
func (h *UserHandler) ConnectMusic(c *gin.Context) {
	var req ConnectMusicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	u, err := h.userRepo.GetByID(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	// Exchange immediately: a bad token fails here, not on the first motion.
	refreshed, err := h.refresher.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	tokenRef := u.TokenRef
	if tokenRef == "" {
		ref, err := id.NewSecretRef()
		if err != nil {
			utils.ErrorResponseWithError(c, err)
			return
		}
		tokenRef = ref
	}
	material := &secretstore.TokenMaterial{
		RefreshToken: req.RefreshToken,
		AccessToken:  refreshed.AccessToken,
		ExpiresAt:    refreshed.ExpiresAt,
	}
	if refreshed.RefreshToken != "" {
		material.RefreshToken = refreshed.RefreshToken
	}
	if err := h.vault.Save(c.Request.Context(), tokenRef, material); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if err := u.ConnectMusic(tokenRef); err != nil {
		utils.ErrorResponseWithError(c, errors.NewValidationError(err.Error()))
		return
	}
	if err := h.userRepo.Update(c.Request.Context(), u); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	h.tokens.Invalidate(u.UserID)

	h.logger.Infow("music connection established", "user_id", u.UserID)
	utils.SuccessResponse(c, http.StatusOK, "Music service connected", toUserResponse(u))
}

// DisconnectMusic severs the link and deletes the stored token material.
func (h *UserHandler) DisconnectMusic(c *gin.Context) {
	u, err := h.userRepo.GetByID(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if u.TokenRef != "" {
		if err := h.vault.Delete(c.Request.Context(), u.TokenRef); err != nil {
			h.logger.Warnw("failed to delete token material", "error", err, "user_id", u.UserID)
		}
	}
	u.DisconnectMusic()
	u.TokenRef = ""
	if err := h.userRepo.Update(c.Request.Context(), u); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	h.tokens.Invalidate(u.UserID)

	utils.SuccessResponse(c, http.StatusOK, "Music service disconnected", toUserResponse(u))
}

type deviceResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	IsRestricted  bool   `json:"is_restricted"`
	VolumePercent int    `json:"volume_percent"`
}

// ListMusicDevices returns the caller's available playback devices, for
// picking a sensor's playback target.
func (h *UserHandler) ListMusicDevices(c *gin.Context) {
	userID := middleware.CallerID(c)
	accessToken, err := h.tokens.AccessTokenForUser(c.Request.Context(), userID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	devices, err := h.player.ListDevices(c.Request.Context(), accessToken)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	items := make([]deviceResponse, len(devices))
	for i, d := range devices {
		items[i] = deviceResponse{
			ID:            d.ID,
			Name:          d.Name,
			Type:          d.Type,
			IsActive:      d.IsActive,
			IsRestricted:  d.IsRestricted,
			VolumePercent: d.VolumePercent,
		}
	}
	utils.SuccessResponse(c, http.StatusOK, "", items)
}
