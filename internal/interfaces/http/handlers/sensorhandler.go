// Package handlers implements the REST surface over the application
// usecases.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/resona-io/resona/internal/application/device"
	provusecases "github.com/resona-io/resona/internal/application/provisioning/usecases"
	sensorusecases "github.com/resona-io/resona/internal/application/sensor/usecases"
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/domain/session"
	"github.com/resona-io/resona/internal/interfaces/http/middleware"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
	"github.com/resona-io/resona/internal/shared/utils"
)

// SensorHandler serves sensor CRUD, provisioning, and history queries.
type SensorHandler struct {
	sensorRepo    sensor.Repository
	sessionRepo   session.Repository
	updateUC      *sensorusecases.UpdateSensorConfigUseCase
	provisionUC   *provusecases.ProvisionSensorUseCase
	deprovisionUC *provusecases.DeprovisionSensorUseCase
	publisher     device.Publisher
	logger        logger.Interface
}

func NewSensorHandler(
	sensorRepo sensor.Repository,
	sessionRepo session.Repository,
	updateUC *sensorusecases.UpdateSensorConfigUseCase,
	provisionUC *provusecases.ProvisionSensorUseCase,
	deprovisionUC *provusecases.DeprovisionSensorUseCase,
	publisher device.Publisher,
	log logger.Interface,
) *SensorHandler {
	return &SensorHandler{
		sensorRepo:    sensorRepo,
		sessionRepo:   sessionRepo,
		updateUC:      updateUC,
		provisionUC:   provisionUC,
		deprovisionUC: deprovisionUC,
		publisher:     publisher,
		logger:        log,
	}
}

type sensorResponse struct {
	SensorID                 string     `json:"sensor_id"`
	Name                     string     `json:"name,omitempty"`
	Location                 string     `json:"location,omitempty"`
	Enabled                  bool       `json:"enabled"`
	Status                   string     `json:"status"`
	MotionDebounceSeconds    int        `json:"motion_debounce_seconds"`
	InactivityTimeoutSeconds int        `json:"inactivity_timeout_seconds"`
	QuietHoursStart          string     `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd            string     `json:"quiet_hours_end,omitempty"`
	QuietHoursTimezone       string     `json:"quiet_hours_timezone,omitempty"`
	PlaybackTargetID         string     `json:"playback_target_id,omitempty"`
	PlaybackContextRef       string     `json:"playback_context_ref,omitempty"`
	LastMotionAt             *time.Time `json:"last_motion_at,omitempty"`
	BatteryLevel             *int       `json:"battery_level,omitempty"`
	CreatedAt                time.Time  `json:"created_at"`
}

func toSensorResponse(s *sensor.Sensor) sensorResponse {
	resp := sensorResponse{
		SensorID:                 s.SensorID,
		Name:                     s.Name,
		Location:                 s.Location,
		Enabled:                  s.Enabled,
		Status:                   string(s.Status),
		MotionDebounceSeconds:    s.MotionDebounceSeconds,
		InactivityTimeoutSeconds: s.InactivityTimeoutSeconds,
		PlaybackTargetID:         s.PlaybackTargetID,
		PlaybackContextRef:       s.PlaybackContextRef,
		LastMotionAt:             s.LastMotionAt,
		BatteryLevel:             s.BatteryLevel,
		CreatedAt:                s.CreatedAt,
	}
	if s.QuietHours != nil {
		resp.QuietHoursStart = s.QuietHours.Start
		resp.QuietHoursEnd = s.QuietHours.End
		resp.QuietHoursTimezone = s.QuietHours.Timezone
	}
	return resp
}

// ListSensors returns the caller's sensors.
func (h *SensorHandler) ListSensors(c *gin.Context) {
	sensors, err := h.sensorRepo.ListByUserID(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	items := make([]sensorResponse, len(sensors))
	for i, s := range sensors {
		items[i] = toSensorResponse(s)
	}
	utils.SuccessResponse(c, http.StatusOK, "", items)
}

// GetSensor returns one sensor owned by the caller.
func (h *SensorHandler) GetSensor(c *gin.Context) {
	s, err := h.ownedSensor(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toSensorResponse(s))
}

// UpdateSensorRequest carries partial sensor settings. Absent fields are
// unchanged.
type UpdateSensorRequest struct {
	Name                     *string `json:"name"`
	Location                 *string `json:"location"`
	Enabled                  *bool   `json:"enabled"`
	MotionDebounceSeconds    *int    `json:"motion_debounce_seconds"`
	InactivityTimeoutSeconds *int    `json:"inactivity_timeout_seconds"`
	QuietHoursStart          *string `json:"quiet_hours_start"`
	QuietHoursEnd            *string `json:"quiet_hours_end"`
	QuietHoursTimezone       *string `json:"quiet_hours_timezone"`
	PlaybackTargetID         *string `json:"playback_target_id"`
	PlaybackContextRef       *string `json:"playback_context_ref"`
}

func (h *SensorHandler) UpdateSensor(c *gin.Context) {
	var req UpdateSensorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for update sensor", "error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	updated, err := h.updateUC.Execute(c.Request.Context(), sensorusecases.UpdateSensorConfigCommand{
		SensorID:                 c.Param("id"),
		UserID:                   middleware.CallerID(c),
		Name:                     req.Name,
		Location:                 req.Location,
		Enabled:                  req.Enabled,
		MotionDebounceSeconds:    req.MotionDebounceSeconds,
		InactivityTimeoutSeconds: req.InactivityTimeoutSeconds,
		QuietHoursStart:          req.QuietHoursStart,
		QuietHoursEnd:            req.QuietHoursEnd,
		QuietHoursTimezone:       req.QuietHoursTimezone,
		PlaybackTargetID:         req.PlaybackTargetID,
		PlaybackContextRef:       req.PlaybackContextRef,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Sensor updated", toSensorResponse(updated))
}

// ProvisionSensorRequest creates a new device identity.
type ProvisionSensorRequest struct {
	SensorID string `json:"sensor_id" binding:"required"`
	UserID   string `json:"user_id" binding:"required"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// ProvisionSensor mints the device identity and returns the one-time
// credential bundle. Admin only.
func (h *SensorHandler) ProvisionSensor(c *gin.Context) {
	var req ProvisionSensorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	bundle, err := h.provisionUC.Execute(c.Request.Context(), provusecases.ProvisionSensorCommand{
		SensorID: req.SensorID,
		UserID:   req.UserID,
		Name:     req.Name,
		Location: req.Location,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, bundle, "Sensor provisioned; the private key is shown only once")
}

// DeprovisionSensor retires the sensor and its broker identity. Admin only.
func (h *SensorHandler) DeprovisionSensor(c *gin.Context) {
	err := h.deprovisionUC.Execute(c.Request.Context(), provusecases.DeprovisionSensorCommand{
		SensorID: c.Param("id"),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}

// SendCommandRequest is a one-shot device command.
type SendCommandRequest struct {
	Name string            `json:"name" binding:"required,oneof=restart test_motion ota_update factory_reset enable disable"`
	Args map[string]string `json:"args"`
}

// SendCommand publishes a command to the sensor's command topic. Admin only.
func (h *SensorHandler) SendCommand(c *gin.Context) {
	var req SendCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	sensorID := c.Param("id")
	if _, err := h.sensorRepo.GetByID(c.Request.Context(), sensorID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if err := h.publisher.PublishCommand(c.Request.Context(), sensorID, device.Command{Name: req.Name, Args: req.Args}); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Command dispatched", nil)
}

type sessionResponse struct {
	SessionID       string     `json:"session_id"`
	SensorID        string     `json:"sensor_id"`
	Status          string     `json:"status"`
	StartAt         time.Time  `json:"start_at"`
	LastMotionAt    time.Time  `json:"last_motion_at"`
	EndAt           *time.Time `json:"end_at,omitempty"`
	MotionCount     int        `json:"motion_count"`
	PlaybackStarted bool       `json:"playback_started"`
	DurationSeconds int64      `json:"duration_seconds"`
}

// ListSensorSessions returns a sensor's session history, newest first.
func (h *SensorHandler) ListSensorSessions(c *gin.Context) {
	s, err := h.ownedSensor(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	from, to, limit, err := parseRangeQuery(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	sessions, err := h.sessionRepo.ListBySensor(c.Request.Context(), s.SensorID, from, to, limit)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	items := make([]sessionResponse, len(sessions))
	for i, sess := range sessions {
		items[i] = sessionResponse{
			SessionID:       sess.SessionID,
			SensorID:        sess.SensorID,
			Status:          string(sess.Status),
			StartAt:         sess.StartAt,
			LastMotionAt:    sess.LastMotionAt,
			EndAt:           sess.EndAt,
			MotionCount:     sess.MotionCount,
			PlaybackStarted: sess.PlaybackStarted,
			DurationSeconds: sess.DurationSeconds,
		}
	}
	utils.SuccessResponse(c, http.StatusOK, "", items)
}

// ownedSensor loads the path sensor and checks the caller owns it. Admins
// bypass the ownership check.
func (h *SensorHandler) ownedSensor(c *gin.Context) (*sensor.Sensor, error) {
	s, err := h.sensorRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if !c.GetBool(middleware.ContextIsAdmin) && s.UserID != middleware.CallerID(c) {
		return nil, errors.NewNotFoundError("sensor not found", c.Param("id"))
	}
	return s, nil
}

// parseRangeQuery reads optional from/to (RFC 3339) and limit parameters.
func parseRangeQuery(c *gin.Context) (from, to time.Time, limit int, err error) {
	if raw := c.Query("from"); raw != "" {
		t, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			return from, to, 0, errors.NewValidationError("invalid from parameter", raw)
		}
		from = biztime.ToUTC(t)
	}
	if raw := c.Query("to"); raw != "" {
		t, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			return from, to, 0, errors.NewValidationError("invalid to parameter", raw)
		}
		to = biztime.ToUTC(t)
	}
	if raw := c.Query("limit"); raw != "" {
		n, parseErr := strconv.Atoi(raw)
		if parseErr != nil || n < 0 {
			return from, to, 0, errors.NewValidationError("invalid limit parameter", raw)
		}
		limit = n
	}
	return from, to, limit, nil
}
