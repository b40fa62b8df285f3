package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/resona-io/resona/internal/application/ingress"
	"github.com/resona-io/resona/internal/domain/motion"
	"github.com/resona-io/resona/internal/domain/session"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/utils"
)

// SystemHandler serves health and admin observability endpoints.
type SystemHandler struct {
	sessionRepo session.Repository
	eventRepo   motion.Repository
	router      *ingress.Router

	startedAt time.Time
}

func NewSystemHandler(
	sessionRepo session.Repository,
	eventRepo motion.Repository,
	router *ingress.Router,
) *SystemHandler {
	return &SystemHandler{
		sessionRepo: sessionRepo,
		eventRepo:   eventRepo,
		router:      router,
		startedAt:   biztime.NowUTC(),
	}
}

// Healthz reports liveness plus the ingress counters.
func (h *SystemHandler) Healthz(c *gin.Context) {
	payload := gin.H{
		"status": "ok",
		"uptime": time.Since(h.startedAt).String(),
	}
	if h.router != nil {
		payload["ingress"] = h.router.Stats()
	}
	c.JSON(http.StatusOK, payload)
}

// ListActiveSessions returns all currently active sessions. Admin only.
func (h *SystemHandler) ListActiveSessions(c *gin.Context) {
	sessions, err := h.sessionRepo.ListActive(c.Request.Context())
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

type motionEventResponse struct {
	EventID     string    `json:"event_id"`
	SensorID    string    `json:"sensor_id"`
	SessionID   string    `json:"session_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	EventType   string    `json:"event_type"`
	ActionTaken string    `json:"action_taken"`
}

// ListSensorEvents returns a sensor's audit rows, newest first. Admin only.
func (h *SystemHandler) ListSensorEvents(c *gin.Context) {
	from, to, limit, err := parseRangeQuery(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	events, err := h.eventRepo.ListBySensor(c.Request.Context(), c.Param("id"), from, to, limit)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	items := make([]motionEventResponse, len(events))
	for i, e := range events {
		items[i] = motionEventResponse{
			EventID:     e.EventID,
			SensorID:    e.SensorID,
			SessionID:   e.SessionID,
			OccurredAt:  e.OccurredAt,
			EventType:   string(e.EventType),
			ActionTaken: e.ActionTaken,
		}
	}
	utils.SuccessResponse(c, http.StatusOK, "", items)
}
