// Package http wires the REST surface: routes, middleware, and handlers.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/resona-io/resona/internal/interfaces/http/handlers"
	"github.com/resona-io/resona/internal/interfaces/http/middleware"
	"github.com/resona-io/resona/internal/shared/logger"
)

// Router owns the gin engine and the route table.
type Router struct {
	engine *gin.Engine
	logger logger.Interface

	authMW  *middleware.AuthMiddleware
	sensors *handlers.SensorHandler
	users   *handlers.UserHandler
	system  *handlers.SystemHandler
}

func NewRouter(
	authMW *middleware.AuthMiddleware,
	sensors *handlers.SensorHandler,
	users *handlers.UserHandler,
	system *handlers.SystemHandler,
	log logger.Interface,
) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Router{
		engine:  engine,
		logger:  log,
		authMW:  authMW,
		sensors: sensors,
		users:   users,
		system:  system,
	}
}

// SetupRoutes registers the route table.
func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", r.system.Healthz)

	api := r.engine.Group("/api/v1")
	api.Use(r.authMW.RequireAuth())
	{
		api.GET("/users/me", r.users.GetMe)
		api.PATCH("/users/me/preferences", r.users.UpdatePreferences)
		api.POST("/users/me/music", r.users.ConnectMusic)
		api.DELETE("/users/me/music", r.users.DisconnectMusic)
		api.GET("/users/me/music/devices", r.users.ListMusicDevices)

		api.GET("/sensors", r.sensors.ListSensors)
		api.GET("/sensors/:id", r.sensors.GetSensor)
		api.PATCH("/sensors/:id", r.sensors.UpdateSensor)
		api.GET("/sensors/:id/sessions", r.sensors.ListSensorSessions)
	}

	admin := api.Group("/admin")
	admin.Use(r.authMW.RequireAdmin())
	{
		admin.POST("/sensors", r.sensors.ProvisionSensor)
		admin.DELETE("/sensors/:id", r.sensors.DeprovisionSensor)
		admin.POST("/sensors/:id/commands", r.sensors.SendCommand)
		admin.GET("/sensors/:id/events", r.system.ListSensorEvents)
		admin.GET("/sessions/active", r.system.ListActiveSessions)
	}
}

// GetEngine exposes the underlying engine for the HTTP server.
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
