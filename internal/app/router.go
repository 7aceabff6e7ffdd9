// internal/app/router.go
package app

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	adminHandler "fedportal-service/internal/handlers/admin"
	identityHandler "fedportal-service/internal/handlers/identity"
	metricsHandler "fedportal-service/internal/handlers/metrics"
	presenceHandler "fedportal-service/internal/handlers/presence"
	wsHandler "fedportal-service/internal/handlers/websocket"
	"fedportal-service/internal/middleware"
	"fedportal-service/internal/service/gate"
)

type Handlers struct {
	IdentityHandler *identityHandler.IdentityHandler
	PresenceHandler *presenceHandler.PresenceHandler
	MetricsHandler  *metricsHandler.MetricsHandler
	AdminHandler    *adminHandler.AdminHandler
	WSHandler       *wsHandler.WebSocketHandler
	AuthMiddleware  *middleware.AuthMiddleware
	Gate            *gate.Gate
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// Everything below is authenticated and passes the observation gate:
	// mutating requests are rejected while viewing as another user, except
	// whitelisted controls.
	authed := api.Group("")
	authed.Use(h.AuthMiddleware.Auth(), middleware.ObservationGate(h.Gate))

	// ==================== Identity ====================
	identity := authed.Group("/identity")
	{
		identity.GET("/me", h.IdentityHandler.Me)
		identity.POST("/impersonate", h.IdentityHandler.Impersonate)
		identity.POST("/impersonate/stop", h.IdentityHandler.StopImpersonating)
	}

	// ==================== Presence ====================
	presence := authed.Group("/presence")
	{
		presence.POST("/sessions", h.PresenceHandler.Start)
		presence.POST("/sessions/:id/heartbeat", h.PresenceHandler.Heartbeat)
		presence.POST("/sessions/:id/visibility", h.PresenceHandler.Visibility)
		presence.POST("/sessions/:id/activity", h.PresenceHandler.Activity)
		presence.POST("/sessions/:id/stop", h.PresenceHandler.Stop)
		presence.GET("/active", h.PresenceHandler.List)
	}

	// ==================== Metrics ====================
	metrics := authed.Group("/metrics")
	{
		metrics.GET("", h.MetricsHandler.Snapshot)
		metrics.POST("/refresh", h.MetricsHandler.Refresh)
		metrics.GET("/activity", h.MetricsHandler.Activity)
	}

	// ==================== Admin ====================
	admin := authed.Group("/admin")
	admin.Use(h.AuthMiddleware.RequireAdmin())
	{
		admin.GET("/users", h.AdminHandler.ListUsers)
		admin.PUT("/users/:id/role", h.AdminHandler.ChangeRole)
		admin.DELETE("/users/:id", h.AdminHandler.DeleteUser)
		admin.POST("/users/invite", h.AdminHandler.InviteUser)
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}

	logger.Info("routes registered")
}
