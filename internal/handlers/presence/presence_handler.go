// internal/handlers/presence/presence_handler.go
package presence

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	presencedom "fedportal-service/internal/domain/presence"
	"fedportal-service/internal/middleware"
	"fedportal-service/internal/pkg/response"
	presencesvc "fedportal-service/internal/service/presence"
)

// Notifier pushes presence-change events to connected dashboards.
type Notifier interface {
	BroadcastPresenceChanged(reason string)
}

type PresenceHandler struct {
	tracker  *presencesvc.Tracker
	notifier Notifier
	logger   *zap.Logger
}

func NewPresenceHandler(tracker *presencesvc.Tracker, notifier Notifier, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{
		tracker:  tracker,
		notifier: notifier,
		logger:   logger,
	}
}

// Start bootstraps a presence session and returns the identifier the client
// persists across reloads.
func (h *PresenceHandler) Start(c *gin.Context) {
	var req presencedom.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	eff := middleware.MustGetIdentity(c)

	resp, err := h.tracker.Start(c.Request.Context(), eff, req)
	if err != nil {
		response.FromError(c, err, "failed to start presence session")
		return
	}

	if !resp.Reused {
		h.notifier.BroadcastPresenceChanged("started")
	}

	response.Success(c, http.StatusOK, "presence session started", resp)
}

// Heartbeat refreshes the session. A 404 tells the client to bootstrap a
// new one.
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	sessionID := c.Param("id")

	if err := h.tracker.Heartbeat(c.Request.Context(), sessionID); err != nil {
		response.FromError(c, err, "heartbeat failed")
		return
	}

	response.Success(c, http.StatusOK, "heartbeat recorded", nil)
}

// Visibility mirrors the browser's visibilitychange event.
func (h *PresenceHandler) Visibility(c *gin.Context) {
	var req presencedom.VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	sessionID := c.Param("id")

	if err := h.tracker.SetVisibility(c.Request.Context(), sessionID, req.Hidden); err != nil {
		response.FromError(c, err, "failed to update visibility")
		return
	}

	reason := "active"
	if req.Hidden {
		reason = "away"
	}
	h.notifier.BroadcastPresenceChanged(reason)

	response.Success(c, http.StatusOK, "visibility updated", nil)
}

// Activity records a navigation.
func (h *PresenceHandler) Activity(c *gin.Context) {
	var req presencedom.ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	sessionID := c.Param("id")

	if err := h.tracker.UpdateActivity(c.Request.Context(), sessionID, req); err != nil {
		response.FromError(c, err, "failed to record activity")
		return
	}

	response.Success(c, http.StatusOK, "activity recorded", nil)
}

// Stop terminates the session. Browsers send this as a beacon on unload and
// never read the body, so failures still answer 204.
func (h *PresenceHandler) Stop(c *gin.Context) {
	sessionID := c.Param("id")

	if err := h.tracker.Stop(c.Request.Context(), sessionID); err != nil {
		h.logger.Debug("failed to stop presence session",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	} else {
		h.notifier.BroadcastPresenceChanged("stopped")
	}

	c.Status(http.StatusNoContent)
}

// List returns the deduplicated active-user list, empty for callers without
// the presence capability.
func (h *PresenceHandler) List(c *gin.Context) {
	eff := middleware.MustGetIdentity(c)

	users, err := h.tracker.List(c.Request.Context(), eff)
	if err != nil {
		response.FromError(c, err, "failed to list active users")
		return
	}

	response.Success(c, http.StatusOK, "active users", gin.H{
		"users": users,
		"count": len(users),
	})
}
