// internal/handlers/admin/admin_handler.go
package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	identitydom "fedportal-service/internal/domain/identity"
	"fedportal-service/internal/middleware"
	"fedportal-service/internal/pkg/response"
	"fedportal-service/internal/service/gate"
)

// UserStore is the directory surface the admin handlers mutate.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*identitydom.Principal, error)
	Directory(ctx context.Context) ([]identitydom.Principal, error)
	UpdateRole(ctx context.Context, id string, role identitydom.Role) error
	Delete(ctx context.Context, id string) error
	Invite(ctx context.Context, id, email string, role identitydom.Role, invitedBy string) error
}

// Disconnector severs live connections of a removed user.
type Disconnector interface {
	DisconnectUser(userID string, reason string)
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type InviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

type AdminHandler struct {
	users  UserStore
	gate   *gate.Gate
	hub    Disconnector
	logger *zap.Logger
}

func NewAdminHandler(users UserStore, g *gate.Gate, hub Disconnector, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		users:  users,
		gate:   g,
		hub:    hub,
		logger: logger,
	}
}

// ListUsers returns the directory, with the roles the caller may assign.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	eff := middleware.MustGetIdentity(c)

	users, err := h.users.Directory(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "failed to load user directory")
		return
	}

	response.Success(c, http.StatusOK, "user directory", gin.H{
		"users":            users,
		"assignable_roles": eff.ActingAs.Role.AssignableRoles(),
	})
}

// ChangeRole promotes or demotes a user. The observation re-check runs even
// though the route group is already gated.
func (h *AdminHandler) ChangeRole(c *gin.Context) {
	eff := middleware.MustGetIdentity(c)
	if err := h.gate.CheckMutation(eff); err != nil {
		response.FromError(c, err, "interactions are disabled")
		return
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	role, err := identitydom.ParseRole(req.Role)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid role", err)
		return
	}

	targetID := c.Param("id")
	target, err := h.users.FindByID(c.Request.Context(), targetID)
	if err != nil {
		response.FromError(c, err, "user not found")
		return
	}

	// The caller must outrank both the current and the requested role
	if !eff.ActingAs.Role.CanManageRole(target.Role) || !eff.ActingAs.Role.CanManageRole(role) {
		response.Forbidden(c, "cannot manage this role")
		return
	}

	if err := h.users.UpdateRole(c.Request.Context(), targetID, role); err != nil {
		response.FromError(c, err, "failed to change role")
		return
	}

	h.logger.Info("role changed",
		zap.String("by", eff.ActingAs.Email),
		zap.String("user", target.Email),
		zap.String("role", string(role)),
	)

	response.Success(c, http.StatusOK, "role updated", nil)
}

// DeleteUser soft-deletes an account and drops its live connections.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	eff := middleware.MustGetIdentity(c)
	if err := h.gate.CheckMutation(eff); err != nil {
		response.FromError(c, err, "interactions are disabled")
		return
	}

	targetID := c.Param("id")
	target, err := h.users.FindByID(c.Request.Context(), targetID)
	if err != nil {
		response.FromError(c, err, "user not found")
		return
	}

	if !eff.ActingAs.Role.CanManageRole(target.Role) {
		response.Forbidden(c, "cannot manage this user")
		return
	}

	if err := h.users.Delete(c.Request.Context(), targetID); err != nil {
		response.FromError(c, err, "failed to delete user")
		return
	}

	h.hub.DisconnectUser(targetID, "account removed")

	h.logger.Info("user deleted",
		zap.String("by", eff.ActingAs.Email),
		zap.String("user", target.Email),
	)

	response.Success(c, http.StatusOK, "user deleted", nil)
}

// InviteUser creates a pending account with an assigned role.
func (h *AdminHandler) InviteUser(c *gin.Context) {
	eff := middleware.MustGetIdentity(c)
	if err := h.gate.CheckMutation(eff); err != nil {
		response.FromError(c, err, "interactions are disabled")
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	role, err := identitydom.ParseRole(req.Role)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid role", err)
		return
	}

	if !eff.ActingAs.Role.CanManageRole(role) {
		response.Forbidden(c, "cannot assign this role")
		return
	}

	id := ulid.Make().String()
	if err := h.users.Invite(c.Request.Context(), id, req.Email, role, eff.ActingAs.ID); err != nil {
		response.FromError(c, err, "failed to invite user")
		return
	}

	h.logger.Info("user invited",
		zap.String("by", eff.ActingAs.Email),
		zap.String("email", req.Email),
		zap.String("role", string(role)),
	)

	response.Success(c, http.StatusCreated, "user invited", gin.H{"id": id})
}
