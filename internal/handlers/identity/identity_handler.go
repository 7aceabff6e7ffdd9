// internal/handlers/identity/identity_handler.go
package identity

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	identitydom "fedportal-service/internal/domain/identity"
	"fedportal-service/internal/middleware"
	"fedportal-service/internal/pkg/response"
	identitysvc "fedportal-service/internal/service/identity"
)

type IdentityHandler struct {
	identityService *identitysvc.Service
	logger          *zap.Logger
}

func NewIdentityHandler(identityService *identitysvc.Service, logger *zap.Logger) *IdentityHandler {
	return &IdentityHandler{
		identityService: identityService,
		logger:          logger,
	}
}

// Me returns the caller's effective identity with derived capabilities.
func (h *IdentityHandler) Me(c *gin.Context) {
	eff := middleware.MustGetIdentity(c)
	response.Success(c, http.StatusOK, "identity resolved", identitydom.NewIdentityResponse(eff))
}

// Impersonate switches the caller's session to view the portal as another
// user. Only a real super admin may start one, and never while one is
// already active.
func (h *IdentityHandler) Impersonate(c *gin.Context) {
	var req identitydom.ImpersonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	eff := middleware.MustGetIdentity(c)
	jti := middleware.MustGetJTI(c)

	next, err := h.identityService.Impersonate(c.Request.Context(), *eff, jti, req.TargetID)
	if err != nil {
		h.logger.Warn("impersonation rejected",
			zap.String("operator", eff.ActingAs.Email),
			zap.String("target_id", req.TargetID),
			zap.Error(err),
		)
		response.FromError(c, err, "impersonation failed")
		return
	}

	h.logger.Info("impersonation started",
		zap.String("operator", next.RealIdentity.Email),
		zap.String("viewing_as", next.ActingAs.Email),
	)

	response.Success(c, http.StatusOK, "impersonation started", identitydom.NewIdentityResponse(&next))
}

// StopImpersonating restores the caller's real identity.
func (h *IdentityHandler) StopImpersonating(c *gin.Context) {
	eff := middleware.MustGetIdentity(c)
	jti := middleware.MustGetJTI(c)

	next, err := h.identityService.StopImpersonating(c.Request.Context(), *eff, jti)
	if err != nil {
		response.FromError(c, err, "failed to stop impersonating")
		return
	}

	response.Success(c, http.StatusOK, "impersonation ended", identitydom.NewIdentityResponse(&next))
}
