// internal/middleware/gate_middleware.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fedportal-service/internal/pkg/response"
	"fedportal-service/internal/service/gate"
)

// ObservationGate blocks mutating requests while the caller is viewing the
// portal as another user. Safe methods pass through; so do requests whose
// control marker is on the whitelist (exiting impersonation, navigation,
// tab switches, period selection). Everything else gets a 403 carrying a
// transient warning payload, and the session's blocked counter moves.
//
// This is the outer layer; mutating handlers re-check observation mode
// themselves.
func ObservationGate(g *gate.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		eff, ok := GetIdentity(c)
		if !ok || !eff.IsObservation {
			c.Next()
			return
		}

		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		control := c.GetHeader(gate.ControlHeader)
		if gate.Allowed(control) {
			c.Next()
			return
		}

		jti, _ := GetJTI(c)
		warning := g.Block(c.Request.Context(), eff, jti, control)
		response.Error(c, http.StatusForbidden, warning.Message, nil, warning)
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
