// internal/pkg/response/status.go
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	xerrors "fedportal-service/internal/pkg/errors"
)

// FromError maps a service error onto the wire: sentinel errors pick the
// status, everything else is a 500.
func FromError(c *gin.Context, err error, message string) {
	Error(c, statusOf(err), message, err)
}

func statusOf(err error) int {
	switch {
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case xerrors.Is(err, xerrors.ErrUnauthorized), xerrors.Is(err, xerrors.ErrSessionExpired):
		return http.StatusUnauthorized
	case xerrors.Is(err, xerrors.ErrPermissionDenied):
		return http.StatusForbidden
	case xerrors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case xerrors.Is(err, xerrors.ErrInvalidState):
		return http.StatusConflict
	case xerrors.Is(err, xerrors.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
