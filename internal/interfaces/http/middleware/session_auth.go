package middleware

import (
	goerrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/soleron/sessiond/internal/domain/models"
	"github.com/soleron/sessiond/internal/domain/service"
	"github.com/soleron/sessiond/pkg/constants"
	"github.com/soleron/sessiond/pkg/errors"
	"github.com/soleron/sessiond/pkg/logger"
)

func extractBearer(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// DeviceContextFromRequest derives the fingerprint inputs from the current
// request. The fingerprint is always recomputed here, never read from the
// client.
func DeviceContextFromRequest(c *gin.Context) models.DeviceContext {
	return models.DeviceContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// RequireSession authenticates requests by bearer token. The lifecycle
// service enforces activity, expiry, and fingerprint policy; on success the
// session is placed in the gin context under constants.ContextKeySession.
func RequireSession(lifecycle *service.SessionLifecycleService, log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("SessionAuth")
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		session, err := lifecycle.Authenticate(c.Request.Context(), token, DeviceContextFromRequest(c))
		if err != nil {
			if goerrors.Is(err, errors.ErrFingerprintMismatch) {
				// Security signal: the session was already invalidated by
				// the lifecycle service. Force re-authentication.
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			if goerrors.Is(err, errors.ErrSessionNotFound) {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			log.Error(c.Request.Context(), "Session authentication failed", err)
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}

		c.Set(string(constants.ContextKeySession), session)
		c.Next()
	}
}
