package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/carenethq/carenet-server/internal/features"
	"github.com/carenethq/carenet-server/pkg/errors"
	"github.com/carenethq/carenet-server/pkg/response"
)

// FeatureGuard consults the caller's account-lockout state before any
// protected handler runs, denying routes whose feature code the lockout
// covers. The denial carries the lockout reason so clients can explain it.
func FeatureGuard(guard *features.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(CtxUserIDKey)
		if userID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		decision, err := guard.Check(c.Request.Context(), userID, c.Request.Method, path)
		if err != nil {
			// Only reachable in fail-closed mode.
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
			c.Abort()
			return
		}

		if !decision.Allowed {
			response.Error(c, errors.ErrAccountLocked.WithMessage(
				"Account feature "+decision.Feature+" is locked: "+string(decision.Reason)))
			c.Abort()
			return
		}

		c.Next()
	}
}
