package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/marksvault/pkg/errors"
	"github.com/noah-isme/marksvault/pkg/response"
)

// SessionChecker reports whether decrypted records are reachable.
type SessionChecker interface {
	IsUnlocked() bool
}

// RequireUnlocked rejects data routes with 423 while the record store is locked.
func RequireUnlocked(session SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if session == nil || !session.IsUnlocked() {
			response.Error(c, appErrors.Clone(appErrors.ErrLocked, ""))
			return
		}
		c.Next()
	}
}
