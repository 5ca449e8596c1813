package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"timekeep/internal/auth"
	"timekeep/internal/model"
)

// SessionCookie is the cookie carrying the session id.
const SessionCookie = "sessionId"

const (
	userContextKey    = "user"
	sessionContextKey = "sessionID"
)

// UserFromContext returns the authenticated user set by SessionAuth, if any.
func UserFromContext(c *gin.Context) (*model.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*model.User)
	return user, ok && user != nil
}

// SessionIDFromContext returns the session id the request authenticated
// with.
func SessionIDFromContext(c *gin.Context) (string, bool) {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}

// SessionAuth resolves the session cookie to a user and stores both on the
// request context. Requests without a valid session simply pass through
// unauthenticated; handlers decide whether that matters.
func SessionAuth(sm *auth.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(SessionCookie)
		if err != nil || sessionID == "" {
			c.Next()
			return
		}

		user, err := sm.Authenticate(c.Request.Context(), sessionID)
		if err != nil {
			log.Error().Err(err).Msg("session lookup failed")
			c.Next()
			return
		}
		if user == nil {
			c.Next()
			return
		}

		c.Set(userContextKey, user)
		c.Set(sessionContextKey, sessionID)
		c.Next()
	}
}

// RequireUser aborts with 401 unless SessionAuth attached a user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserFromContext(c); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			c.Abort()
			return
		}
		c.Next()
	}
}
