package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"timekeep/internal/auth"
	"timekeep/internal/middleware"
)

// AuthHandler serves the form-encoded credential endpoints. Failures
// redirect back to the index page with a flag the page turns into a message,
// matching classic server-rendered flows.
type AuthHandler struct {
	Sessions *auth.SessionManager
}

type credentialsForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var form credentialsForm
	if err := c.ShouldBind(&form); err != nil {
		c.Redirect(http.StatusFound, "/?authError=true")
		return
	}

	sessionID, err := h.Sessions.Login(c.Request.Context(), form.Username, form.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.Redirect(http.StatusFound, "/?authError=true")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	setSessionCookie(c, sessionID)
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var form credentialsForm
	if err := c.ShouldBind(&form); err != nil {
		c.Redirect(http.StatusFound, "/?signUpError=true")
		return
	}

	sessionID, err := h.Sessions.Signup(c.Request.Context(), form.Username, form.Password)
	if errors.Is(err, auth.ErrUsernameTaken) {
		c.Redirect(http.StatusFound, "/?signUpError=true")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("signup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	setSessionCookie(c, sessionID)
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if sessionID, ok := middleware.SessionIDFromContext(c); ok {
		if err := h.Sessions.Logout(c.Request.Context(), sessionID); err != nil {
			log.Error().Err(err).Msg("logout failed")
		}
	}
	clearSessionCookie(c)
	c.Redirect(http.StatusFound, "/")
}

func setSessionCookie(c *gin.Context, sessionID string) {
	c.SetCookie(middleware.SessionCookie, sessionID, 0, "/", "", false, true)
}

func clearSessionCookie(c *gin.Context) {
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
}
