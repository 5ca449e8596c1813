package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"timekeep/internal/auth"
	"timekeep/internal/middleware"
)

// PageHandler serves the index page. For an authenticated request it mints a
// fresh connection token and embeds it, which is what authorizes the page's
// WebSocket dial. Every page load gets its own token, so multiple tabs each
// hold one.
type PageHandler struct {
	Tokens *auth.TokenRegistry
}

func (h *PageHandler) Index(c *gin.Context) {
	data := gin.H{
		"authError":   c.Query("authError") == "true",
		"signUpError": c.Query("signUpError") == "true",
	}

	if user, ok := middleware.UserFromContext(c); ok {
		token, err := h.Tokens.Issue(*user)
		if err != nil {
			log.Error().Err(err).Msg("issuing connection token failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}
		data["username"] = user.Username
		data["token"] = token
	}

	c.HTML(http.StatusOK, "index", data)
}
