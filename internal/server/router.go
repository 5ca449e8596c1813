package server

import (
	"html/template"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"timekeep/internal/auth"
	"timekeep/internal/handler"
	"timekeep/internal/hub"
	"timekeep/internal/middleware"
	"timekeep/internal/timer"
)

type Deps struct {
	Sessions *auth.SessionManager
	Tokens   *auth.TokenRegistry
	Timers   *timer.Engine
	Hub      *hub.Hub
	Clock    clockwork.Clock
}

// indexPage is deliberately minimal; the real front end consumes the token
// and the protocol, not this markup.
var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>timekeep</title></head>
<body>
{{- if .token }}
<p>Signed in as {{ .username }}</p>
<a href="/logout">Log out</a>
<script>window.CONNECTION_TOKEN = {{ .token }};</script>
{{- else }}
{{- if .authError }}<p>Wrong username or password</p>{{ end }}
{{- if .signUpError }}<p>User already exists</p>{{ end }}
<form method="post" action="/login">
<input name="username"><input name="password" type="password">
<button>Log in</button>
</form>
<form method="post" action="/signup">
<input name="username"><input name="password" type="password">
<button>Sign up</button>
</form>
{{- end }}
</body>
</html>
`))

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.SetHTMLTemplate(indexPage)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	r.Use(middleware.SessionAuth(deps.Sessions))

	pageHandler := &handler.PageHandler{Tokens: deps.Tokens}
	r.GET("/", pageHandler.Index)

	credentialLimiter := middleware.NewRateLimiter(10, time.Minute, deps.Clock)
	authHandler := &handler.AuthHandler{Sessions: deps.Sessions}
	credentials := r.Group("/")
	credentials.Use(middleware.RateLimitMiddleware(credentialLimiter))
	credentials.POST("/login", authHandler.Login)
	credentials.POST("/signup", authHandler.Signup)
	r.GET("/logout", authHandler.Logout)

	wsHandler := &handler.WebSocketHandler{
		Hub:    deps.Hub,
		Tokens: deps.Tokens,
		Timers: deps.Timers,
		Clock:  deps.Clock,
	}
	r.GET("/ws", wsHandler.Serve)

	return r
}
