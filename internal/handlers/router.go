package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/account-api/internal/logging"
	"github.com/harentsoaR/account-api/internal/middleware"
	"github.com/harentsoaR/account-api/internal/web"
)

type RouterOptions struct {
	CORSOrigins []string
	// Limiter guards signup and login. Nil disables rate limiting.
	Limiter *middleware.RateLimiter
}

// NewRouter wires middleware, the JSON API and the browser views.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.RequestLogger(h.Log))

	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if opts.Limiter != nil {
		limit = opts.Limiter.Handler()
	}
	auth := middleware.AuthMiddleware(h.Accounts)

	// --- Views ---
	r.SetHTMLTemplate(web.Templates())
	r.StaticFS("/static", http.FS(web.Static()))
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/login") })
	r.GET("/signup", h.SignupPage)
	r.GET("/login", h.LoginPage)
	r.GET("/profile", h.ProfilePage)

	r.GET("/healthz", h.Health)

	// --- API ---
	api := r.Group("/api")
	{
		api.POST("/users", limit, h.CreateUser)
		api.POST("/auth/login", limit, h.Login)
		api.POST("/auth/logout", auth, h.Logout)

		users := api.Group("/users/:id", auth)
		users.GET("", h.GetUser)
		users.PUT("", h.UpdateUser)
		users.DELETE("", h.DeleteUser)
	}

	return r
}
