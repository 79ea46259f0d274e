package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/estate-copilot/server/internal/copilot/model"
	"github.com/estate-copilot/server/internal/server/middleware"
)

// NewRouter assembles the gin engine: CORS, health unauthenticated, the
// workflow endpoints behind bearer auth.
func NewRouter(h *Handler, serverCfg model.ServerConfig, authCfg model.AuthConfig) *gin.Engine {
	if serverCfg.GinMode != "" {
		gin.SetMode(serverCfg.GinMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLog())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     splitOrigins(serverCfg.AllowedOrigins),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", h.Health)

	authed := r.Group("/", middleware.Auth(authCfg))
	authed.POST("/invoke", h.Invoke)
	authed.POST("/resume", h.Resume)
	authed.GET("/state", h.State)
	authed.POST("/state", h.State)
	authed.GET("/decorated-image/:property_id", h.DecoratedImage)

	return r
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		out = []string{"http://localhost:3000"}
	}
	return out
}
