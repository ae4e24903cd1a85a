package app

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"bizportal.io/portal/internal/api/handlers"
	"bizportal.io/portal/internal/api/middleware"
	"bizportal.io/portal/internal/config"
)

const apiBasePath = "/api/v1"

// defaultAllowedOrigins is used when server.allowed_origins is empty.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

func newRouter(cfg *config.Config, server *handlers.Server, jwtCfg middleware.JWTConfig) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		cors.New(buildCORSConfig(cfg)),
		middleware.RequestID(),
		middleware.ErrorHandler(),
		middleware.MustOpenAPIValidator(apiBasePath),
	)

	exportLimiter := middleware.NewRateLimiter(cfg.Export.RequestsPerMinute, cfg.Export.Burst)
	server.RegisterRoutes(router.Group(apiBasePath), handlers.RouteOptions{
		Auth:        middleware.JWTAuth(jwtCfg),
		Admin:       middleware.RequirePermission(middleware.PermissionPortsAdmin),
		ExportLimit: exportLimiter.Middleware(),
	})
	return router
}

// buildCORSConfig honours "*" only when UnsafeAllowAllOrigins is set, and
// never together with credentials.
func buildCORSConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Disposition", "Retry-After", "X-Request-ID"},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	wildcard := false
	for _, origin := range cfg.Server.AllowedOrigins {
		if origin == "*" {
			wildcard = true
			continue
		}
		origins = append(origins, origin)
	}

	if wildcard && cfg.Server.UnsafeAllowAllOrigins {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
		return corsCfg
	}
	if len(origins) == 0 {
		origins = append(origins, defaultAllowedOrigins...)
	}
	corsCfg.AllowOrigins = origins
	return corsCfg
}
