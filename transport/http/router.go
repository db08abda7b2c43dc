package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/basetips/internal/metrics"
	"github.com/layer-3/basetips/ports"
	"github.com/layer-3/basetips/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig holds everything the router serves
type RouterConfig struct {
	Auth      *service.AuthService
	Dashboard *service.DashboardService
	Sessions  ports.SessionStore
	Logger    zerolog.Logger

	// Metrics and Gatherer are optional
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// SetupRouter sets up the Gin router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(cfg.Logger), MetricsMiddleware(cfg.Metrics))

	router.GET("/healthz", Health)
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// Create handlers
	authHandlers := NewAuthHandlers(cfg.Auth, cfg.Sessions, cfg.Logger)
	dashboardHandlers := NewDashboardHandlers(cfg.Dashboard, cfg.Logger)

	withSession := SessionMiddleware(cfg.Sessions, cfg.Logger)

	// Auth routes
	auth := router.Group("/auth")
	auth.Use(withSession)
	{
		auth.GET("/nonce", authHandlers.Nonce)
		auth.POST("/verify", authHandlers.Verify)
		auth.GET("/me", authHandlers.Me)
		auth.POST("/logout", authHandlers.Logout)
	}

	// Public stickers
	router.GET("/api/qr/:address", dashboardHandlers.QR)

	// Protected API routes
	api := router.Group("/api")
	api.Use(withSession, AuthMiddleware())
	{
		api.GET("/qr", dashboardHandlers.MyQR)
		api.GET("/tips", dashboardHandlers.Tips)
	}

	return router
}
