package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"

	"supportapp/internal/config"
	"supportapp/internal/middleware"
	"supportapp/internal/observability"
	"supportapp/internal/serviceinterfaces"
	"supportapp/internal/version"
)

// Ticket submission routes
const (
	TicketsPath       = "/v1/support/tickets"
	LegacyTicketsPath = "/api/support-ticket"
)

// NewRouter creates the gin engine with all middleware and routes
func NewRouter(
	cfg *config.Config,
	supportService serviceinterfaces.SupportService,
	logger *observability.Logger,
) *gin.Engine {
	// Setup Gin mode
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger, nil))

	// Health check endpoint (defined before tracing so probes stay out of traces)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.OpenTelemetry.ServiceName})
	})

	// OpenTelemetry tracing and context propagation with automatic error attributes
	router.Use(observability.GinMiddlewareWithErrorHandling(cfg.OpenTelemetry.ServiceName)...)
	router.Use(middleware.SubmissionIDMiddleware())
	router.Use(middleware.RequestLoggingMiddleware(logger))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	// Setup CORS middleware
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", middleware.SubmissionIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.SubmissionIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Security middleware
	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	supportHandler := NewSupportHandler(supportService, logger)

	// The circuit breaker only guards ticket routes, which depend on the tracker
	breaker := middleware.DefaultErrorRecoveryConfig()
	breaker.EnableCircuitBreaker = true
	tickets := []gin.HandlerFunc{
		middleware.ErrorRecoveryMiddleware(logger, breaker),
		middleware.MaxBodySize(cfg.Server.MaxBodyBytes),
		supportHandler.SubmitTicket,
	}

	v1 := router.Group("/v1")
	{
		// Version endpoint (no auth)
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, version.Get(cfg.OpenTelemetry.ServiceName))
		})
		v1.POST(strings.TrimPrefix(TicketsPath, "/v1"), tickets...)
	}
	router.POST(LegacyTicketsPath, tickets...)

	router.NoRoute(func(c *gin.Context) {
		StandardizeHTTPError(c, http.StatusNotFound, "Not found", "")
	})

	// Automatic route listing at root path
	routeListing := NewRouteListingHandler(cfg.OpenTelemetry.ServiceName)
	routeListing.CollectRoutes(router)
	router.GET("/", routeListing.GetRouteListingJSON)

	return router
}
