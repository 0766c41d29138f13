package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/timecapsule-api/internal/handler"
	"github.com/noah-isme/timecapsule-api/internal/middleware"
	"github.com/noah-isme/timecapsule-api/internal/service"
	"github.com/noah-isme/timecapsule-api/pkg/config"
	"github.com/noah-isme/timecapsule-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timecapsule-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timecapsule-api/pkg/middleware/requestid"
	"github.com/noah-isme/timecapsule-api/pkg/response"
)

// Handlers groups every HTTP handler mounted by New.
type Handlers struct {
	Auth       *handler.AuthHandler
	Events     *handler.EventHandler
	Categories *handler.CategoryHandler
	Trivia     *handler.TriviaHandler
	Imports    *handler.ImportHandler
	Metrics    *handler.MetricsHandler
}

// Options carries the cross-cutting dependencies of the router.
type Options struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *service.MetricsService
	Tokens  middleware.TokenValidator
}

// New builds the gin engine with middleware and routes.
func New(opts Options, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics, "/health", "/ready", "/metrics"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if opts.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := opts.Config.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}
	api := r.Group(strings.TrimRight(prefix, "/"))
	optional := middleware.OptionalJWT(opts.Tokens)
	secured := middleware.JWT(opts.Tokens)

	api.GET("/", welcome)
	api.POST("/signup", h.Auth.Signup)
	api.POST("/login", h.Auth.Login)
	api.GET("/check_session", optional, h.Auth.CheckSession)
	api.DELETE("/logout", h.Auth.Logout)

	events := api.Group("/events")
	events.GET("", h.Events.List)
	events.GET("/featured", h.Events.Featured)
	events.GET("/export", h.Events.Export)
	events.GET("/:id", h.Events.Get)
	events.POST("", secured, h.Events.Create)
	events.PATCH("/:id", secured, h.Events.Update)
	events.DELETE("/:id", secured, h.Events.Delete)

	categories := api.Group("/categories")
	categories.GET("", h.Categories.List)
	categories.POST("", secured, h.Categories.Create)
	categories.DELETE("/:id", secured, h.Categories.Delete)

	api.GET("/trivia", h.Trivia.Question)

	if h.Imports != nil {
		imports := api.Group("/imports", secured)
		imports.POST("", h.Imports.Enqueue)
		imports.GET("/:id", h.Imports.Status)
	}

	admin := api.Group("/admin", secured)
	admin.GET("/stats", h.Metrics.Stats)

	return r
}

// welcome godoc
// @Summary API root
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router / [get]
func welcome(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"message": "Welcome to the Tech Time Capsule API!"})
}
