package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/noah-isme/insight-compliance-api/internal/handler"
	"github.com/noah-isme/insight-compliance-api/internal/middleware"
	"github.com/noah-isme/insight-compliance-api/pkg/config"
	"github.com/noah-isme/insight-compliance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/insight-compliance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/insight-compliance-api/pkg/middleware/requestid"
)

// NewRouter mounts every HTTP route on a fresh gin engine.
func NewRouter(c *Container) *gin.Engine {
	cfg := c.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(logger.GinMiddleware(c.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(c.Metrics, "/metrics"))
	r.Use(middleware.WithResponseMeta())

	checks := map[string]handler.Pinger{}
	if c.ParticipantStore != nil {
		checks["participants"] = c.ParticipantStore
	}
	if c.CacheRepo != nil {
		checks["cache"] = c.CacheRepo
	}
	metricsHandler := handler.NewMetricsHandler(c.Metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(c.Auth)
	participantHandler := handler.NewParticipantHandler(c.Participants, c.Messaging)
	complianceHandler := handler.NewComplianceHandler(c.Compliance, c.Daily)
	dashboardHandler := handler.NewDashboardHandler(c.Dashboard)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(c.Auth))
	secured.GET("/auth/me", authHandler.Me)

	participants := secured.Group("/participants")
	participants.GET("", participantHandler.List)
	participants.POST("", middleware.Audit(c.Logger, "participant.register", "participant"), participantHandler.Register)
	participants.GET("/:id", participantHandler.Get)
	participants.PATCH("/:id", middleware.Audit(c.Logger, "participant.update", "participant"), participantHandler.Update)
	participants.DELETE("/:id", middleware.Audit(c.Logger, "participant.delete", "participant"), participantHandler.Delete)
	participants.POST("/:id/sms", middleware.Audit(c.Logger, "participant.sms", "participant"), participantHandler.SendSMS)

	compliance := secured.Group("/compliance")
	compliance.GET("/participants/:id", complianceHandler.Participant)
	compliance.GET("/participants/:id/send-times", complianceHandler.SendTimes)
	compliance.GET("/daily", complianceHandler.Daily)

	if c.ExportJobs != nil {
		exportHandler := handler.NewExportHandler(c.ExportJobs)
		compliance.POST("/exports", middleware.Audit(c.Logger, "export.create", "export"), exportHandler.Create)
		compliance.GET("/exports/:id", exportHandler.Status)
		api.GET("/export/:token", exportHandler.Download)
	}

	secured.GET("/dashboard", dashboardHandler.Summary)

	return r
}
