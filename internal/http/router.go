package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/tunebridge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/tunebridge-backend/internal/http/middleware"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler   *httpH.HealthHandler
	JobHandler      *httpH.JobHandler
	ModelHandler    *httpH.ModelHandler
	CallbackHandler *httpH.CallbackHandler
	DatagenHandler  *httpH.DatagenHandler
	KeyHandler      *httpH.KeyHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(gin.Recovery())
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	{
		// Trainer callbacks authenticate with the per-job token.
		if cfg.CallbackHandler != nil {
			api.POST("/callbacks/finetune/:jobId", cfg.CallbackHandler.FinetuneCallback)
		}
		if cfg.KeyHandler != nil {
			api.POST("/keys/introspect", cfg.KeyHandler.Introspect)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Jobs
		if cfg.JobHandler != nil {
			protected.POST("/jobs", cfg.JobHandler.CreateJob)
			protected.GET("/jobs", cfg.JobHandler.ListJobs)
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}

		// Models
		if cfg.ModelHandler != nil {
			protected.GET("/models", cfg.ModelHandler.ListModels)
			protected.GET("/models/availability", cfg.ModelHandler.CheckAvailability)
			protected.GET("/models/:id", cfg.ModelHandler.GetModel)
			protected.POST("/models/:id/activate", cfg.ModelHandler.ActivateVersion)
			protected.GET("/models/:id/api-key", cfg.ModelHandler.GetAPIKey)
		}

		// Data generation
		if cfg.DatagenHandler != nil {
			protected.POST("/datagen", cfg.DatagenHandler.Generate)
		}
	}

	return r
}
