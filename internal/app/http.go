package app

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/tunebridge-backend/internal/http"
	httpH "github.com/yungbote/tunebridge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/tunebridge-backend/internal/http/middleware"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Job      *httpH.JobHandler
	Model    *httpH.ModelHandler
	Callback *httpH.CallbackHandler
	Datagen  *httpH.DatagenHandler
	Key      *httpH.KeyHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, svc Services) Handlers {
	log.Info("Wiring handlers...")
	h := Handlers{
		Health: httpH.NewHealthHandler(func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
		Job:      httpH.NewJobHandler(svc.Admission, svc.Jobs),
		Model:    httpH.NewModelHandler(svc.Models, svc.Credentials),
		Callback: httpH.NewCallbackHandler(svc.Callbacks),
		Key:      httpH.NewKeyHandler(svc.Credentials),
	}
	if svc.Datagen != nil {
		h.Datagen = httpH.NewDatagenHandler(svc.Datagen)
	}
	return h
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, svc Services) *gin.Engine {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:             log,
		ServiceName:     serviceName,
		CORSOrigins:     cfg.CORSOrigins,
		AuthMiddleware:  httpMW.NewAuthMiddleware(log, svc.Auth),
		HealthHandler:   handlers.Health,
		JobHandler:      handlers.Job,
		ModelHandler:    handlers.Model,
		CallbackHandler: handlers.Callback,
		DatagenHandler:  handlers.Datagen,
		KeyHandler:      handlers.Key,
	})
}
