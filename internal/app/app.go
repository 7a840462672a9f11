package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/tunebridge-backend/internal/data/db"
	"github.com/yungbote/tunebridge-backend/internal/http"
	"github.com/yungbote/tunebridge-backend/internal/observability"
	"github.com/yungbote/tunebridge-backend/internal/platform/envutil"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
	"github.com/yungbote/tunebridge-backend/internal/realtime"
	"github.com/yungbote/tunebridge-backend/internal/services"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Services Services
	Server   *http.Server

	dbService    *db.Service
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	dbs, err := db.NewService(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbs.Migrate(); err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	svc, err := wireServices(dbs.DB(), log, cfg, clients)
	if err != nil {
		clients.Close()
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:          log,
		DB:           dbs.DB(),
		Cfg:          cfg,
		Clients:      clients,
		Services:     svc,
		dbService:    dbs,
		otelShutdown: otelShutdown,
	}
	if cfg.RunServer {
		router := wireRouter(log, cfg, wireHandlers(log, dbs.DB(), svc), svc)
		a.Server = http.NewServer(log, http.ServerConfig{
			Addr:            ":" + cfg.Port,
			ShutdownTimeout: cfg.ShutdownPeriod,
		}, router)
	}
	return a, nil
}

// Run starts background pollers and the HTTP server, then blocks until ctx
// is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return errors.New("app not initialized")
	}
	if a.Cfg.RunWorker {
		if err := a.Services.startBackground(ctx); err != nil {
			return err
		}
	}
	if a.Server != nil && a.Clients.JobBus != nil {
		if err := a.Clients.JobBus.StartForwarder(ctx, a.logJobEvent); err != nil {
			a.Log.Warn("job event forwarder not started", "error", err)
		}
	}
	if a.Server != nil {
		return a.Server.Run(ctx)
	}
	<-ctx.Done()
	return nil
}

func (a *App) logJobEvent(ev realtime.JobEvent) {
	a.Log.Debug("Job event", "type", ev.Type, "job_id", ev.JobID, "status", ev.Status)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Services.Reconciler != nil {
		a.Services.Reconciler.Stop()
	}
	if il, ok := a.Services.Launcher.(services.InlineLauncher); ok {
		il.Wait()
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
