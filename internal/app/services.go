package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/tunebridge-backend/internal/data/repos"
	"github.com/yungbote/tunebridge-backend/internal/data/txn"
	"github.com/yungbote/tunebridge-backend/internal/modules/datagen"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
	"github.com/yungbote/tunebridge-backend/internal/services"
	"github.com/yungbote/tunebridge-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Auth        services.AuthService
	Admission   services.AdmissionService
	Dispatch    services.JobDispatchService
	Completion  services.CompletionService
	Callbacks   services.CallbackService
	Credentials services.CredentialService
	Jobs        services.JobService
	Models      services.ModelService
	Launcher    services.Launcher

	// Inline mode only.
	Reconciler *services.Reconciler
	// Workflow mode with RUN_WORKER only.
	Worker *temporalworker.Runner
	// Nil without an OpenAI key.
	Datagen *datagen.Orchestrator
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, clients Clients) (Services, error) {
	log.Info("Wiring services...")
	set := repos.NewSet(db, log)
	runner := txn.NewGormRunner(db)

	notifier := services.NewJobNotifier(log, clients.JobBus)
	credentials := services.NewCredentialService(log, set, runner, clients.Cipher, cfg.InferenceBaseURL)
	completion := services.NewCompletionService(log, set, runner, credentials, notifier)
	dispatcher := services.NewDispatcher(log, clients.Executor, services.DispatcherConfig{
		JobName: cfg.RunJobName,
		Bucket:  cfg.ModelBucket,
	})
	dispatch := services.NewJobDispatchService(log, set, dispatcher, notifier, cfg.PublicBaseURL)

	out := Services{
		Auth:        services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer),
		Dispatch:    dispatch,
		Completion:  completion,
		Credentials: credentials,
		Jobs:        services.NewJobService(log, set),
		Models:      services.NewModelService(log, set, runner, clients.Store),
	}

	if clients.Temporal != nil {
		out.Launcher = services.NewTemporalLauncher(log, clients.Temporal, cfg.Temporal.TaskQueue, completion)
		if cfg.RunWorker {
			w, err := temporalworker.NewRunner(log, clients.Temporal, cfg.Temporal, dispatch, completion)
			if err != nil {
				return Services{}, fmt.Errorf("init temporal worker: %w", err)
			}
			out.Worker = w
			out.Reconciler = services.NewLaunchReconciler(log, set, out.Launcher, completion, cfg.Reconciler)
		}
	} else {
		out.Launcher = services.NewInlineLauncher(log, dispatch, completion)
		if cfg.RunWorker {
			out.Reconciler = services.NewReconciler(log, set, dispatch, completion, cfg.Reconciler)
		}
	}

	out.Admission = services.NewAdmissionService(log, set, runner, out.Launcher, notifier, services.AdmissionConfig{
		Bucket:      cfg.ModelBucket,
		MaxAttempts: cfg.AdmitAttempts,
	})
	out.Callbacks = services.NewCallbackService(log, set, out.Launcher)

	if clients.OpenAI != nil {
		roles, err := datagen.LoadRoles(cfg.DatagenRolesPath)
		if err != nil {
			return Services{}, fmt.Errorf("load datagen roles: %w", err)
		}
		out.Datagen = datagen.NewOrchestrator(log, clients.OpenAI, datagen.Config{
			Timeout: cfg.DatagenTimeout,
			Roles:   roles,
		})
	}
	return out, nil
}

// startBackground launches the pollers this process owns.
func (s Services) startBackground(ctx context.Context) error {
	if s.Worker != nil {
		if err := s.Worker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	if s.Reconciler != nil {
		if err := s.Reconciler.Start(ctx); err != nil {
			return fmt.Errorf("start reconciler: %w", err)
		}
	}
	return nil
}
