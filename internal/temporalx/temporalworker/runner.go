package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/tunebridge-backend/internal/platform/envutil"
	"github.com/yungbote/tunebridge-backend/internal/platform/httpx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
	"github.com/yungbote/tunebridge-backend/internal/services"
	"github.com/yungbote/tunebridge-backend/internal/temporalx"
	"github.com/yungbote/tunebridge-backend/internal/temporalx/finetunerun"
)

type Runner struct {
	log        *logger.Logger
	tc         temporalsdkclient.Client
	cfg        temporalx.Config
	dispatch   services.JobDispatchService
	completion services.CompletionService
}

func NewRunner(
	log *logger.Logger,
	tc temporalsdkclient.Client,
	cfg temporalx.Config,
	dispatch services.JobDispatchService,
	completion services.CompletionService,
) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if dispatch == nil || completion == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{
		log:        log.With("component", "TemporalWorker"),
		tc:         tc,
		cfg:        cfg,
		dispatch:   dispatch,
		completion: completion,
	}, nil
}

// Start polls the task queue until ctx is done. Startup is retried while the
// frontend or namespace is not yet available.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	maxWait := envutil.Seconds("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60)
	backoff := envutil.Millis("TEMPORAL_WORKER_START_BACKOFF_MS", 250)
	backoffMax := envutil.Millis("TEMPORAL_WORKER_START_BACKOFF_MAX_MS", 5000)
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		missingNamespace := errors.As(startErr, &nfe)
		if missingNamespace && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if maxWait <= 0 || time.Now().After(deadline) {
			if missingNamespace {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)
		if err := httpx.SleepContext(ctx, backoffFor(backoff, backoffMax, attempt)); err != nil {
			return err
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.cfg.WorkerConcurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.cfg.WorkerConcurrency,
	})
	acts := &finetunerun.Activities{
		Log:        r.log,
		Dispatch:   r.dispatch,
		Completion: r.completion,
	}
	w.RegisterWorkflowWithOptions(finetunerun.Workflow, workflow.RegisterOptions{Name: finetunerun.WorkflowName})
	w.RegisterActivityWithOptions(acts.DispatchJob, activity.RegisterOptions{Name: finetunerun.ActivityDispatch})
	w.RegisterActivityWithOptions(acts.Complete, activity.RegisterOptions{Name: finetunerun.ActivityComplete})
	w.RegisterActivityWithOptions(acts.Fail, activity.RegisterOptions{Name: finetunerun.ActivityFail})
	return w
}

func backoffFor(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	return sleep
}
