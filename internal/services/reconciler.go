package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/yungbote/tunebridge-backend/internal/data/repos"
	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

type ReconcilerConfig struct {
	Schedule    string
	StaleAfter  time.Duration
	MaxAttempts int
	BatchSize   int
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.Schedule == "" {
		c.Schedule = "@every 1m"
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 2 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

// ReconcileResult counts what one sweep did.
type ReconcileResult struct {
	Scanned    int
	Dispatched int
	Failed     int
	Deferred   int
}

// Reconciler relaunches queued jobs whose launch never produced an execution
// handle and fails the ones that exhausted their attempts.
type Reconciler struct {
	log        *logger.Logger
	repos      repos.Set
	relaunch   func(ctx context.Context, jobID uuid.UUID) error
	completion CompletionService
	cfg        ReconcilerConfig

	mu   sync.Mutex
	cron *cron.Cron
}

// NewReconciler dispatches stale jobs in-process.
func NewReconciler(log *logger.Logger, set repos.Set, dispatch JobDispatchService, completion CompletionService, cfg ReconcilerConfig) *Reconciler {
	return &Reconciler{
		log:   log.With("service", "Reconciler"),
		repos: set,
		relaunch: func(ctx context.Context, jobID uuid.UUID) error {
			_, err := dispatch.DispatchJob(ctx, jobID)
			return err
		},
		completion: completion,
		cfg:        cfg.withDefaults(),
	}
}

// NewLaunchReconciler hands stale jobs back to the launcher. It covers
// admissions whose post-commit Launch failed, so the job never got a run.
// A failed launch counts as a dispatch attempt.
func NewLaunchReconciler(log *logger.Logger, set repos.Set, launcher Launcher, completion CompletionService, cfg ReconcilerConfig) *Reconciler {
	r := &Reconciler{
		log:        log.With("service", "Reconciler"),
		repos:      set,
		completion: completion,
		cfg:        cfg.withDefaults(),
	}
	r.relaunch = func(ctx context.Context, jobID uuid.UUID) error {
		dbc := dbctx.Context{Ctx: ctx}
		if err := launcher.Launch(ctx, jobID); err != nil {
			if _, uerr := set.Jobs.UpdateFieldsIfStatus(dbc, jobID, []string{types.JobStatusQueued}, map[string]interface{}{
				"attempts": gorm.Expr("attempts + 1"),
				"error":    err.Error(),
			}); uerr != nil {
				r.log.Warn("record launch attempt failed", "job_id", jobID, "error", uerr)
			}
			return apierr.Retryable(err)
		}
		// Touch the row so the run gets a full stale window to dispatch.
		if _, err := set.Jobs.UpdateFieldsIfStatus(dbc, jobID, []string{types.JobStatusQueued}, map[string]interface{}{
			"updated_at": time.Now().UTC(),
		}); err != nil {
			r.log.Warn("touch relaunched job failed", "job_id", jobID, "error", err)
		}
		return nil
	}
	return r
}

// Start schedules sweeps until ctx is done or Stop is called.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.cfg.Schedule, func() {
		res, err := r.Sweep(ctx)
		if err != nil {
			r.log.Warn("reconcile sweep failed", "error", err)
			return
		}
		if res.Scanned > 0 {
			r.log.Info("reconcile sweep",
				"scanned", res.Scanned,
				"dispatched", res.Dispatched,
				"failed", res.Failed,
				"deferred", res.Deferred,
			)
		}
	}); err != nil {
		return fmt.Errorf("schedule reconciler %q: %w", r.cfg.Schedule, err)
	}
	c.Start()
	r.cron = c
	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

func (r *Reconciler) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Sweep runs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	cutoff := time.Now().UTC().Add(-r.cfg.StaleAfter)
	jobs, err := r.repos.Jobs.ListStaleQueued(dbctx.Context{Ctx: ctx}, cutoff, r.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("list stale jobs: %w", err)
	}
	res.Scanned = len(jobs)
	for _, job := range jobs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if job.Attempts >= r.cfg.MaxAttempts {
			msg := fmt.Sprintf("dispatch gave up after %d attempts", job.Attempts)
			if job.Error != "" {
				msg += ": " + job.Error
			}
			if err := r.completion.Fail(ctx, job.ID, msg); err != nil {
				r.log.Warn("fail exhausted job", "job_id", job.ID, "error", err)
				continue
			}
			res.Failed++
			continue
		}
		err := r.relaunch(ctx, job.ID)
		switch {
		case err == nil:
			res.Dispatched++
		case apierr.IsFatal(err):
			if ferr := r.completion.Fail(ctx, job.ID, err.Error()); ferr != nil {
				r.log.Warn("fail job after fatal dispatch", "job_id", job.ID, "error", ferr)
				continue
			}
			res.Failed++
		default:
			r.log.Debug("dispatch deferred", "job_id", job.ID, "error", err)
			res.Deferred++
		}
	}
	return res, nil
}
