package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/tunebridge-backend/internal/data/repos"
	"github.com/yungbote/tunebridge-backend/internal/data/txn"
	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/observability"
	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

// CallbackSignal is the outcome the trainer reports for a run.
type CallbackSignal struct {
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	ExecutionHandle string `json:"executionHandle,omitempty"`
}

const defaultFailureMessage = "fine-tune run reported failure"

type CompletionService interface {
	// Apply routes a callback to Complete or Fail. A Fatal error while
	// completing fails the job instead.
	Apply(ctx context.Context, jobID uuid.UUID, sig CallbackSignal) error
	Complete(ctx context.Context, jobID uuid.UUID, executionHandle string) error
	Fail(ctx context.Context, jobID uuid.UUID, message string) error
}

type completionService struct {
	log         *logger.Logger
	repos       repos.Set
	runner      txn.Runner
	credentials CredentialService
	notify      JobNotifier
}

func NewCompletionService(log *logger.Logger, set repos.Set, runner txn.Runner, credentials CredentialService, notify JobNotifier) CompletionService {
	return &completionService{
		log:         log.With("service", "CompletionService"),
		repos:       set,
		runner:      runner,
		credentials: credentials,
		notify:      notify,
	}
}

func (s *completionService) Apply(ctx context.Context, jobID uuid.UUID, sig CallbackSignal) (err error) {
	ctx, span := observability.StartSpan(ctx, "finetune.complete",
		attribute.String("job.id", jobID.String()),
		attribute.Bool("callback.success", sig.Success),
	)
	defer func() { observability.EndSpan(span, err) }()

	if sig.Success {
		err = s.Complete(ctx, jobID, sig.ExecutionHandle)
		if apierr.IsFatal(err) {
			s.log.Error("completion failed fatally; failing job", "job_id", jobID, "error", err)
			err = s.Fail(ctx, jobID, err.Error())
		}
	} else {
		err = s.Fail(ctx, jobID, sig.Error)
	}
	if err != nil {
		return err
	}
	if merr := s.repos.CallbackEvents.MarkApplied(dbctx.Context{Ctx: ctx}, jobID, time.Now().UTC()); merr != nil {
		s.log.Warn("mark callback applied failed", "job_id", jobID, "error", merr)
	}
	return nil
}

// Complete issues the model key while the job is still active, then marks the
// version ready, activates it if the model never had an active version and
// completes the job. A Fatal from key provisioning leaves the job active so
// Apply can fail it. Replays are no-ops apart from re-ensuring the key.
func (s *completionService) Complete(ctx context.Context, jobID uuid.UUID, executionHandle string) error {
	job, err := s.repos.Jobs.GetByID(dbctx.Context{Ctx: ctx}, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return apierr.Fatal(fmt.Errorf("job %s not found", jobID))
	}
	if job.Status == types.JobStatusFailed {
		s.log.Warn("ignoring success callback for failed job", "job_id", jobID)
		return nil
	}

	if _, _, err := s.credentials.EnsureModelKey(ctx, job.ModelID); err != nil {
		return fmt.Errorf("provision api key: %w", err)
	}
	if job.Status == types.JobStatusCompleted {
		return nil
	}

	var (
		completed bool
		activate  bool
	)
	err = s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		current, err := s.repos.Jobs.GetByID(dbc, jobID)
		if err != nil {
			return fmt.Errorf("load job: %w", err)
		}
		if current == nil {
			return apierr.Fatal(fmt.Errorf("job %s not found", jobID))
		}
		if types.IsTerminalJobStatus(current.Status) {
			return nil
		}
		job = current
		version, err := s.repos.Versions.GetByID(dbc, job.VersionID)
		if err != nil {
			return fmt.Errorf("load version: %w", err)
		}
		if version == nil {
			return apierr.Fatal(fmt.Errorf("version %s not found", job.VersionID))
		}

		now := time.Now().UTC()
		if _, err := s.repos.Versions.UpdateFieldsIfStatus(dbc, version.ID, []string{types.VersionStatusBuilding}, map[string]interface{}{
			"status":   types.VersionStatusReady,
			"ready_at": now,
		}); err != nil {
			return fmt.Errorf("mark version ready: %w", err)
		}
		if activate, err = s.repos.Models.ActivateFirstVersion(dbc, job.ModelID, version.ID); err != nil {
			return fmt.Errorf("activate first version: %w", err)
		}

		updates := map[string]interface{}{
			"status":       types.JobStatusCompleted,
			"progress":     100,
			"completed_at": now,
			"error":        "",
		}
		if h := strings.TrimSpace(executionHandle); h != "" && job.ExecutionHandle == "" {
			updates["execution_handle"] = h
			job.ExecutionHandle = h
		}
		if completed, err = s.repos.Jobs.UpdateFieldsIfStatus(dbc, job.ID, types.ActiveJobStatuses, updates); err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
		job.Status = types.JobStatusCompleted
		job.Progress = 100
		job.CompletedAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	if !completed {
		return nil
	}
	s.log.Info("finetune job completed", "job_id", job.ID, "model_id", job.ModelID, "activated", activate)
	if s.notify != nil {
		s.notify.JobCompleted(ctx, job)
	}
	return nil
}

// Fail marks job and version failed together. Terminal jobs are left alone.
func (s *completionService) Fail(ctx context.Context, jobID uuid.UUID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = defaultFailureMessage
	}
	var (
		job    *types.FineTuneJob
		failed bool
	)
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		var err error
		job, err = s.repos.Jobs.GetByID(dbc, jobID)
		if err != nil {
			return fmt.Errorf("load job: %w", err)
		}
		if job == nil {
			return apierr.NotFound("job_not_found", "job %s not found", jobID)
		}
		if types.IsTerminalJobStatus(job.Status) {
			return nil
		}
		now := time.Now().UTC()
		failed, err = s.repos.Jobs.UpdateFieldsIfStatus(dbc, job.ID, types.ActiveJobStatuses, map[string]interface{}{
			"status":    types.JobStatusFailed,
			"error":     message,
			"failed_at": now,
		})
		if err != nil {
			return fmt.Errorf("fail job: %w", err)
		}
		if _, err := s.repos.Versions.UpdateFieldsIfStatus(dbc, job.VersionID, []string{types.VersionStatusBuilding}, map[string]interface{}{
			"status":    types.VersionStatusFailed,
			"error":     message,
			"failed_at": now,
		}); err != nil {
			return fmt.Errorf("fail version: %w", err)
		}
		job.Status = types.JobStatusFailed
		job.Error = message
		job.FailedAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	if failed {
		s.log.Warn("finetune job failed", "job_id", jobID, "error", message)
		if s.notify != nil {
			s.notify.JobFailed(ctx, job, message)
		}
	}
	return nil
}
