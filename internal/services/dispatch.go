package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/tunebridge-backend/internal/data/repos"
	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/observability"
	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/gcp"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

type DispatchRequest struct {
	JobID        uuid.UUID
	VersionLabel string
	UserID       uuid.UUID
	Config       types.JobConfig
	CallbackURL  string
}

// Dispatcher hands one job to the batch executor.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (string, error)
}

type DispatcherConfig struct {
	JobName string
	Bucket  string
}

type dispatcher struct {
	log  *logger.Logger
	exec gcp.Executor
	cfg  DispatcherConfig
}

func NewDispatcher(log *logger.Logger, exec gcp.Executor, cfg DispatcherConfig) Dispatcher {
	return &dispatcher{
		log:  log.With("service", "Dispatcher"),
		exec: exec,
		cfg:  cfg,
	}
}

// BuildDispatchArgs renders the trainer container arguments.
func BuildDispatchArgs(req DispatchRequest, bucket string) []string {
	h := req.Config.Hyperparameters.Normalize()
	return []string{
		"--base-model=" + req.Config.BaseModel,
		"--output-name=" + req.Config.OutputName,
		"--training-data=" + req.Config.TrainingDataPath,
		"--bucket=" + bucket,
		"--job-id=" + req.JobID.String(),
		"--version=" + req.VersionLabel,
		"--callback-url=" + req.CallbackURL,
		"--epochs=" + strconv.Itoa(h.Epochs),
		"--learning-rate=" + strconv.FormatFloat(h.LearningRate, 'g', -1, 64),
		"--batch-size=" + strconv.Itoa(h.BatchSize),
		"--lora-rank=" + strconv.Itoa(h.LoraRank),
	}
}

// Dispatch returns the execution handle. Permission, quota and configuration
// failures are Fatal; all others are Retryable.
func (d *dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (handle string, err error) {
	ctx, span := observability.StartSpan(ctx, "finetune.dispatch", attribute.String("job.id", req.JobID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if d.exec == nil || strings.TrimSpace(d.cfg.JobName) == "" {
		return "", apierr.Fatal(errors.New("batch executor is not configured"))
	}
	args := BuildDispatchArgs(req, d.cfg.Bucket)
	handle, err = d.exec.RunJob(ctx, d.cfg.JobName, args)
	if err != nil {
		err = gcp.ClassifyExecutorError(err)
		d.log.Warn("dispatch failed", "job_id", req.JobID, "fatal", apierr.IsFatal(err), "error", err)
		return "", err
	}
	d.log.Info("job dispatched", "job_id", req.JobID, "version", req.VersionLabel, "handle", handle)
	return handle, nil
}

// JobDispatchService loads a job, dispatches it and records the handle.
type JobDispatchService interface {
	DispatchJob(ctx context.Context, jobID uuid.UUID) (string, error)
}

type jobDispatchService struct {
	log           *logger.Logger
	repos         repos.Set
	dispatcher    Dispatcher
	notify        JobNotifier
	publicBaseURL string
}

func NewJobDispatchService(log *logger.Logger, set repos.Set, dispatcher Dispatcher, notify JobNotifier, publicBaseURL string) JobDispatchService {
	return &jobDispatchService{
		log:           log.With("service", "JobDispatchService"),
		repos:         set,
		dispatcher:    dispatcher,
		notify:        notify,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

// CallbackURL is the per-run address the trainer reports completion to.
func CallbackURL(publicBaseURL string, jobID uuid.UUID, token string) string {
	return fmt.Sprintf("%s/api/callbacks/finetune/%s?token=%s",
		strings.TrimRight(publicBaseURL, "/"), jobID, url.QueryEscape(token))
}

// DispatchJob is safe to replay: a job that already carries a handle is not
// submitted again.
func (s *jobDispatchService) DispatchJob(ctx context.Context, jobID uuid.UUID) (string, error) {
	dbc := dbctx.Context{Ctx: ctx}
	job, err := s.repos.Jobs.GetByID(dbc, jobID)
	if err != nil {
		return "", apierr.Retryable(fmt.Errorf("load job: %w", err))
	}
	if job == nil {
		return "", apierr.Fatal(fmt.Errorf("job %s not found", jobID))
	}
	if job.ExecutionHandle != "" {
		return job.ExecutionHandle, nil
	}
	if job.Status != types.JobStatusQueued {
		return "", apierr.Fatal(fmt.Errorf("job %s is %s and cannot be dispatched", jobID, job.Status))
	}
	version, err := s.repos.Versions.GetByID(dbc, job.VersionID)
	if err != nil {
		return "", apierr.Retryable(fmt.Errorf("load version: %w", err))
	}
	if version == nil {
		return "", apierr.Fatal(fmt.Errorf("version %s for job %s not found", job.VersionID, jobID))
	}
	cfg, err := types.ParseJobConfig(job.Config)
	if err != nil {
		return "", apierr.Fatal(fmt.Errorf("decode job config: %w", err))
	}
	if s.publicBaseURL == "" {
		return "", apierr.Fatal(errors.New("PUBLIC_BASE_URL is not configured"))
	}

	handle, dispatchErr := s.dispatcher.Dispatch(ctx, DispatchRequest{
		JobID:        job.ID,
		VersionLabel: version.VersionLabel,
		UserID:       job.OwnerUserID,
		Config:       cfg,
		CallbackURL:  CallbackURL(s.publicBaseURL, job.ID, job.CallbackToken),
	})
	if dispatchErr != nil {
		if uerr := s.repos.Jobs.UpdateFields(dbc, job.ID, map[string]interface{}{
			"attempts": gorm.Expr("attempts + 1"),
			"error":    dispatchErr.Error(),
		}); uerr != nil {
			s.log.Warn("record dispatch attempt failed", "job_id", job.ID, "error", uerr)
		}
		return "", dispatchErr
	}

	now := time.Now().UTC()
	updated, err := s.repos.Jobs.UpdateFieldsIfStatus(dbc, job.ID, []string{types.JobStatusQueued}, map[string]interface{}{
		"execution_handle": handle,
		"status":           types.JobStatusRunning,
		"progress":         5,
		"started_at":       now,
		"attempts":         gorm.Expr("attempts + 1"),
		"error":            "",
	})
	if err != nil {
		return "", apierr.Retryable(fmt.Errorf("record execution handle: %w", err))
	}
	if !updated {
		s.log.Warn("job left queued state during dispatch", "job_id", job.ID, "handle", handle)
		return handle, nil
	}
	job.ExecutionHandle = handle
	job.Status = types.JobStatusRunning
	job.Progress = 5
	job.StartedAt = &now
	if s.notify != nil {
		s.notify.JobRunning(ctx, job)
	}
	return handle, nil
}
