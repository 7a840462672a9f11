package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/tunebridge-backend/internal/data/repos"
	"github.com/yungbote/tunebridge-backend/internal/data/txn"
	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/observability"
	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/ctxutil"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/gcp"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
	"github.com/yungbote/tunebridge-backend/internal/platform/secrets"
)

var modelNameRE = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,62}[a-z0-9]$|^[a-z0-9]$`)

type AdmitRequest struct {
	ModelID          *uuid.UUID            `json:"modelId,omitempty"`
	ModelName        string                `json:"modelName,omitempty"`
	BaseModel        string                `json:"baseModel"`
	TrainingDataPath string                `json:"trainingDataPath,omitempty"`
	Hyperparameters  types.Hyperparameters `json:"hyperparameters"`
}

type AdmitResult struct {
	JobID         uuid.UUID `json:"jobId"`
	ModelID       uuid.UUID `json:"modelId"`
	ModelName     string    `json:"modelName"`
	VersionID     uuid.UUID `json:"versionId"`
	VersionNumber int       `json:"versionNumber"`
	VersionLabel  string    `json:"versionLabel"`
	Status        string    `json:"status"`
}

type AdmissionService interface {
	Admit(ctx context.Context, userID uuid.UUID, req AdmitRequest) (*AdmitResult, error)
}

type AdmissionConfig struct {
	Bucket      string
	MaxAttempts int
}

type admissionService struct {
	log      *logger.Logger
	repos    repos.Set
	runner   txn.Runner
	launcher Launcher
	notify   JobNotifier
	cfg      AdmissionConfig
}

func NewAdmissionService(
	log *logger.Logger,
	set repos.Set,
	runner txn.Runner,
	launcher Launcher,
	notify JobNotifier,
	cfg AdmissionConfig,
) AdmissionService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = txn.DefaultMaxAttempts
	}
	return &admissionService{
		log:      log.With("service", "AdmissionService"),
		repos:    set,
		runner:   runner,
		launcher: launcher,
		notify:   notify,
		cfg:      cfg,
	}
}

func validateAdmitRequest(req *AdmitRequest) error {
	req.ModelName = strings.TrimSpace(req.ModelName)
	req.BaseModel = strings.TrimSpace(req.BaseModel)
	req.TrainingDataPath = strings.TrimSpace(req.TrainingDataPath)

	hasID := req.ModelID != nil && *req.ModelID != uuid.Nil
	hasName := req.ModelName != ""
	if hasID == hasName {
		return apierr.BadRequest("invalid_model_ref", "exactly one of modelId or modelName is required")
	}
	if hasName && !modelNameRE.MatchString(req.ModelName) {
		return apierr.BadRequest("invalid_model_name", "modelName must be 1-64 lowercase letters, digits, '.', '_' or '-'")
	}
	if req.TrainingDataPath != "" && !strings.HasPrefix(req.TrainingDataPath, "gs://") {
		return apierr.BadRequest("invalid_training_data", "trainingDataPath must be a gs:// URI")
	}
	h := req.Hyperparameters
	if h.Epochs < 0 || h.BatchSize < 0 || h.LoraRank < 0 || h.LearningRate < 0 {
		return apierr.BadRequest("invalid_hyperparameters", "hyperparameters must not be negative")
	}
	req.Hyperparameters = h.Normalize()
	return nil
}

// Admit atomically claims or reuses the model, enforces the one in-flight job
// per user rule, numbers the new version and creates version and job. The run
// is launched after commit on a detached context.
func (s *admissionService) Admit(ctx context.Context, userID uuid.UUID, req AdmitRequest) (res *AdmitResult, err error) {
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized("authentication required")
	}
	if err := validateAdmitRequest(&req); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, "finetune.admit", attribute.String("model.name", req.ModelName))
	defer func() { observability.EndSpan(span, err) }()

	var job *types.FineTuneJob
	err = txn.Retry(ctx, s.log, "finetune.admit", s.cfg.MaxAttempts, admitRetryable, func(attempt int) error {
		var txErr error
		res, job, txErr = s.admitOnce(ctx, userID, req)
		return txErr
	})
	if err != nil {
		if txn.IsUniqueViolation(err) {
			return nil, apierr.Of(apierr.KindConflict, "admission_conflict", fmt.Errorf("concurrent admission for this model or user: %w", err))
		}
		return nil, err
	}

	s.log.Info("finetune job admitted",
		"job_id", res.JobID,
		"model_id", res.ModelID,
		"version", res.VersionLabel,
		"user_id", userID,
	)
	if s.notify != nil {
		s.notify.JobCreated(ctx, job, res.VersionLabel)
	}
	if s.launcher != nil {
		if lerr := s.launcher.Launch(ctxutil.Detach(ctx), res.JobID); lerr != nil {
			// The reconciler relaunches queued jobs that never got a handle.
			s.log.Warn("launch after admission failed", "job_id", res.JobID, "error", lerr)
		}
	}
	return res, nil
}

func admitRetryable(err error) bool {
	return txn.IsSerializationFailure(err) || txn.IsUniqueViolation(err)
}

func (s *admissionService) admitOnce(ctx context.Context, userID uuid.UUID, req AdmitRequest) (*AdmitResult, *types.FineTuneJob, error) {
	var (
		res *AdmitResult
		job *types.FineTuneJob
	)
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		model, isNew, err := s.resolveModel(dbc, userID, req)
		if err != nil {
			return err
		}

		active, err := s.repos.Jobs.GetActiveForOwner(dbc, userID)
		if err != nil {
			return fmt.Errorf("load active job: %w", err)
		}
		if active != nil {
			return apierr.Conflict("job_in_progress", "a fine-tune job is already %s for this user", active.Status)
		}

		count := 0
		if !isNew {
			if count, err = s.repos.Versions.CountByModel(dbc, model.ID); err != nil {
				return fmt.Errorf("count versions: %w", err)
			}
		}
		number := count + 1
		label := types.VersionLabel(number)

		baseModel := req.BaseModel
		if baseModel == "" {
			baseModel = model.BaseModel
		}
		cfg := types.JobConfig{
			BaseModel:        baseModel,
			OutputName:       model.Name,
			TrainingDataPath: req.TrainingDataPath,
			Hyperparameters:  req.Hyperparameters,
		}
		token, err := secrets.RandomToken(24)
		if err != nil {
			return fmt.Errorf("callback token: %w", err)
		}

		now := time.Now().UTC()
		versionID := uuid.New()
		job = &types.FineTuneJob{
			ID:            uuid.New(),
			OwnerUserID:   userID,
			ModelID:       model.ID,
			VersionID:     versionID,
			Config:        cfg.JSON(),
			Status:        types.JobStatusQueued,
			Progress:      0,
			CallbackToken: token,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		version := &types.ModelVersion{
			ID:             versionID,
			ModelID:        model.ID,
			VersionNumber:  number,
			VersionLabel:   label,
			JobID:          job.ID,
			StoragePath:    gcp.ModelStoragePath(s.cfg.Bucket, model.Name, label),
			Status:         types.VersionStatusBuilding,
			ConfigSnapshot: cfg.JSON(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if isNew {
			model.VersionCount = 1
			model.LatestVersionID = &versionID
			if err := s.repos.Models.Create(dbc, model); err != nil {
				return err
			}
		} else if err := s.repos.Models.RecordNewVersion(dbc, model.ID, versionID); err != nil {
			return fmt.Errorf("bump version count: %w", err)
		}
		if err := s.repos.Versions.Create(dbc, version); err != nil {
			return err
		}
		if err := s.repos.Jobs.Create(dbc, job); err != nil {
			return err
		}

		res = &AdmitResult{
			JobID:         job.ID,
			ModelID:       model.ID,
			ModelName:     model.Name,
			VersionID:     versionID,
			VersionNumber: number,
			VersionLabel:  label,
			Status:        job.Status,
		}
		return nil
	})
	return res, job, err
}

// resolveModel loads the referenced model or stages a new one. The staged
// model is written by the caller.
func (s *admissionService) resolveModel(dbc dbctx.Context, userID uuid.UUID, req AdmitRequest) (*types.Model, bool, error) {
	if req.ModelID != nil && *req.ModelID != uuid.Nil {
		m, err := s.repos.Models.GetByID(dbc, *req.ModelID)
		if err != nil {
			return nil, false, fmt.Errorf("load model: %w", err)
		}
		if m == nil {
			return nil, false, apierr.NotFound("model_not_found", "model %s not found", *req.ModelID)
		}
		if m.OwnerUserID != userID {
			return nil, false, apierr.Forbidden("model belongs to another user")
		}
		return m, false, nil
	}

	m, err := s.repos.Models.GetByName(dbc, req.ModelName)
	if err != nil {
		return nil, false, fmt.Errorf("load model by name: %w", err)
	}
	if m != nil {
		if m.OwnerUserID != userID {
			return nil, false, apierr.Conflict("model_name_taken", "model name %q is already taken", req.ModelName)
		}
		return m, false, nil
	}
	if req.BaseModel == "" {
		return nil, false, apierr.BadRequest("invalid_base_model", "baseModel is required for a new model")
	}
	return &types.Model{
		ID:          uuid.New(),
		OwnerUserID: userID,
		Name:        req.ModelName,
		BaseModel:   req.BaseModel,
		Status:      types.ModelStatusActive,
	}, true, nil
}
