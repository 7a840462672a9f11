package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/tunebridge-backend/internal/data/repos"
	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

const defaultJobListLimit = 50

type JobService interface {
	GetJob(ctx context.Context, userID, jobID uuid.UUID) (*types.FineTuneJob, error)
	ListJobs(ctx context.Context, userID uuid.UUID) ([]*types.FineTuneJob, error)
}

type jobService struct {
	log   *logger.Logger
	repos repos.Set
}

func NewJobService(log *logger.Logger, set repos.Set) JobService {
	return &jobService{log: log.With("service", "JobService"), repos: set}
}

func (s *jobService) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*types.FineTuneJob, error) {
	job, err := s.repos.Jobs.GetByID(dbctx.Context{Ctx: ctx}, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	// Other users' jobs are reported as missing.
	if job == nil || job.OwnerUserID != userID {
		return nil, apierr.NotFound("job_not_found", "job %s not found", jobID)
	}
	return job, nil
}

func (s *jobService) ListJobs(ctx context.Context, userID uuid.UUID) ([]*types.FineTuneJob, error) {
	jobs, err := s.repos.Jobs.ListByOwner(dbctx.Context{Ctx: ctx}, userID, defaultJobListLimit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if jobs == nil {
		jobs = []*types.FineTuneJob{}
	}
	return jobs, nil
}
