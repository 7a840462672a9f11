package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/tunebridge-backend/internal/data/repos"
	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
	"github.com/yungbote/tunebridge-backend/internal/platform/secrets"
)

// CallbackResult tells the trainer whether this delivery was a replay.
type CallbackResult struct {
	JobID     uuid.UUID `json:"jobId"`
	Duplicate bool      `json:"duplicate"`
	Status    string    `json:"status"`
}

type CallbackService interface {
	// Ingest authenticates a trainer callback, records it durably and hands
	// it to the launcher. The first recorded outcome wins.
	Ingest(ctx context.Context, jobID uuid.UUID, token string, sig CallbackSignal) (*CallbackResult, error)
}

type callbackService struct {
	log      *logger.Logger
	repos    repos.Set
	launcher Launcher
}

func NewCallbackService(log *logger.Logger, set repos.Set, launcher Launcher) CallbackService {
	return &callbackService{
		log:      log.With("service", "CallbackService"),
		repos:    set,
		launcher: launcher,
	}
}

func (s *callbackService) Ingest(ctx context.Context, jobID uuid.UUID, token string, sig CallbackSignal) (*CallbackResult, error) {
	dbc := dbctx.Context{Ctx: ctx}
	job, err := s.repos.Jobs.GetByID(dbc, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return nil, apierr.NotFound("job_not_found", "job %s not found", jobID)
	}
	token = strings.TrimSpace(token)
	if token == "" || !secrets.ConstantTimeEqual(token, job.CallbackToken) {
		return nil, apierr.Forbidden("invalid callback token")
	}

	stored, created, err := s.repos.CallbackEvents.Record(dbc, &types.CallbackEvent{
		JobID:           jobID,
		Success:         sig.Success,
		ErrorMessage:    strings.TrimSpace(sig.Error),
		ExecutionHandle: strings.TrimSpace(sig.ExecutionHandle),
		ReceivedAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("record callback: %w", err)
	}
	if !created && stored.Success != sig.Success {
		s.log.Warn("conflicting callback ignored", "job_id", jobID, "first_success", stored.Success)
	}
	// Redeliver the stored outcome even on replays so a crash between record
	// and apply converges.
	first := CallbackSignal{
		Success:         stored.Success,
		Error:           stored.ErrorMessage,
		ExecutionHandle: stored.ExecutionHandle,
	}
	if created || stored.AppliedAt == nil {
		if err := s.launcher.DeliverCallback(ctx, jobID, first); err != nil {
			return nil, err
		}
	}

	status := job.Status
	if cur, err := s.repos.Jobs.GetByID(dbc, jobID); err == nil && cur != nil {
		status = cur.Status
	}
	s.log.Info("finetune callback received", "job_id", jobID, "success", stored.Success, "duplicate", !created)
	return &CallbackResult{JobID: jobID, Duplicate: !created, Status: status}, nil
}
