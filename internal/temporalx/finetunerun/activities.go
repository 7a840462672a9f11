package finetunerun

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
	"github.com/yungbote/tunebridge-backend/internal/services"
)

type Activities struct {
	Log        *logger.Logger
	Dispatch   services.JobDispatchService
	Completion services.CompletionService
}

func (a *Activities) DispatchJob(ctx context.Context, jobID string) (DispatchResult, error) {
	res := DispatchResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.Dispatch == nil {
		return res, temporal.NewNonRetryableApplicationError("finetunerun: dispatch activity not configured", ErrTypeFatal, nil)
	}
	id, err := parseJobID(res.JobID)
	if err != nil {
		return res, err
	}
	handle, err := a.Dispatch.DispatchJob(ctx, id)
	if err != nil {
		return res, toApplicationError(err)
	}
	res.ExecutionHandle = handle
	return res, nil
}

func (a *Activities) Complete(ctx context.Context, in CompleteInput) error {
	if a == nil || a.Completion == nil {
		return temporal.NewNonRetryableApplicationError("finetunerun: completion activity not configured", ErrTypeFatal, nil)
	}
	id, err := parseJobID(in.JobID)
	if err != nil {
		return err
	}
	if err := a.Completion.Apply(ctx, id, in.Signal); err != nil {
		return toApplicationError(err)
	}
	return nil
}

func (a *Activities) Fail(ctx context.Context, in FailInput) error {
	if a == nil || a.Completion == nil {
		return temporal.NewNonRetryableApplicationError("finetunerun: completion activity not configured", ErrTypeFatal, nil)
	}
	id, err := parseJobID(in.JobID)
	if err != nil {
		return err
	}
	if err := a.Completion.Fail(ctx, id, in.Message); err != nil {
		if apierr.IsKind(err, apierr.KindNotFound) {
			if a.Log != nil {
				a.Log.Warn("fail activity: job vanished", "job_id", id)
			}
			return nil
		}
		return toApplicationError(err)
	}
	return nil
}

func parseJobID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, temporal.NewNonRetryableApplicationError(fmt.Sprintf("finetunerun: invalid job_id %q", raw), ErrTypeFatal, err)
	}
	return id, nil
}

// toApplicationError carries the Fatal/Retryable split across the activity
// boundary so the retry policy can see it.
func toApplicationError(err error) error {
	if apierr.IsFatal(err) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeFatal, err)
	}
	return temporal.NewApplicationError(err.Error(), ErrTypeRetryable, err)
}

// IsFatal reports whether a workflow-side activity error was Fatal.
func IsFatal(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == ErrTypeFatal
}
