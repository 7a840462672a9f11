package finetunerun

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/tunebridge-backend/internal/services"
)

const dispatchMaxAttempts = 5

// Workflow dispatches the trainer, waits for its callback and applies the
// outcome. A dispatch that ends Fatal or exhausts its retries fails the job.
func Workflow(ctx workflow.Context, in services.FinetuneRunInput) error {
	jobID := strings.TrimSpace(in.JobID)
	if jobID == "" {
		return temporal.NewNonRetryableApplicationError("finetunerun: missing job_id", ErrTypeFatal, nil)
	}
	log := workflow.GetLogger(ctx)

	dispatchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        dispatchMaxAttempts,
			NonRetryableErrorTypes: []string{ErrTypeFatal},
		},
	})
	settleCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			NonRetryableErrorTypes: []string{ErrTypeFatal},
		},
	})

	var dispatched DispatchResult
	if err := workflow.ExecuteActivity(dispatchCtx, ActivityDispatch, jobID).Get(ctx, &dispatched); err != nil {
		msg := failureMessage(err)
		log.Warn("finetune dispatch gave up", "job_id", jobID, "fatal", IsFatal(err), "error", msg)
		return workflow.ExecuteActivity(settleCtx, ActivityFail, FailInput{JobID: jobID, Message: msg}).Get(ctx, nil)
	}

	var sig services.CallbackSignal
	workflow.GetSignalChannel(ctx, SignalCallback).Receive(ctx, &sig)
	if sig.ExecutionHandle == "" {
		sig.ExecutionHandle = dispatched.ExecutionHandle
	}
	return workflow.ExecuteActivity(settleCtx, ActivityComplete, CompleteInput{JobID: jobID, Signal: sig}).Get(ctx, nil)
}

func failureMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return "dispatch failed: " + appErr.Error()
	}
	return fmt.Sprintf("dispatch failed: %v", err)
}
