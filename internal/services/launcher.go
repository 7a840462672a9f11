package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/ctxutil"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

// Workflow and signal names are literals here so the workflow package can
// depend on services without a cycle.
const (
	FinetuneRunWorkflow    = "finetune_run"
	FinetuneCallbackSignal = "finetune_callback"
)

func FinetuneWorkflowID(jobID uuid.UUID) string { return "finetune-" + jobID.String() }

// FinetuneRunInput starts one finetune_run workflow.
type FinetuneRunInput struct {
	JobID string `json:"job_id"`
}

// Launcher starts the durable run for an admitted job and delivers its
// completion callback.
type Launcher interface {
	Launch(ctx context.Context, jobID uuid.UUID) error
	DeliverCallback(ctx context.Context, jobID uuid.UUID, sig CallbackSignal) error
}

type inlineLauncher struct {
	log        *logger.Logger
	dispatch   JobDispatchService
	completion CompletionService
	wg         sync.WaitGroup
}

// InlineLauncher dispatches in-process. Retryable dispatch errors leave the
// job queued for the reconciler.
type InlineLauncher interface {
	Launcher
	// Wait blocks until in-flight launches finish.
	Wait()
}

func NewInlineLauncher(log *logger.Logger, dispatch JobDispatchService, completion CompletionService) InlineLauncher {
	return &inlineLauncher{
		log:        log.With("service", "InlineLauncher"),
		dispatch:   dispatch,
		completion: completion,
	}
}

func (l *inlineLauncher) Launch(ctx context.Context, jobID uuid.UUID) error {
	ctx = ctxutil.Detach(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(ctx, jobID)
	}()
	return nil
}

func (l *inlineLauncher) run(ctx context.Context, jobID uuid.UUID) {
	handle, err := l.dispatch.DispatchJob(ctx, jobID)
	if err == nil {
		l.log.Debug("inline dispatch done", "job_id", jobID, "handle", handle)
		return
	}
	if apierr.IsFatal(err) {
		if ferr := l.completion.Fail(ctx, jobID, err.Error()); ferr != nil {
			l.log.Error("failing job after fatal dispatch error failed", "job_id", jobID, "error", ferr)
		}
		return
	}
	l.log.Warn("dispatch will be retried by reconciler", "job_id", jobID, "error", err)
}

func (l *inlineLauncher) DeliverCallback(ctx context.Context, jobID uuid.UUID, sig CallbackSignal) error {
	return l.completion.Apply(ctx, jobID, sig)
}

func (l *inlineLauncher) Wait() { l.wg.Wait() }

type temporalLauncher struct {
	log        *logger.Logger
	tc         temporalsdkclient.Client
	taskQueue  string
	completion CompletionService
}

// NewTemporalLauncher runs each job as a finetune_run workflow. Completion
// falls back to the direct path when the workflow no longer exists.
func NewTemporalLauncher(log *logger.Logger, tc temporalsdkclient.Client, taskQueue string, completion CompletionService) Launcher {
	return &temporalLauncher{
		log:        log.With("service", "TemporalLauncher"),
		tc:         tc,
		taskQueue:  strings.TrimSpace(taskQueue),
		completion: completion,
	}
}

func (l *temporalLauncher) Launch(ctx context.Context, jobID uuid.UUID) error {
	if l.tc == nil {
		return fmt.Errorf("temporal not configured (TEMPORAL_ADDRESS)")
	}
	_, err := l.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                    FinetuneWorkflowID(jobID),
		TaskQueue:             l.taskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, FinetuneRunWorkflow, FinetuneRunInput{JobID: jobID.String()})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return nil
		}
		return fmt.Errorf("start finetune workflow: %w", err)
	}
	l.log.Info("finetune workflow started", "job_id", jobID)
	return nil
}

func (l *temporalLauncher) DeliverCallback(ctx context.Context, jobID uuid.UUID, sig CallbackSignal) error {
	if l.tc == nil {
		return l.completion.Apply(ctx, jobID, sig)
	}
	err := l.tc.SignalWorkflow(ctx, FinetuneWorkflowID(jobID), "", FinetuneCallbackSignal, sig)
	if err == nil {
		return nil
	}
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		l.log.Warn("finetune workflow gone; completing directly", "job_id", jobID)
		return l.completion.Apply(ctx, jobID, sig)
	}
	return fmt.Errorf("signal finetune workflow: %w", err)
}
