package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

type appliedCallback struct {
	jobID uuid.UUID
	sig   CallbackSignal
}

type recordingCompletion struct {
	mu      sync.Mutex
	applied []appliedCallback
}

func (c *recordingCompletion) Apply(_ context.Context, jobID uuid.UUID, sig CallbackSignal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = append(c.applied, appliedCallback{jobID: jobID, sig: sig})
	return nil
}

func (c *recordingCompletion) Complete(context.Context, uuid.UUID, string) error { return nil }
func (c *recordingCompletion) Fail(context.Context, uuid.UUID, string) error     { return nil }

func startOptionsFor(jobID uuid.UUID) interface{} {
	return mock.MatchedBy(func(o temporalsdkclient.StartWorkflowOptions) bool {
		return o.ID == FinetuneWorkflowID(jobID) &&
			o.TaskQueue == "finetune" &&
			o.WorkflowIDReusePolicy == enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE
	})
}

func TestTemporalLauncherStartsWorkflow(t *testing.T) {
	tc := &mocks.Client{}
	jobID := uuid.New()
	tc.On("ExecuteWorkflow", mock.Anything, startOptionsFor(jobID), FinetuneRunWorkflow, FinetuneRunInput{JobID: jobID.String()}).
		Return(&mocks.WorkflowRun{}, nil).Once()

	l := NewTemporalLauncher(logger.Nop(), tc, " finetune ", &recordingCompletion{})
	require.NoError(t, l.Launch(context.Background(), jobID))
	tc.AssertExpectations(t)
}

func TestTemporalLauncherTreatsAlreadyStartedAsLaunched(t *testing.T) {
	tc := &mocks.Client{}
	jobID := uuid.New()
	tc.On("ExecuteWorkflow", mock.Anything, startOptionsFor(jobID), FinetuneRunWorkflow, mock.Anything).
		Return(&mocks.WorkflowRun{}, serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "req-1", "run-1")).Twice()

	l := NewTemporalLauncher(logger.Nop(), tc, "finetune", &recordingCompletion{})
	require.NoError(t, l.Launch(context.Background(), jobID))
	require.NoError(t, l.Launch(context.Background(), jobID))
	tc.AssertExpectations(t)
}

func TestTemporalLauncherReturnsStartErrors(t *testing.T) {
	tc := &mocks.Client{}
	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, FinetuneRunWorkflow, mock.Anything).
		Return(&mocks.WorkflowRun{}, serviceerror.NewUnavailable("frontend down")).Once()

	l := NewTemporalLauncher(logger.Nop(), tc, "finetune", &recordingCompletion{})
	err := l.Launch(context.Background(), uuid.New())
	require.Error(t, err)
	require.Contains(t, err.Error(), "frontend down")
}

func TestTemporalLauncherSignalsRunningWorkflow(t *testing.T) {
	tc := &mocks.Client{}
	jobID := uuid.New()
	sig := CallbackSignal{Success: true, ExecutionHandle: "operations/op-9"}
	tc.On("SignalWorkflow", mock.Anything, FinetuneWorkflowID(jobID), "", FinetuneCallbackSignal, sig).
		Return(nil).Once()

	completion := &recordingCompletion{}
	l := NewTemporalLauncher(logger.Nop(), tc, "finetune", completion)
	require.NoError(t, l.DeliverCallback(context.Background(), jobID, sig))
	tc.AssertExpectations(t)
	require.Empty(t, completion.applied)
}

func TestTemporalLauncherCompletesDirectlyWhenWorkflowGone(t *testing.T) {
	tc := &mocks.Client{}
	jobID := uuid.New()
	sig := CallbackSignal{Success: false, Error: "diverged"}
	tc.On("SignalWorkflow", mock.Anything, FinetuneWorkflowID(jobID), "", FinetuneCallbackSignal, sig).
		Return(serviceerror.NewNotFound("workflow not found")).Once()

	completion := &recordingCompletion{}
	l := NewTemporalLauncher(logger.Nop(), tc, "finetune", completion)
	require.NoError(t, l.DeliverCallback(context.Background(), jobID, sig))
	require.Len(t, completion.applied, 1)
	require.Equal(t, jobID, completion.applied[0].jobID)
	require.Equal(t, sig, completion.applied[0].sig)
}

func TestTemporalLauncherSurfacesSignalErrors(t *testing.T) {
	tc := &mocks.Client{}
	tc.On("SignalWorkflow", mock.Anything, mock.Anything, "", FinetuneCallbackSignal, mock.Anything).
		Return(errors.New("deadline exceeded")).Once()

	completion := &recordingCompletion{}
	l := NewTemporalLauncher(logger.Nop(), tc, "finetune", completion)
	require.Error(t, l.DeliverCallback(context.Background(), uuid.New(), CallbackSignal{Success: true}))
	require.Empty(t, completion.applied)
}
