package finetunerun

import "github.com/yungbote/tunebridge-backend/internal/services"

const (
	WorkflowName     = services.FinetuneRunWorkflow
	SignalCallback   = services.FinetuneCallbackSignal
	ActivityDispatch = "finetune_dispatch"
	ActivityComplete = "finetune_complete"
	ActivityFail     = "finetune_fail"

	// ErrTypeFatal marks activity errors that must not be retried.
	ErrTypeFatal     = "Fatal"
	ErrTypeRetryable = "Retryable"
)

type DispatchResult struct {
	JobID           string `json:"job_id"`
	ExecutionHandle string `json:"execution_handle"`
}

type CompleteInput struct {
	JobID  string                  `json:"job_id"`
	Signal services.CallbackSignal `json:"signal"`
}

type FailInput struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}
