package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	run "google.golang.org/api/run/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

// Executor submits one batch execution and returns its handle.
type Executor interface {
	RunJob(ctx context.Context, jobName string, args []string) (string, error)
}

type RunJobsConfig struct {
	ProjectID string
	Region    string
}

type runJobsExecutor struct {
	log *logger.Logger
	svc *run.Service
	cfg RunJobsConfig
}

func NewRunJobsExecutor(ctx context.Context, log *logger.Logger, cfg RunJobsConfig, opts ...option.ClientOption) (Executor, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" || strings.TrimSpace(cfg.Region) == "" {
		return nil, fmt.Errorf("missing env var GCP_PROJECT_ID or GCP_REGION")
	}
	if len(opts) == 0 {
		opts = ClientOptionsFromEnv()
	}
	svc, err := run.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create cloud run client: %w", err)
	}
	return &runJobsExecutor{
		log: log.With("service", "RunJobsExecutor"),
		svc: svc,
		cfg: cfg,
	}, nil
}

// jobResourceName expands a short job name to its full resource name.
func (e *runJobsExecutor) jobResourceName(jobName string) string {
	jobName = strings.TrimSpace(jobName)
	if strings.HasPrefix(jobName, "projects/") {
		return jobName
	}
	return fmt.Sprintf("projects/%s/locations/%s/jobs/%s", e.cfg.ProjectID, e.cfg.Region, jobName)
}

// RunJob starts an execution with args overriding the container arguments.
// The long-running operation name is the handle.
func (e *runJobsExecutor) RunJob(ctx context.Context, jobName string, args []string) (string, error) {
	if strings.TrimSpace(jobName) == "" {
		return "", apierr.Fatal(errors.New("missing env var FINETUNE_RUN_JOB_NAME"))
	}
	name := e.jobResourceName(jobName)
	req := &run.GoogleCloudRunV2RunJobRequest{
		Overrides: &run.GoogleCloudRunV2Overrides{
			ContainerOverrides: []*run.GoogleCloudRunV2ContainerOverride{{Args: args}},
		},
	}
	op, err := e.svc.Projects.Locations.Jobs.Run(name, req).Context(ctx).Do()
	if err != nil {
		return "", ClassifyExecutorError(err)
	}
	if op == nil || op.Name == "" {
		return "", apierr.Retryable(fmt.Errorf("cloud run returned no operation for %s", name))
	}
	e.log.Info("Cloud Run job execution started", "job", name, "operation", op.Name)
	return op.Name, nil
}

// ClassifyExecutorError maps permission and quota failures to Fatal and
// everything else to Retryable.
func ClassifyExecutorError(err error) error {
	if err == nil {
		return nil
	}
	var ae *apierr.Error
	if errors.As(err, &ae) && (ae.Kind == apierr.KindFatal || ae.Kind == apierr.KindRetryable) {
		return err
	}
	if isPermissionOrQuota(err) {
		return apierr.Fatal(err)
	}
	return apierr.Retryable(err)
}

func isPermissionOrQuota(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return true
		case http.StatusTooManyRequests:
			if mentionsQuota(gerr.Message) {
				return true
			}
			for _, item := range gerr.Errors {
				if mentionsQuota(item.Reason) || mentionsQuota(item.Message) {
					return true
				}
			}
		}
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.PermissionDenied, codes.Unauthenticated, codes.ResourceExhausted:
			return true
		}
	}
	return mentionsQuota(err.Error())
}

func mentionsQuota(s string) bool {
	return strings.Contains(strings.ToLower(s), "quota")
}
