package gcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

func newTestExecutor(t *testing.T, h http.HandlerFunc) Executor {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	exec, err := NewRunJobsExecutor(context.Background(), logger.Nop(),
		RunJobsConfig{ProjectID: "proj", Region: "us-central1"},
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return exec
}

func TestRunJobSendsArgsAndReturnsOperation(t *testing.T) {
	var body struct {
		Overrides struct {
			ContainerOverrides []struct {
				Args []string `json:"args"`
			} `json:"containerOverrides"`
		} `json:"overrides"`
	}
	exec := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/projects/proj/locations/us-central1/jobs/trainer:run", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"projects/proj/locations/us-central1/operations/op-1"}`))
	})

	handle, err := exec.RunJob(context.Background(), "trainer", []string{"--job-id=1", "--version=v1"})
	require.NoError(t, err)
	require.Equal(t, "projects/proj/locations/us-central1/operations/op-1", handle)
	require.Len(t, body.Overrides.ContainerOverrides, 1)
	require.Equal(t, []string{"--job-id=1", "--version=v1"}, body.Overrides.ContainerOverrides[0].Args)
}

func TestRunJobPermissionDeniedIsFatal(t *testing.T) {
	exec := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"caller lacks run.jobs.run","status":"PERMISSION_DENIED"}}`))
	})
	_, err := exec.RunJob(context.Background(), "trainer", nil)
	require.True(t, apierr.IsFatal(err), "got %v", err)
}

func TestRunJobServerErrorIsRetryable(t *testing.T) {
	exec := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := exec.RunJob(context.Background(), "trainer", nil)
	require.True(t, apierr.IsRetryable(err), "got %v", err)
}

func TestRunJobMissingNameIsFatal(t *testing.T) {
	exec := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request")
	})
	_, err := exec.RunJob(context.Background(), " ", nil)
	require.True(t, apierr.IsFatal(err))
}

func TestClassifyExecutorError(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"unauthenticated http", &googleapi.Error{Code: 401}, true},
		{"quota 429", &googleapi.Error{Code: 429, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded", Message: "Quota exceeded for quota metric"}}}, true},
		{"plain 429", &googleapi.Error{Code: 429, Message: "slow down"}, false},
		{"grpc permission", status.Error(codes.PermissionDenied, "nope"), true},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "cpu"), true},
		{"grpc unavailable", status.Error(codes.Unavailable, "later"), false},
		{"quota text", errors.New("CPU quota exceeded in region"), true},
		{"network", errors.New("connection reset by peer"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyExecutorError(tc.err)
			if tc.fatal {
				require.True(t, apierr.IsFatal(got))
			} else {
				require.True(t, apierr.IsRetryable(got))
			}
			require.ErrorIs(t, got, tc.err)
		})
	}
	require.Nil(t, ClassifyExecutorError(nil))
}
