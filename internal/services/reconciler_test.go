package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/tunebridge-backend/internal/domain"
)

func backdate(t *testing.T, env *testEnv, jobID uuid.UUID, attempts int) {
	t.Helper()
	require.NoError(t, env.repos.Jobs.UpdateFields(ctxDB(), jobID, map[string]interface{}{
		"updated_at": time.Now().UTC().Add(-10 * time.Minute),
		"attempts":   attempts,
	}))
}

func TestReconcilerDispatchesStaleQueuedJobs(t *testing.T) {
	env := newTestEnv(t)
	res := env.admitNew(t, uuid.New(), uniqueName("stale"))
	backdate(t, env, res.JobID, 1)

	r := NewReconciler(env.log, env.repos, env.dispatch, env.completion, ReconcilerConfig{})
	out, err := r.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, out.Dispatched)

	job, err := env.repos.Jobs.GetByID(ctxDB(), res.JobID)
	require.NoError(t, err)
	require.Equal(t, types.JobStatusRunning, job.Status)
	require.Equal(t, 2, job.Attempts)

	// Running jobs are not picked up again.
	out, err = r.Sweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, out.Scanned)
}

func TestReconcilerSkipsFreshJobs(t *testing.T) {
	env := newTestEnv(t)
	env.admitNew(t, uuid.New(), uniqueName("fresh"))

	r := NewReconciler(env.log, env.repos, env.dispatch, env.completion, ReconcilerConfig{})
	out, err := r.Sweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, out.Scanned)
	require.Zero(t, env.exec.callCount())
}

func TestReconcilerFailsExhaustedJobs(t *testing.T) {
	env := newTestEnv(t)
	res := env.admitNew(t, uuid.New(), uniqueName("tired"))
	backdate(t, env, res.JobID, 5)

	r := NewReconciler(env.log, env.repos, env.dispatch, env.completion, ReconcilerConfig{MaxAttempts: 5})
	out, err := r.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, out.Failed)
	require.Zero(t, env.exec.callCount())

	job, err := env.repos.Jobs.GetByID(ctxDB(), res.JobID)
	require.NoError(t, err)
	require.Equal(t, types.JobStatusFailed, job.Status)
	require.Contains(t, job.Error, "5 attempts")
	version, err := env.repos.Versions.GetByID(ctxDB(), res.VersionID)
	require.NoError(t, err)
	require.Equal(t, types.VersionStatusFailed, version.Status)
}

func TestReconcilerDefersRetryableFailures(t *testing.T) {
	env := newTestEnv(t)
	env.exec.err = errors.New("503 backend unavailable")
	res := env.admitNew(t, uuid.New(), uniqueName("defer"))
	backdate(t, env, res.JobID, 0)

	r := NewReconciler(env.log, env.repos, env.dispatch, env.completion, ReconcilerConfig{})
	out, err := r.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, out.Deferred)

	job, err := env.repos.Jobs.GetByID(ctxDB(), res.JobID)
	require.NoError(t, err)
	require.Equal(t, types.JobStatusQueued, job.Status)
	require.Equal(t, 1, job.Attempts)
}

func TestReconcilerStartRejectsBadSchedule(t *testing.T) {
	env := newTestEnv(t)
	r := NewReconciler(env.log, env.repos, env.dispatch, env.completion, ReconcilerConfig{Schedule: "not a schedule"})
	require.Error(t, r.Start(context.Background()))
}

type unavailableLauncher struct {
	recordingLauncher
	err error
}

func (l *unavailableLauncher) Launch(ctx context.Context, jobID uuid.UUID) error {
	if l.err != nil {
		return l.err
	}
	return l.recordingLauncher.Launch(ctx, jobID)
}

func TestLaunchReconcilerUnblocksJobWhoseLaunchFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	name := uniqueName("orphan")
	res := env.admitNew(t, userID, name)
	backdate(t, env, res.JobID, 0)

	launcher := &unavailableLauncher{err: errors.New("temporal frontend unavailable")}
	r := NewLaunchReconciler(env.log, env.repos, launcher, env.completion, ReconcilerConfig{MaxAttempts: 2})

	out, err := r.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, out.Deferred)
	job, err := env.repos.Jobs.GetByID(ctxDB(), res.JobID)
	require.NoError(t, err)
	require.Equal(t, types.JobStatusQueued, job.Status)
	require.Equal(t, 1, job.Attempts)
	require.Contains(t, job.Error, "unavailable")

	backdate(t, env, res.JobID, 2)
	out, err = r.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, out.Failed)

	job, err = env.repos.Jobs.GetByID(ctxDB(), res.JobID)
	require.NoError(t, err)
	require.Equal(t, types.JobStatusFailed, job.Status)
	version, err := env.repos.Versions.GetByID(ctxDB(), res.VersionID)
	require.NoError(t, err)
	require.Equal(t, types.VersionStatusFailed, version.Status)

	// The user is no longer locked out of admission.
	next, err := env.admission.Admit(ctx, userID, AdmitRequest{ModelName: name})
	require.NoError(t, err)
	require.Equal(t, 2, next.VersionNumber)
}

func TestLaunchReconcilerRelaunchesStaleJob(t *testing.T) {
	env := newTestEnv(t)
	res := env.admitNew(t, uuid.New(), uniqueName("relaunch"))
	backdate(t, env, res.JobID, 0)

	launcher := &unavailableLauncher{}
	r := NewLaunchReconciler(env.log, env.repos, launcher, env.completion, ReconcilerConfig{})
	out, err := r.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, out.Dispatched)
	require.Equal(t, 1, launcher.launchCount())
	require.Zero(t, env.exec.callCount())

	// The run owns the job now; it is not stale until the window passes again.
	out, err = r.Sweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, out.Scanned)
}
