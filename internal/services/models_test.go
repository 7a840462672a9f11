package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/gcp"
)

func TestModelServiceListsOwnedModelsWithVersions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()
	res := env.admitNew(t, owner, uniqueName("listed"))
	require.NoError(t, env.completion.Complete(ctx, res.JobID, ""))
	_, err := env.admission.Admit(ctx, owner, AdmitRequest{ModelID: &res.ModelID})
	require.NoError(t, err)
	env.admitNew(t, uuid.New(), uniqueName("someone-else"))

	svc := NewModelService(env.log, env.repos, env.runner, nil)
	models, err := svc.ListModels(ctx, owner)
	require.NoError(t, err)
	require.Len(t, models, 1)
	require.Len(t, models[0].Versions, 2)
	require.Equal(t, types.VersionStatusReady, models[0].Versions[0].Status)
	require.Equal(t, types.VersionStatusBuilding, models[0].Versions[1].Status)

	_, err = svc.GetModel(ctx, uuid.New(), res.ModelID)
	require.True(t, apierr.IsKind(err, apierr.KindForbidden), "got %v", err)
}

func TestModelServiceActivateVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()
	first := env.admitNew(t, owner, uniqueName("act"))
	require.NoError(t, env.completion.Complete(ctx, first.JobID, ""))
	second, err := env.admission.Admit(ctx, owner, AdmitRequest{ModelID: &first.ModelID})
	require.NoError(t, err)

	svc := NewModelService(env.log, env.repos, env.runner, nil)

	_, err = svc.ActivateVersion(ctx, owner, first.ModelID, second.VersionID)
	require.True(t, apierr.IsKind(err, apierr.KindConflict), "got %v", err)

	require.NoError(t, env.completion.Complete(ctx, second.JobID, ""))
	m, err := svc.ActivateVersion(ctx, owner, first.ModelID, second.VersionID)
	require.NoError(t, err)
	require.Equal(t, second.VersionID, *m.ActiveVersionID)

	_, err = svc.ActivateVersion(ctx, owner, first.ModelID, uuid.New())
	require.True(t, apierr.IsKind(err, apierr.KindNotFound), "got %v", err)
	_, err = svc.ActivateVersion(ctx, uuid.New(), first.ModelID, first.VersionID)
	require.True(t, apierr.IsKind(err, apierr.KindForbidden), "got %v", err)
}

func TestModelServiceNameAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	taken := uniqueName("taken")
	env.admitNew(t, uuid.New(), taken)
	orphan := uniqueName("orphan")

	store := &fakeModelStore{existing: map[string]bool{gcp.ModelPrefix(orphan): true}}
	svc := NewModelService(env.log, env.repos, env.runner, store)

	got, err := svc.CheckNameAvailability(ctx, taken)
	require.NoError(t, err)
	require.False(t, got.Available)
	require.Equal(t, "taken", got.Reason)

	got, err = svc.CheckNameAvailability(ctx, orphan)
	require.NoError(t, err)
	require.False(t, got.Available)
	require.Equal(t, "artifacts_exist", got.Reason)

	got, err = svc.CheckNameAvailability(ctx, "Not Valid")
	require.NoError(t, err)
	require.False(t, got.Available)

	got, err = svc.CheckNameAvailability(ctx, uniqueName("free"))
	require.NoError(t, err)
	require.True(t, got.Available)
}

func TestJobServiceHidesOtherUsersJobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()
	res := env.admitNew(t, owner, uniqueName("mine"))

	svc := NewJobService(env.log, env.repos)
	job, err := svc.GetJob(ctx, owner, res.JobID)
	require.NoError(t, err)
	require.Equal(t, res.JobID, job.ID)

	_, err = svc.GetJob(ctx, uuid.New(), res.JobID)
	require.True(t, apierr.IsKind(err, apierr.KindNotFound), "got %v", err)

	jobs, err := svc.ListJobs(ctx, owner)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	jobs, err = svc.ListJobs(ctx, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, jobs)
	require.Empty(t, jobs)
}
