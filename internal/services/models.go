package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/tunebridge-backend/internal/data/repos"
	"github.com/yungbote/tunebridge-backend/internal/data/txn"
	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/gcp"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

// NameAvailability explains why a model name can or cannot be claimed.
type NameAvailability struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type ModelService interface {
	ListModels(ctx context.Context, userID uuid.UUID) ([]*types.Model, error)
	GetModel(ctx context.Context, userID, modelID uuid.UUID) (*types.Model, error)
	ActivateVersion(ctx context.Context, userID, modelID, versionID uuid.UUID) (*types.Model, error)
	CheckNameAvailability(ctx context.Context, name string) (*NameAvailability, error)
}

type modelService struct {
	log    *logger.Logger
	repos  repos.Set
	runner txn.Runner
	store  gcp.ModelStore
}

// NewModelService takes an optional store; without one, availability only
// consults the database.
func NewModelService(log *logger.Logger, set repos.Set, runner txn.Runner, store gcp.ModelStore) ModelService {
	return &modelService{
		log:    log.With("service", "ModelService"),
		repos:  set,
		runner: runner,
		store:  store,
	}
}

func (s *modelService) ListModels(ctx context.Context, userID uuid.UUID) ([]*types.Model, error) {
	dbc := dbctx.Context{Ctx: ctx}
	models, err := s.repos.Models.ListByOwner(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	if err := s.attachVersions(dbc, models); err != nil {
		return nil, err
	}
	return models, nil
}

func (s *modelService) GetModel(ctx context.Context, userID, modelID uuid.UUID) (*types.Model, error) {
	dbc := dbctx.Context{Ctx: ctx}
	m, err := s.ownedModel(dbc, userID, modelID)
	if err != nil {
		return nil, err
	}
	if err := s.attachVersions(dbc, []*types.Model{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *modelService) ownedModel(dbc dbctx.Context, userID, modelID uuid.UUID) (*types.Model, error) {
	m, err := s.repos.Models.GetByID(dbc, modelID)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if m == nil {
		return nil, apierr.NotFound("model_not_found", "model %s not found", modelID)
	}
	if m.OwnerUserID != userID {
		return nil, apierr.Forbidden("model belongs to another user")
	}
	return m, nil
}

func (s *modelService) attachVersions(dbc dbctx.Context, models []*types.Model) error {
	if len(models) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(models))
	byID := make(map[uuid.UUID]*types.Model, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
		byID[m.ID] = m
		m.Versions = []*types.ModelVersion{}
	}
	versions, err := s.repos.Versions.ListByModels(dbc, ids)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}
	for _, v := range versions {
		if m := byID[v.ModelID]; m != nil {
			m.Versions = append(m.Versions, v)
		}
	}
	return nil
}

func (s *modelService) ActivateVersion(ctx context.Context, userID, modelID, versionID uuid.UUID) (*types.Model, error) {
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.ownedModel(dbc, userID, modelID); err != nil {
			return err
		}
		v, err := s.repos.Versions.GetByID(dbc, versionID)
		if err != nil {
			return fmt.Errorf("load version: %w", err)
		}
		if v == nil || v.ModelID != modelID {
			return apierr.NotFound("version_not_found", "version %s not found on model %s", versionID, modelID)
		}
		if v.Status != types.VersionStatusReady {
			return apierr.Conflict("version_not_ready", "version %s is %s", v.VersionLabel, v.Status)
		}
		return s.repos.Models.SetActiveVersion(dbc, modelID, versionID)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("model version activated", "model_id", modelID, "version_id", versionID)
	return s.GetModel(ctx, userID, modelID)
}

func (s *modelService) CheckNameAvailability(ctx context.Context, name string) (*NameAvailability, error) {
	name = strings.TrimSpace(name)
	out := &NameAvailability{Name: name}
	if !modelNameRE.MatchString(name) {
		out.Reason = "invalid_name"
		return out, nil
	}
	m, err := s.repos.Models.GetByName(dbctx.Context{Ctx: ctx}, name)
	if err != nil {
		return nil, fmt.Errorf("load model by name: %w", err)
	}
	if m != nil {
		out.Reason = "taken"
		return out, nil
	}
	if s.store != nil {
		exists, err := s.store.PrefixExists(ctx, gcp.ModelPrefix(name))
		if err != nil {
			return nil, apierr.Retryable(fmt.Errorf("check bucket for %q: %w", name, err))
		}
		if exists {
			out.Reason = "artifacts_exist"
			return out, nil
		}
	}
	out.Available = true
	return out, nil
}
