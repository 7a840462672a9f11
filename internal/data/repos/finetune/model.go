package finetune

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

type ModelRepo interface {
	Create(dbc dbctx.Context, m *types.Model) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Model, error)
	GetByName(dbc dbctx.Context, name string) (*types.Model, error)
	ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*types.Model, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	RecordNewVersion(dbc dbctx.Context, id uuid.UUID, versionID uuid.UUID) error
	ActivateFirstVersion(dbc dbctx.Context, id uuid.UUID, versionID uuid.UUID) (bool, error)
	SetActiveVersion(dbc dbctx.Context, id uuid.UUID, versionID uuid.UUID) error
}

type modelRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModelRepo(db *gorm.DB, baseLog *logger.Logger) ModelRepo {
	return &modelRepo{
		db:  db,
		log: baseLog.With("repo", "ModelRepo"),
	}
}

func (r *modelRepo) Create(dbc dbctx.Context, m *types.Model) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(m).Error
}

func (r *modelRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Model, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var m types.Model
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&m).Error; err != nil {
		return nil, err
	}
	if m.ID == uuid.Nil {
		return nil, nil
	}
	return &m, nil
}

func (r *modelRepo) GetByName(dbc dbctx.Context, name string) (*types.Model, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var m types.Model
	if err := transaction.WithContext(dbc.Ctx).
		Where("name = ?", name).
		Limit(1).
		Find(&m).Error; err != nil {
		return nil, err
	}
	if m.ID == uuid.Nil {
		return nil, nil
	}
	return &m, nil
}

func (r *modelRepo) ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*types.Model, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Model
	if ownerUserID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *modelRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Model{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// RecordNewVersion bumps version_count in place so concurrent writers never
// lose an increment.
func (r *modelRepo) RecordNewVersion(dbc dbctx.Context, id uuid.UUID, versionID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Model{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"version_count":     gorm.Expr("version_count + 1"),
			"latest_version_id": versionID,
			"updated_at":        time.Now().UTC(),
		}).Error
}

// ActivateFirstVersion sets the active version only if the model has never
// had one. It reports whether this call did the activation.
func (r *modelRepo) ActivateFirstVersion(dbc dbctx.Context, id uuid.UUID, versionID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Model{}).
		Where("id = ? AND has_activated_version = ?", id, false).
		Updates(map[string]interface{}{
			"active_version_id":     versionID,
			"has_activated_version": true,
			"updated_at":            time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *modelRepo) SetActiveVersion(dbc dbctx.Context, id uuid.UUID, versionID uuid.UUID) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"active_version_id":     versionID,
		"has_activated_version": true,
	})
}
