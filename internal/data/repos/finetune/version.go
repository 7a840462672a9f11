package finetune

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

type ModelVersionRepo interface {
	Create(dbc dbctx.Context, v *types.ModelVersion) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ModelVersion, error)
	CountByModel(dbc dbctx.Context, modelID uuid.UUID) (int, error)
	ListByModels(dbc dbctx.Context, modelIDs []uuid.UUID) ([]*types.ModelVersion, error)
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []string, updates map[string]interface{}) (bool, error)
}

type modelVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModelVersionRepo(db *gorm.DB, baseLog *logger.Logger) ModelVersionRepo {
	return &modelVersionRepo{
		db:  db,
		log: baseLog.With("repo", "ModelVersionRepo"),
	}
}

func (r *modelVersionRepo) Create(dbc dbctx.Context, v *types.ModelVersion) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(v).Error
}

func (r *modelVersionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ModelVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var v types.ModelVersion
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&v).Error; err != nil {
		return nil, err
	}
	if v.ID == uuid.Nil {
		return nil, nil
	}
	return &v, nil
}

func (r *modelVersionRepo) CountByModel(dbc dbctx.Context, modelID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.ModelVersion{}).
		Where("model_id = ?", modelID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *modelVersionRepo) ListByModels(dbc dbctx.Context, modelIDs []uuid.UUID) ([]*types.ModelVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ModelVersion
	if len(modelIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("model_id IN ?", modelIDs).
		Order("model_id ASC, version_number ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateFieldsIfStatus applies updates only while the version is in one of
// the allowed statuses. It reports whether a row changed.
func (r *modelVersionRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return false, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.ModelVersion{}).
		Where("id = ?", id)
	if len(allowed) > 0 {
		q = q.Where("status IN ?", allowed)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
