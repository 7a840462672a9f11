package finetune

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

type FineTuneJobRepo interface {
	Create(dbc dbctx.Context, job *types.FineTuneJob) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FineTuneJob, error)
	GetActiveForOwner(dbc dbctx.Context, ownerUserID uuid.UUID) (*types.FineTuneJob, error)
	ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID, limit int) ([]*types.FineTuneJob, error)
	ListStaleQueued(dbc dbctx.Context, untouchedSince time.Time, limit int) ([]*types.FineTuneJob, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []string, updates map[string]interface{}) (bool, error)
}

type fineTuneJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFineTuneJobRepo(db *gorm.DB, baseLog *logger.Logger) FineTuneJobRepo {
	return &fineTuneJobRepo{
		db:  db,
		log: baseLog.With("repo", "FineTuneJobRepo"),
	}
}

func (r *fineTuneJobRepo) Create(dbc dbctx.Context, job *types.FineTuneJob) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(job).Error
}

func (r *fineTuneJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FineTuneJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.FineTuneJob
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&job).Error; err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

// GetActiveForOwner returns the owner's queued or running job, if any.
func (r *fineTuneJobRepo) GetActiveForOwner(dbc dbctx.Context, ownerUserID uuid.UUID) (*types.FineTuneJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var job types.FineTuneJob
	if err := transaction.WithContext(dbc.Ctx).
		Where("owner_user_id = ? AND status IN ?", ownerUserID, types.ActiveJobStatuses).
		Order("created_at ASC").
		Limit(1).
		Find(&job).Error; err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *fineTuneJobRepo) ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID, limit int) ([]*types.FineTuneJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.FineTuneJob
	if ownerUserID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListStaleQueued returns queued jobs that never received an execution handle.
func (r *fineTuneJobRepo) ListStaleQueued(dbc dbctx.Context, untouchedSince time.Time, limit int) ([]*types.FineTuneJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.FineTuneJob
	if err := transaction.WithContext(dbc.Ctx).
		Where("status = ? AND (execution_handle IS NULL OR execution_handle = '') AND updated_at < ?", types.JobStatusQueued, untouchedSince).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fineTuneJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	_, err := r.UpdateFieldsIfStatus(dbc, id, nil, updates)
	return err
}

// UpdateFieldsIfStatus applies updates only while the job is in one of the
// allowed statuses (any status when allowed is empty).
func (r *fineTuneJobRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []string, updates map[string]interface{}) (bool, error) {
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
		Model(&types.FineTuneJob{}).
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
