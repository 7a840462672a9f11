package finetune

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

type CallbackEventRepo interface {
	// Record stores ev unless an event already exists for the job. It returns
	// the stored event and whether this call created it.
	Record(dbc dbctx.Context, ev *types.CallbackEvent) (*types.CallbackEvent, bool, error)
	GetByJobID(dbc dbctx.Context, jobID uuid.UUID) (*types.CallbackEvent, error)
	MarkApplied(dbc dbctx.Context, jobID uuid.UUID, at time.Time) error
}

type callbackEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCallbackEventRepo(db *gorm.DB, baseLog *logger.Logger) CallbackEventRepo {
	return &callbackEventRepo{
		db:  db,
		log: baseLog.With("repo", "CallbackEventRepo"),
	}
}

func (r *callbackEventRepo) Record(dbc dbctx.Context, ev *types.CallbackEvent) (*types.CallbackEvent, bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	if ev.DeliveryCount == 0 {
		ev.DeliveryCount = 1
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "job_id"}}, DoNothing: true}).
		Create(ev)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return ev, true, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.CallbackEvent{}).
		Where("job_id = ?", ev.JobID).
		Update("delivery_count", gorm.Expr("delivery_count + 1")).Error; err != nil {
		return nil, false, err
	}
	existing, err := r.GetByJobID(dbc, ev.JobID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *callbackEventRepo) GetByJobID(dbc dbctx.Context, jobID uuid.UUID) (*types.CallbackEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ev types.CallbackEvent
	if err := transaction.WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Limit(1).
		Find(&ev).Error; err != nil {
		return nil, err
	}
	if ev.ID == uuid.Nil {
		return nil, nil
	}
	return &ev, nil
}

func (r *callbackEventRepo) MarkApplied(dbc dbctx.Context, jobID uuid.UUID, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.CallbackEvent{}).
		Where("job_id = ? AND applied_at IS NULL", jobID).
		Update("applied_at", at).Error
}
