package finetune

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

type APIKeyRepo interface {
	Create(dbc dbctx.Context, key *types.APIKey) error
	GetActiveForModel(dbc dbctx.Context, modelID uuid.UUID) (*types.APIKey, error)
	GetByFingerprint(dbc dbctx.Context, fingerprint string) (*types.APIKey, error)
	CountForModel(dbc dbctx.Context, modelID uuid.UUID) (int, error)
	Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error
}

type apiKeyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAPIKeyRepo(db *gorm.DB, baseLog *logger.Logger) APIKeyRepo {
	return &apiKeyRepo{
		db:  db,
		log: baseLog.With("repo", "APIKeyRepo"),
	}
}

func (r *apiKeyRepo) Create(dbc dbctx.Context, key *types.APIKey) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(key).Error
}

func (r *apiKeyRepo) GetActiveForModel(dbc dbctx.Context, modelID uuid.UUID) (*types.APIKey, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var key types.APIKey
	if err := transaction.WithContext(dbc.Ctx).
		Where("model_id = ? AND is_active = ?", modelID, true).
		Limit(1).
		Find(&key).Error; err != nil {
		return nil, err
	}
	if key.ID == uuid.Nil {
		return nil, nil
	}
	return &key, nil
}

func (r *apiKeyRepo) GetByFingerprint(dbc dbctx.Context, fingerprint string) (*types.APIKey, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if fingerprint == "" {
		return nil, nil
	}
	var key types.APIKey
	if err := transaction.WithContext(dbc.Ctx).
		Where("fingerprint = ?", fingerprint).
		Limit(1).
		Find(&key).Error; err != nil {
		return nil, err
	}
	if key.ID == uuid.Nil {
		return nil, nil
	}
	return &key, nil
}

func (r *apiKeyRepo) CountForModel(dbc dbctx.Context, modelID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.APIKey{}).
		Where("model_id = ?", modelID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *apiKeyRepo) Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}
