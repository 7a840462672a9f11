package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/tunebridge-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Model{},
		&types.ModelVersion{},
		&types.FineTuneJob{},
		&types.APIKey{},
		&types.CallbackEvent{},
	)
}

// EnsureFinetuneIndexes adds the partial unique indexes gorm tags cannot
// express. The SQL is valid on both Postgres and sqlite.
func EnsureFinetuneIndexes(db *gorm.DB) error {
	// One in-flight job per user.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_finetune_job_owner_active
		ON finetune_job(owner_user_id)
		WHERE status IN ('queued', 'running');
	`).Error; err != nil {
		return fmt.Errorf("create idx_finetune_job_owner_active: %w", err)
	}
	// One active key per model.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_api_key_model_active
		ON api_key(model_id)
		WHERE is_active = TRUE;
	`).Error; err != nil {
		return fmt.Errorf("create idx_api_key_model_active: %w", err)
	}
	// Reconciler scan.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_finetune_job_status_created
		ON finetune_job(status, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_finetune_job_status_created: %w", err)
	}
	return nil
}
