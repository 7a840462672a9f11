package finetune

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ModelVersion is the output of one fine-tune attempt against a Model.
// VersionNumber is 1-based and gap-free per model.
type ModelVersion struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ModelID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_model_version_number,priority:1" json:"model_id"`
	VersionNumber  int            `gorm:"column:version_number;not null;uniqueIndex:idx_model_version_number,priority:2" json:"version_number"`
	VersionLabel   string         `gorm:"column:version_label;not null" json:"version_label"`
	JobID          uuid.UUID      `gorm:"type:uuid;column:job_id;not null;index" json:"job_id"`
	StoragePath    string         `gorm:"column:storage_path" json:"storage_path"`
	Status         string         `gorm:"column:status;not null;index" json:"status"`
	ConfigSnapshot datatypes.JSON `gorm:"column:config_snapshot" json:"config_snapshot"`
	Metrics        datatypes.JSON `gorm:"column:metrics" json:"metrics,omitempty"`
	Error          string         `gorm:"column:error" json:"error,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	ReadyAt        *time.Time     `gorm:"column:ready_at" json:"ready_at,omitempty"`
	FailedAt       *time.Time     `gorm:"column:failed_at" json:"failed_at,omitempty"`
}

func (ModelVersion) TableName() string { return "model_version" }

func (v *ModelVersion) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
