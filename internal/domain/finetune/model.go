package finetune

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model is a named, user-owned fine-tuning target. Name is globally unique
// and never reassigned.
type Model struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Name                string     `gorm:"column:name;not null;uniqueIndex:idx_model_name" json:"name"`
	BaseModel           string     `gorm:"column:base_model;not null" json:"base_model"`
	Status              string     `gorm:"column:status;not null;default:active" json:"status"`
	ActiveVersionID     *uuid.UUID `gorm:"type:uuid;column:active_version_id" json:"active_version_id,omitempty"`
	LatestVersionID     *uuid.UUID `gorm:"type:uuid;column:latest_version_id" json:"latest_version_id,omitempty"`
	VersionCount        int        `gorm:"column:version_count;not null;default:0" json:"version_count"`
	HasActivatedVersion bool       `gorm:"column:has_activated_version;not null;default:false" json:"has_activated_version"`
	InferenceEndpoint   string     `gorm:"column:inference_endpoint" json:"inference_endpoint,omitempty"`
	APIKeyID            *uuid.UUID `gorm:"type:uuid;column:api_key_id" json:"api_key_id,omitempty"`
	CreatedAt           time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"not null" json:"updated_at"`

	Versions []*ModelVersion `gorm:"-" json:"versions,omitempty"`
}

func (Model) TableName() string { return "model" }

func (m *Model) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
