package finetune

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APIKey grants inference access to one model. SecretHash verifies a
// presented secret; EncryptedSecret lets the owner view it again.
type APIKey struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	KeyID           string     `gorm:"column:key_id;not null;uniqueIndex" json:"key_id"`
	Fingerprint     string     `gorm:"column:fingerprint;not null;uniqueIndex" json:"-"`
	SecretHash      string     `gorm:"column:secret_hash;not null" json:"-"`
	EncryptedSecret string     `gorm:"column:encrypted_secret;not null" json:"-"`
	OwnerUserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	ModelID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"model_id"`
	ModelName       string     `gorm:"column:model_name;not null" json:"model_name"`
	Type            string     `gorm:"column:type;not null" json:"type"`
	IsActive        bool       `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	PinnedVersionID *uuid.UUID `gorm:"type:uuid;column:pinned_version_id" json:"pinned_version_id,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
	LastUsedAt      *time.Time `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
}

func (APIKey) TableName() string { return "api_key" }

func (k *APIKey) BeforeCreate(*gorm.DB) error {
	ensureID(&k.ID)
	return nil
}
