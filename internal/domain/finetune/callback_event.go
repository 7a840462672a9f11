package finetune

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CallbackEvent records the first completion outcome reported for a job.
// Redeliveries only bump DeliveryCount.
type CallbackEvent struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	JobID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"job_id"`
	Success         bool       `gorm:"column:success;not null" json:"success"`
	ErrorMessage    string     `gorm:"column:error_message" json:"error_message,omitempty"`
	ExecutionHandle string     `gorm:"column:execution_handle" json:"execution_handle,omitempty"`
	DeliveryCount   int        `gorm:"column:delivery_count;not null;default:1" json:"delivery_count"`
	ReceivedAt      time.Time  `gorm:"column:received_at;not null" json:"received_at"`
	AppliedAt       *time.Time `gorm:"column:applied_at" json:"applied_at,omitempty"`
}

func (CallbackEvent) TableName() string { return "finetune_callback_event" }

func (e *CallbackEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
