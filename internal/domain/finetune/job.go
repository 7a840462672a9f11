package finetune

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Hyperparameters for a fine-tune run. Zero values are filled by Normalize.
type Hyperparameters struct {
	Epochs       int     `json:"epochs,omitempty"`
	LearningRate float64 `json:"learningRate,omitempty"`
	BatchSize    int     `json:"batchSize,omitempty"`
	LoraRank     int     `json:"loraRank,omitempty"`
}

func (h Hyperparameters) Normalize() Hyperparameters {
	if h.Epochs <= 0 {
		h.Epochs = 3
	}
	if h.LearningRate <= 0 {
		h.LearningRate = 2e-4
	}
	if h.BatchSize <= 0 {
		h.BatchSize = 4
	}
	if h.LoraRank <= 0 {
		h.LoraRank = 16
	}
	return h
}

// JobConfig is persisted on the job and snapshotted on the version.
type JobConfig struct {
	BaseModel        string          `json:"baseModel"`
	OutputName       string          `json:"outputName"`
	TrainingDataPath string          `json:"trainingDataPath,omitempty"`
	Hyperparameters  Hyperparameters `json:"hyperparameters"`
}

func (c JobConfig) JSON() datatypes.JSON {
	b, _ := json.Marshal(c)
	return datatypes.JSON(b)
}

func ParseJobConfig(raw datatypes.JSON) (JobConfig, error) {
	var c JobConfig
	if len(raw) == 0 {
		return c, nil
	}
	err := json.Unmarshal(raw, &c)
	return c, err
}

// FineTuneJob is one execution unit. At most one job per owner may be queued
// or running at a time.
type FineTuneJob struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	ModelID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"model_id"`
	VersionID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"version_id"`
	Config          datatypes.JSON `gorm:"column:config" json:"config"`
	Status          string         `gorm:"column:status;not null;index" json:"status"`
	Progress        int            `gorm:"column:progress;not null;default:0" json:"progress"`
	ExecutionHandle string         `gorm:"column:execution_handle" json:"execution_handle,omitempty"`
	CallbackToken   string         `gorm:"column:callback_token;not null" json:"-"`
	Attempts        int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error           string         `gorm:"column:error" json:"error,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
	StartedAt       *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	FailedAt        *time.Time     `gorm:"column:failed_at" json:"failed_at,omitempty"`
}

func (FineTuneJob) TableName() string { return "finetune_job" }

func (j *FineTuneJob) BeforeCreate(*gorm.DB) error {
	ensureID(&j.ID)
	return nil
}
