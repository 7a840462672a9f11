package domain

import (
	"github.com/yungbote/tunebridge-backend/internal/domain/finetune"
)

const (
	JobStatusQueued    = finetune.JobStatusQueued
	JobStatusRunning   = finetune.JobStatusRunning
	JobStatusCompleted = finetune.JobStatusCompleted
	JobStatusFailed    = finetune.JobStatusFailed

	VersionStatusBuilding = finetune.VersionStatusBuilding
	VersionStatusReady    = finetune.VersionStatusReady
	VersionStatusFailed   = finetune.VersionStatusFailed

	ModelStatusActive   = finetune.ModelStatusActive
	ModelStatusArchived = finetune.ModelStatusArchived

	APIKeyTypeModel = finetune.APIKeyTypeModel
)

var ActiveJobStatuses = finetune.ActiveJobStatuses

type (
	Model           = finetune.Model
	ModelVersion    = finetune.ModelVersion
	FineTuneJob     = finetune.FineTuneJob
	JobConfig       = finetune.JobConfig
	Hyperparameters = finetune.Hyperparameters
	APIKey          = finetune.APIKey
	CallbackEvent   = finetune.CallbackEvent
)

var (
	VersionLabel        = finetune.VersionLabel
	ParseJobConfig      = finetune.ParseJobConfig
	IsTerminalJobStatus = finetune.IsTerminalJobStatus
)
