package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/tunebridge-backend/internal/data/repos/finetune"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

type ModelRepo = finetune.ModelRepo
type ModelVersionRepo = finetune.ModelVersionRepo
type FineTuneJobRepo = finetune.FineTuneJobRepo
type APIKeyRepo = finetune.APIKeyRepo
type CallbackEventRepo = finetune.CallbackEventRepo

func NewModelRepo(db *gorm.DB, baseLog *logger.Logger) ModelRepo {
	return finetune.NewModelRepo(db, baseLog)
}

func NewModelVersionRepo(db *gorm.DB, baseLog *logger.Logger) ModelVersionRepo {
	return finetune.NewModelVersionRepo(db, baseLog)
}

func NewFineTuneJobRepo(db *gorm.DB, baseLog *logger.Logger) FineTuneJobRepo {
	return finetune.NewFineTuneJobRepo(db, baseLog)
}

func NewAPIKeyRepo(db *gorm.DB, baseLog *logger.Logger) APIKeyRepo {
	return finetune.NewAPIKeyRepo(db, baseLog)
}

func NewCallbackEventRepo(db *gorm.DB, baseLog *logger.Logger) CallbackEventRepo {
	return finetune.NewCallbackEventRepo(db, baseLog)
}

// Set groups every repo the services need.
type Set struct {
	Models         ModelRepo
	Versions       ModelVersionRepo
	Jobs           FineTuneJobRepo
	APIKeys        APIKeyRepo
	CallbackEvents CallbackEventRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Models:         NewModelRepo(db, baseLog),
		Versions:       NewModelVersionRepo(db, baseLog),
		Jobs:           NewFineTuneJobRepo(db, baseLog),
		APIKeys:        NewAPIKeyRepo(db, baseLog),
		CallbackEvents: NewCallbackEventRepo(db, baseLog),
	}
}
