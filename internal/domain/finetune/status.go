package finetune

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"

	VersionStatusBuilding = "building"
	VersionStatusReady    = "ready"
	VersionStatusFailed   = "failed"

	ModelStatusActive   = "active"
	ModelStatusArchived = "archived"

	APIKeyTypeModel = "model"
)

// ActiveJobStatuses are the statuses that count against a user's single
// in-flight job.
var ActiveJobStatuses = []string{JobStatusQueued, JobStatusRunning}

func IsTerminalJobStatus(s string) bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func VersionLabel(n int) string { return fmt.Sprintf("v%d", n) }

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
