package realtime

import (
	"time"

	"github.com/google/uuid"
)

type JobEventType string

const (
	JobEventCreated   JobEventType = "job_created"
	JobEventRunning   JobEventType = "job_running"
	JobEventCompleted JobEventType = "job_completed"
	JobEventFailed    JobEventType = "job_failed"
)

// JobEvent is the payload published when a fine-tune job changes state.
type JobEvent struct {
	Type         JobEventType `json:"type"`
	JobID        uuid.UUID    `json:"job_id"`
	UserID       uuid.UUID    `json:"user_id"`
	ModelID      uuid.UUID    `json:"model_id"`
	VersionID    uuid.UUID    `json:"version_id"`
	VersionLabel string       `json:"version_label,omitempty"`
	Status       string       `json:"status"`
	Progress     int          `json:"progress"`
	Error        string       `json:"error,omitempty"`
	At           time.Time    `json:"at"`
}
