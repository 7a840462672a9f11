package services

import (
	"context"
	"time"

	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
	"github.com/yungbote/tunebridge-backend/internal/realtime"
	"github.com/yungbote/tunebridge-backend/internal/realtime/bus"
)

// JobNotifier publishes job lifecycle events. Delivery is best effort.
type JobNotifier interface {
	JobCreated(ctx context.Context, job *types.FineTuneJob, versionLabel string)
	JobRunning(ctx context.Context, job *types.FineTuneJob)
	JobCompleted(ctx context.Context, job *types.FineTuneJob)
	JobFailed(ctx context.Context, job *types.FineTuneJob, errorMessage string)
}

type jobNotifier struct {
	log *logger.Logger
	bus bus.Bus
}

func NewJobNotifier(log *logger.Logger, b bus.Bus) JobNotifier {
	if b == nil {
		b = bus.NewNoopBus()
	}
	return &jobNotifier{log: log.With("service", "JobNotifier"), bus: b}
}

func (n *jobNotifier) JobCreated(ctx context.Context, job *types.FineTuneJob, versionLabel string) {
	ev := jobEvent(realtime.JobEventCreated, job)
	ev.VersionLabel = versionLabel
	n.publish(ctx, ev)
}

func (n *jobNotifier) JobRunning(ctx context.Context, job *types.FineTuneJob) {
	n.publish(ctx, jobEvent(realtime.JobEventRunning, job))
}

func (n *jobNotifier) JobCompleted(ctx context.Context, job *types.FineTuneJob) {
	n.publish(ctx, jobEvent(realtime.JobEventCompleted, job))
}

func (n *jobNotifier) JobFailed(ctx context.Context, job *types.FineTuneJob, errorMessage string) {
	ev := jobEvent(realtime.JobEventFailed, job)
	ev.Error = errorMessage
	n.publish(ctx, ev)
}

func (n *jobNotifier) publish(ctx context.Context, ev realtime.JobEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := n.bus.Publish(ctx, ev); err != nil {
		n.log.Warn("job event publish failed", "type", ev.Type, "job_id", ev.JobID, "error", err)
	}
}

func jobEvent(typ realtime.JobEventType, job *types.FineTuneJob) realtime.JobEvent {
	ev := realtime.JobEvent{Type: typ, At: time.Now().UTC()}
	if job != nil {
		ev.JobID = job.ID
		ev.UserID = job.OwnerUserID
		ev.ModelID = job.ModelID
		ev.VersionID = job.VersionID
		ev.Status = job.Status
		ev.Progress = job.Progress
	}
	return ev
}
