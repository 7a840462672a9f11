package bus

import (
	"context"

	"github.com/yungbote/tunebridge-backend/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, ev realtime.JobEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev realtime.JobEvent)) error
	Close() error
}

type noopBus struct{}

// NewNoopBus drops every event. Used when no broker is configured.
func NewNoopBus() Bus { return noopBus{} }

func (noopBus) Publish(context.Context, realtime.JobEvent) error { return nil }

func (noopBus) StartForwarder(context.Context, func(realtime.JobEvent)) error { return nil }

func (noopBus) Close() error { return nil }
