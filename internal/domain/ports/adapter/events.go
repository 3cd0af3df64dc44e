package adapter

import (
	"context"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
)

// EventPublisher pushes job change events to the per-tenant notification
// stream. Events for a single job are published in the exact order their
// transitions were persisted; delivery downstream is at-least-once.
type EventPublisher interface {
	Publish(ctx context.Context, event model.JobEvent) error
}

// EventSubscriber delivers a tenant's change feed. The feed is a hint to
// re-synchronize, not the sole source of truth; observers reconcile
// against a periodic full read to bound staleness.
type EventSubscriber interface {
	Subscribe(ctx context.Context, tenantID string) (<-chan model.JobEvent, error)
}
