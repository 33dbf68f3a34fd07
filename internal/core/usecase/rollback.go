package usecase

import (
	"context"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RollbackCoordinator restores earlier states through the ordinary update
// path. A restore is audited as an update; it is not tagged as a rollback.
type RollbackCoordinator struct {
	gateway *MutationGateway
	history *HistoryService
}

func NewRollbackCoordinator(gateway *MutationGateway, history *HistoryService) *RollbackCoordinator {
	return &RollbackCoordinator{gateway: gateway, history: history}
}

// RestoreFromSnapshot writes prior's field values as the new state of the
// entity it describes. The version advances.
func (c *RollbackCoordinator) RestoreFromSnapshot(ctx context.Context, prior domain.Snapshot, actor domain.ActorID, origin domain.Origin) (_ domain.Entity, err error) {
	ctx, span := tracer.Start(ctx, "RollbackCoordinator.RestoreFromSnapshot", trace.WithAttributes(
		attribute.String("gmp.kind", string(prior.Kind)),
		attribute.Int64("gmp.record_id", prior.ID),
	))
	defer func() { endSpan(span, err) }()

	if prior.ID <= 0 {
		return domain.Entity{}, domain.NewValidationError("id", "snapshot has no record id")
	}
	return c.gateway.Upsert(ctx, domain.Entity{
		Kind:   prior.Kind,
		ID:     prior.ID,
		Fields: prior.Fields.Clone(),
	}, true, actor, origin)
}

// RestoreVersion looks version up in the audit history and restores it.
func (c *RollbackCoordinator) RestoreVersion(ctx context.Context, kind domain.Kind, id, version int64, actor domain.ActorID, origin domain.Origin) (domain.Entity, error) {
	prior, err := c.history.AtVersion(ctx, kind, id, version)
	if err != nil {
		return domain.Entity{}, err
	}
	return c.RestoreFromSnapshot(ctx, prior, actor, origin)
}
