package usecase

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/ports"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// MutationGateway is the only write path for regulated entities. Every
// successful call is paired with exactly one audit event by the store.
type MutationGateway struct {
	store ports.EntityStore
	instruments
}

func NewMutationGateway(store ports.EntityStore, opts ...Option) *MutationGateway {
	return &MutationGateway{store: store, instruments: newInstruments(opts)}
}

// Upsert inserts ent (isUpdate false) or replaces every field of the
// existing row ent.ID (isUpdate true). Field values are resolved against
// the kind's declared fields; unknown or mistyped values become null.
func (g *MutationGateway) Upsert(ctx context.Context, ent domain.Entity, isUpdate bool, actor domain.ActorID, origin domain.Origin) (result domain.Entity, err error) {
	op := domain.OpCreate
	if isUpdate {
		op = domain.OpUpdate
	}
	started := g.now()
	ctx, span := g.startSpan(ctx, "MutationGateway.Upsert", ent.Kind, ent.ID)
	defer func() {
		g.metrics.ObserveMutation(string(ent.Kind), string(op), outcome(err), g.now().Sub(started))
		id := result.ID
		if id == 0 {
			id = ent.ID
		}
		g.finish(span, "upsert", ent.Kind, id, started, err)
	}()

	spec, err := lookupKind(ent.Kind)
	if err != nil {
		return domain.Entity{}, err
	}
	switch {
	case isUpdate && ent.ID <= 0:
		return domain.Entity{}, domain.NewValidationError("id", "update requires an existing id")
	case !isUpdate && ent.ID != 0:
		return domain.Entity{}, domain.NewValidationError("id", "id is assigned on insert")
	}

	at := g.now().UTC()
	ent.Kind = spec.Kind
	ent.Fields = spec.Resolve(ent.Fields)
	if ent.IdentityToken == "" {
		token, err := domain.NewIdentityToken(spec.Kind, ent.Fields, at)
		if err != nil {
			return domain.Entity{}, fmt.Errorf("identity token: %w", err)
		}
		ent.IdentityToken = token
	}

	m := domain.Mutation{Entity: ent, Actor: actor, Origin: origin.Normalize(), At: at}
	if isUpdate {
		return g.store.ReplaceWithAudit(ctx, m)
	}
	return g.store.InsertWithAudit(ctx, m)
}

// Delete removes the row and records its last state in the audit log.
func (g *MutationGateway) Delete(ctx context.Context, kind domain.Kind, id int64, actor domain.ActorID, origin domain.Origin) (err error) {
	started := g.now()
	ctx, span := g.startSpan(ctx, "MutationGateway.Delete", kind, id)
	defer func() {
		g.metrics.ObserveMutation(string(kind), string(domain.OpDelete), outcome(err), g.now().Sub(started))
		g.finish(span, "delete", kind, id, started, err)
	}()

	spec, err := lookupKind(kind)
	if err != nil {
		return err
	}
	if id <= 0 {
		return domain.NewValidationError("id", "must be positive")
	}
	return g.store.DeleteWithAudit(ctx, domain.Mutation{
		Entity: domain.Entity{Kind: spec.Kind, ID: id},
		Actor:  actor,
		Origin: origin.Normalize(),
		At:     g.now().UTC(),
	})
}

func (g *MutationGateway) Get(ctx context.Context, kind domain.Kind, id int64) (domain.Entity, error) {
	spec, err := lookupKind(kind)
	if err != nil {
		return domain.Entity{}, err
	}
	return g.store.Get(ctx, spec.Kind, id)
}

func (g *MutationGateway) List(ctx context.Context, kind domain.Kind, filter domain.EntityListFilter) ([]domain.Entity, error) {
	spec, err := lookupKind(kind)
	if err != nil {
		return nil, err
	}
	filter.Limit = clampLimit(filter.Limit)
	return g.store.List(ctx, spec.Kind, filter)
}

func lookupKind(kind domain.Kind) (domain.KindSpec, error) {
	spec, ok := domain.LookupKind(kind)
	if !ok {
		return domain.KindSpec{}, domain.NewValidationError("kind", fmt.Sprintf("unknown entity kind %q", kind))
	}
	return spec, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
