package ports

import (
	"context"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
)

// EntityStore persists regulated entities. Every write method commits the
// row, its audit event and its outbox entry in one transaction.
type EntityStore interface {
	InsertWithAudit(ctx context.Context, m domain.Mutation) (domain.Entity, error)
	ReplaceWithAudit(ctx context.Context, m domain.Mutation) (domain.Entity, error)
	DeleteWithAudit(ctx context.Context, m domain.Mutation) error
	Get(ctx context.Context, kind domain.Kind, id int64) (domain.Entity, error)
	List(ctx context.Context, kind domain.Kind, filter domain.EntityListFilter) ([]domain.Entity, error)
}
