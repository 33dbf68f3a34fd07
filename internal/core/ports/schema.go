package ports

import (
	"context"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
)

type KindSchemaRepository interface {
	Upsert(ctx context.Context, schema domain.KindSchema) (domain.KindSchema, error)
	Get(ctx context.Context, kind domain.Kind) (domain.KindSchema, error)
	Delete(ctx context.Context, kind domain.Kind) (bool, error)
}
