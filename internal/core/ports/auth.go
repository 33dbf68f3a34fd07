package ports

import (
	"context"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
)

type APIKeyRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (domain.APIKey, error)
	Upsert(ctx context.Context, key domain.APIKey) error
}

type UserRepository interface {
	UserDirectory
	CreateWithKey(ctx context.Context, user domain.Signer, key domain.APIKey, audit domain.AuditEvent) (domain.Signer, error)
	FindByUsername(ctx context.Context, username string) (domain.Signer, error)
}
