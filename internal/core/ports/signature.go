package ports

import (
	"context"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
)

// BindFunc runs inside the signing transaction with the live entity and
// returns the record to append, or an error to abort.
type BindFunc func(live domain.Entity) (domain.SignatureRecord, error)

type SignatureLedger interface {
	AppendWithAudit(ctx context.Context, kind domain.Kind, targetID int64, bind BindFunc) (domain.SignatureRecord, error)
	ListByTarget(ctx context.Context, kind domain.Kind, targetID int64) ([]domain.SignatureRecord, error)
	ListAll(ctx context.Context, afterID int64, limit int) ([]domain.SignatureRecord, error)
}

// ReasonCatalog is the versioned list of signature reasons.
type ReasonCatalog interface {
	Lookup(code string) (domain.Reason, bool)
	CustomCode() string
	Reasons() []domain.Reason
	Version() string
}

type UserDirectory interface {
	FindUser(ctx context.Context, id int64) (domain.Signer, error)
}
