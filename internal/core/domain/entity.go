package domain

import (
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/digest"
)

// ActorID identifies the user behind a change. SystemActor is stored as null.
type ActorID int64

const SystemActor ActorID = 0

func (a ActorID) IsSystem() bool { return a <= 0 }

func (a ActorID) Ptr() *int64 {
	if a.IsSystem() {
		return nil
	}
	v := int64(a)
	return &v
}

func ActorFromPtr(p *int64) ActorID {
	if p == nil {
		return SystemActor
	}
	return ActorID(*p)
}

// Entity is a regulated record of one kind.
type Entity struct {
	Kind          Kind
	ID            int64
	Fields        Fields
	Version       int64
	IdentityToken string
	CreatedAt     time.Time
	ModifiedAt    time.Time
	ModifiedBy    ActorID
}

func (e Entity) Snapshot() Snapshot {
	return Snapshot{
		SchemaVersion: CurrentSnapshotSchemaVersion,
		Kind:          e.Kind,
		ID:            e.ID,
		Version:       e.Version,
		Fields:        e.Fields,
		CapturedAt:    e.ModifiedAt,
	}
}

type identityInput struct {
	Kind      string         `cbor:"kind"`
	Fields    map[string]any `cbor:"fields"`
	CreatedAt int64          `cbor:"created_at"`
}

// NewIdentityToken derives the opaque identity token assigned at creation.
// It is never recomputed afterwards.
func NewIdentityToken(kind Kind, fields Fields, createdAt time.Time) (string, error) {
	return digest.Sum(digest.IdentityKey, identityInput{
		Kind:      string(kind),
		Fields:    fields,
		CreatedAt: createdAt.UTC().UnixNano(),
	})
}

// Mutation is one Gateway write. Entity.ID is zero on insert.
type Mutation struct {
	Entity Entity
	Actor  ActorID
	Origin Origin
	At     time.Time
}

type EntityListFilter struct {
	AfterID int64
	Limit   int
}
