package domain

import (
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/digest"
)

const CurrentSnapshotSchemaVersion = 1

// Snapshot is an entity's field values at one version.
type Snapshot struct {
	SchemaVersion int       `json:"schema_version"`
	Kind          Kind      `json:"kind"`
	ID            int64     `json:"id"`
	Version       int64     `json:"version"`
	Fields        Fields    `json:"fields"`
	CapturedAt    time.Time `json:"captured_at"`
}

type snapshotHashInput struct {
	Kind    string         `cbor:"kind"`
	ID      int64          `cbor:"id"`
	Version int64          `cbor:"version"`
	Fields  map[string]any `cbor:"fields"`
}

// Hash is the record hash a signature binds to. CapturedAt is excluded so
// the hash depends only on identity, version and field values.
func (s Snapshot) Hash() (string, error) {
	return digest.Sum(digest.SnapshotKey, snapshotHashInput{
		Kind:    string(s.Kind),
		ID:      s.ID,
		Version: s.Version,
		Fields:  s.Fields,
	})
}

// HistoryEntry is one audited state of an entity.
type HistoryEntry struct {
	AuditID  int64     `json:"audit_id"`
	Action   string    `json:"action"`
	ActorID  ActorID   `json:"actor_id"`
	At       time.Time `json:"at"`
	Snapshot Snapshot  `json:"snapshot"`
}
