package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
)

// Upcaster rewrites a stored snapshot payload from one schema version to
// the next.
type Upcaster interface {
	FromVersion() int
	ToVersion() int
	Upcast(payload json.RawMessage) (json.RawMessage, error)
}

type SnapshotCodec struct {
	upcasters map[int]Upcaster
}

func NewSnapshotCodec(upcasters ...Upcaster) *SnapshotCodec {
	m := make(map[int]Upcaster, len(upcasters))
	for _, up := range upcasters {
		m[up.FromVersion()] = up
	}
	return &SnapshotCodec{upcasters: m}
}

// Decode upcasts raw to the current snapshot schema and decodes it.
func (c *SnapshotCodec) Decode(raw json.RawMessage) (domain.Snapshot, error) {
	var header struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot version: %w", err)
	}

	v := header.SchemaVersion
	payload := raw
	for v < domain.CurrentSnapshotSchemaVersion {
		up, ok := c.upcasters[v]
		if !ok {
			return domain.Snapshot{}, fmt.Errorf("missing upcaster from version %d", v)
		}
		next, err := up.Upcast(payload)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("upcast %d->%d: %w", up.FromVersion(), up.ToVersion(), err)
		}
		payload = next
		v = up.ToVersion()
	}

	var snap domain.Snapshot
	if err := decodeUseNumber(payload, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.SchemaVersion = v
	return snap, nil
}

// describesRecord reports whether snap is in the server snapshot format,
// as opposed to free-form evidence attached by a client.
func describesRecord(snap domain.Snapshot) bool {
	return snap.Kind != "" || snap.ID != 0
}

// resolvedHash hashes snap after coercing its fields through the kind's
// registry, the same way the live row is read.
func resolvedHash(snap domain.Snapshot) (string, error) {
	spec, ok := domain.LookupKind(snap.Kind)
	if !ok {
		return "", domain.NewValidationError("kind", "unknown kind "+string(snap.Kind))
	}
	snap.Kind = spec.Kind
	snap.Fields = spec.Resolve(snap.Fields)
	return snap.Hash()
}

// BareFieldsUpcaster lifts version 0 snapshots, which were a plain field
// object, into the version 1 envelope. Identity is filled from the audit
// row by the caller.
type BareFieldsUpcaster struct{}

func (BareFieldsUpcaster) FromVersion() int { return 0 }
func (BareFieldsUpcaster) ToVersion() int   { return 1 }

func (BareFieldsUpcaster) Upcast(payload json.RawMessage) (json.RawMessage, error) {
	var fields map[string]any
	if err := decodeUseNumber(payload, &fields); err != nil {
		return nil, err
	}
	delete(fields, "schema_version")
	return json.Marshal(map[string]any{"schema_version": 1, "fields": fields})
}

// decodeUseNumber keeps field numbers as json.Number so integers survive
// the trip back through Resolve.
func decodeUseNumber(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}
