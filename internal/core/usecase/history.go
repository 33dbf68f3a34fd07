package usecase

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/ports"
)

// HistoryService replays the snapshots recorded with each audited mutation.
type HistoryService struct {
	audit     ports.AuditLogRepository
	codec     *SnapshotCodec
	batchSize int
}

func NewHistoryService(audit ports.AuditLogRepository, codec *SnapshotCodec) *HistoryService {
	if codec == nil {
		codec = NewSnapshotCodec(BareFieldsUpcaster{})
	}
	return &HistoryService{audit: audit, codec: codec, batchSize: 500}
}

// History returns every create, update and delete of kind/id in write order.
func (h *HistoryService) History(ctx context.Context, kind domain.Kind, id int64) ([]domain.HistoryEntry, error) {
	spec, err := lookupKind(kind)
	if err != nil {
		return nil, err
	}
	wanted := map[string]bool{
		spec.Action(domain.OpCreate): true,
		spec.Action(domain.OpUpdate): true,
		spec.Action(domain.OpDelete): true,
	}

	var out []domain.HistoryEntry
	afterID := int64(0)
	for {
		events, err := h.audit.List(ctx, domain.AuditFilter{Table: spec.Table, RecordID: &id, AfterID: afterID, Limit: h.batchSize})
		if err != nil {
			return nil, fmt.Errorf("list audit events: %w", err)
		}
		if len(events) == 0 {
			break
		}
		for _, ev := range events {
			afterID = ev.ID
			if !wanted[ev.Action] || len(ev.Snapshot) == 0 {
				continue
			}
			snap, err := h.codec.Decode(ev.Snapshot)
			if err != nil {
				return nil, fmt.Errorf("audit event %d: %w", ev.ID, err)
			}
			if snap.Kind == "" {
				snap.Kind = spec.Kind
			}
			if snap.ID == 0 {
				snap.ID = id
			}
			if snap.Version == 0 {
				snap.Version = ev.RecordVersion
			}
			snap.Fields = spec.Resolve(snap.Fields)
			out = append(out, domain.HistoryEntry{
				AuditID:  ev.ID,
				Action:   ev.Action,
				ActorID:  ev.ActorID,
				At:       ev.CreatedAt,
				Snapshot: snap,
			})
		}
		if len(events) < h.batchSize {
			break
		}
	}
	if len(out) == 0 {
		return nil, &domain.NotFoundError{Kind: spec.Kind, ID: id}
	}
	return out, nil
}

// AtVersion returns the recorded state of kind/id at version.
func (h *HistoryService) AtVersion(ctx context.Context, kind domain.Kind, id, version int64) (domain.Snapshot, error) {
	entries, err := h.History(ctx, kind, id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	for _, e := range entries {
		if e.Snapshot.Version == version {
			return e.Snapshot, nil
		}
	}
	return domain.Snapshot{}, domain.NewValidationError("version", fmt.Sprintf("version %d not found in history of %s %d", version, kind, id))
}
