package storage

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/gmpledger/internal/adapters/storage/gormdb"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
)

// AuditLogRepository exposes append and query over audit_events. There is no
// update or delete path.
type AuditLogRepository struct {
	db *gormdb.DB
}

func NewAuditLogRepository(db *gormdb.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Append records a standalone event, e.g. a table-wide action.
func (r *AuditLogRepository) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	var saved domain.AuditEvent
	err := r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		var err error
		saved, err = appendAuditTx(tx.DB, event)
		return err
	})
	if err != nil {
		return domain.AuditEvent{}, classifyTxError("append audit event", err)
	}
	return saved, nil
}

func (r *AuditLogRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	var rows []auditEventModel
	err := r.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		query := tx.Model(&auditEventModel{})
		if filter.Table != "" {
			query = query.Where("entity_table = ?", filter.Table)
		}
		if filter.RecordID != nil {
			query = query.Where("record_id = ?", *filter.RecordID)
		}
		if filter.ActorID != nil {
			query = query.Where("actor_id = ?", *filter.ActorID)
		}
		if filter.Action != "" {
			query = query.Where("action = ?", filter.Action)
		}
		if !filter.From.IsZero() {
			query = query.Where("created_at >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			query = query.Where("created_at < ?", filter.To.UTC())
		}
		if filter.AfterID > 0 {
			query = query.Where("id > ?", filter.AfterID)
		}
		return query.Order("id ASC").Limit(filter.Limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}

	result := make([]domain.AuditEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}
