package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/adapters/storage/gormdb"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/ports"
)

// SignatureLedger appends e-signatures. The live entity is read, checked by
// the caller's bind function and signed within one write transaction.
type SignatureLedger struct {
	db  *gormdb.DB
	now func() time.Time
}

func NewSignatureLedger(db *gormdb.DB) *SignatureLedger {
	return &SignatureLedger{db: db, now: time.Now}
}

func (l *SignatureLedger) AppendWithAudit(ctx context.Context, kind domain.Kind, targetID int64, bind ports.BindFunc) (domain.SignatureRecord, error) {
	spec, err := kindSpec(kind)
	if err != nil {
		return domain.SignatureRecord{}, err
	}

	var result domain.SignatureRecord
	err = l.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		current, err := loadForUpdate(tx, spec, targetID)
		if err != nil {
			return err
		}
		live, err := current.toDomain(spec)
		if err != nil {
			return err
		}

		rec, err := bind(live)
		if err != nil {
			return err
		}
		rec.TargetType = spec.Kind
		rec.TargetID = live.ID

		var dup int64
		if err := tx.Model(&signatureModel{}).
			Where("target_type = ? AND target_id = ? AND record_version = ? AND reason_code = ? AND signer_id = ?",
				string(rec.TargetType), rec.TargetID, rec.RecordVersion, rec.ReasonCode, rec.SignerID).
			Count(&dup).Error; err != nil {
			return fmt.Errorf("check duplicate signature: %w", err)
		}
		if dup > 0 {
			return duplicateOf(rec)
		}

		var prior int64
		if err := tx.Model(&signatureModel{}).
			Where("target_type = ? AND target_id = ?", string(rec.TargetType), rec.TargetID).
			Count(&prior).Error; err != nil {
			return fmt.Errorf("count prior signatures: %w", err)
		}
		rec.Revision = int(prior) + 1

		at := l.now().UTC()
		row := signatureRowFromDomain(rec, at)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return duplicateOf(rec)
			}
			return fmt.Errorf("insert signature: %w", err)
		}
		rec.ID = row.ID

		if _, err := appendAuditTx(tx.DB, domain.NewSignatureAudit(spec, rec, at)); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return domain.SignatureRecord{}, classifyTxError("sign "+spec.Table, err)
	}
	return result, nil
}

func (l *SignatureLedger) ListByTarget(ctx context.Context, kind domain.Kind, targetID int64) ([]domain.SignatureRecord, error) {
	var rows []signatureModel
	err := l.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Where("target_type = ? AND target_id = ?", string(kind), targetID).Order("id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	return toSignatureRecords(rows), nil
}

func (l *SignatureLedger) ListAll(ctx context.Context, afterID int64, limit int) ([]domain.SignatureRecord, error) {
	var rows []signatureModel
	err := l.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("scan signatures: %w", err)
	}
	return toSignatureRecords(rows), nil
}

func toSignatureRecords(rows []signatureModel) []domain.SignatureRecord {
	out := make([]domain.SignatureRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}

func duplicateOf(rec domain.SignatureRecord) error {
	return &domain.DuplicateSignatureError{
		TargetType: rec.TargetType,
		TargetID:   rec.TargetID,
		Version:    rec.RecordVersion,
		ReasonCode: rec.ReasonCode,
		SignerID:   rec.SignerID,
	}
}
