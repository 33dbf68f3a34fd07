package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// appendAuditTx writes the audit event and its outbox entry on tx.
func appendAuditTx(tx *gorm.DB, ev domain.AuditEvent) (domain.AuditEvent, error) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.Severity == "" {
		ev.Severity = domain.SeverityAudit
	}
	ev.CreatedAt = ev.CreatedAt.UTC()

	row := auditRowFromDomain(ev)
	if err := tx.Create(&row).Error; err != nil {
		return domain.AuditEvent{}, fmt.Errorf("insert audit event: %w", err)
	}
	ev.ID = row.ID

	payload, err := json.Marshal(domain.EnvelopeFromAudit(ev))
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("marshal outbox payload: %w", err)
	}
	outbox := outboxEventModel{
		EventID:       ev.EventID,
		Topic:         domain.OutboxTopic(ev),
		PayloadJSON:   string(payload),
		Status:        domain.OutboxPending,
		NextAttemptAt: ev.CreatedAt,
		CreatedAt:     ev.CreatedAt,
	}
	if err := tx.Create(&outbox).Error; err != nil {
		return domain.AuditEvent{}, fmt.Errorf("insert outbox event: %w", err)
	}
	return ev, nil
}

// classifyTxError passes domain outcomes and cancellation through and turns
// every other transaction failure into a retryable AtomicityError.
func classifyTxError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrStaleVersion),
		errors.Is(err, domain.ErrDuplicateSignature):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	}
	return &domain.AtomicityError{Op: op, Err: err}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value")
}

func kindSpec(kind domain.Kind) (domain.KindSpec, error) {
	spec, ok := domain.LookupKind(kind)
	if !ok {
		return domain.KindSpec{}, domain.NewValidationError("kind", fmt.Sprintf("unknown entity kind %q", kind))
	}
	return spec, nil
}

func snapshotJSON(ent domain.Entity) (json.RawMessage, error) {
	b, err := json.Marshal(ent.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return b, nil
}
