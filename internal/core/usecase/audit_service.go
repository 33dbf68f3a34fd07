package usecase

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/ports"
)

// AuditService is the read side of the audit log plus the append path for
// table-wide events that accompany no entity write.
type AuditService struct {
	repo ports.AuditLogRepository
	now  func() time.Time
}

func NewAuditService(repo ports.AuditLogRepository) *AuditService {
	return &AuditService{repo: repo, now: time.Now}
}

// Append records ev regardless of severity. Missing origin attributes are
// set to the system origin.
func (s *AuditService) Append(ctx context.Context, ev domain.AuditEvent) (domain.AuditEvent, error) {
	if ev.Action == "" {
		return domain.AuditEvent{}, domain.NewValidationError("action", "required")
	}
	if ev.Table == "" {
		return domain.AuditEvent{}, domain.NewValidationError("table", "required")
	}
	if ev.Severity == "" {
		ev.Severity = domain.SeverityAudit
	}
	if !ev.Severity.Valid() {
		return domain.AuditEvent{}, domain.NewValidationError("severity", "must be audit, info, warning or error")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	origin := domain.Origin{SourceIP: ev.SourceIP, Device: ev.Device, SessionID: ev.SessionID}.Normalize()
	ev.SourceIP, ev.Device, ev.SessionID = origin.SourceIP, origin.Device, origin.SessionID
	return s.repo.Append(ctx, ev)
}

// Query lists events in write order. Table may also be given as a kind name.
func (s *AuditService) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	if spec, ok := domain.LookupKind(domain.Kind(filter.Table)); ok {
		filter.Table = spec.Table
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, domain.NewValidationError("from", "must be before to")
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.repo.List(ctx, filter)
}
