package usecase

import (
	"context"
	"sync"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/ports"
)

type entityStoreStub struct {
	insertFn  func(ctx context.Context, m domain.Mutation) (domain.Entity, error)
	replaceFn func(ctx context.Context, m domain.Mutation) (domain.Entity, error)
	deleteFn  func(ctx context.Context, m domain.Mutation) error
	getFn     func(ctx context.Context, kind domain.Kind, id int64) (domain.Entity, error)
	listFn    func(ctx context.Context, kind domain.Kind, filter domain.EntityListFilter) ([]domain.Entity, error)
}

func (s *entityStoreStub) InsertWithAudit(ctx context.Context, m domain.Mutation) (domain.Entity, error) {
	return s.insertFn(ctx, m)
}

func (s *entityStoreStub) ReplaceWithAudit(ctx context.Context, m domain.Mutation) (domain.Entity, error) {
	return s.replaceFn(ctx, m)
}

func (s *entityStoreStub) DeleteWithAudit(ctx context.Context, m domain.Mutation) error {
	return s.deleteFn(ctx, m)
}

func (s *entityStoreStub) Get(ctx context.Context, kind domain.Kind, id int64) (domain.Entity, error) {
	return s.getFn(ctx, kind, id)
}

func (s *entityStoreStub) List(ctx context.Context, kind domain.Kind, filter domain.EntityListFilter) ([]domain.Entity, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, kind, filter)
}

// ledgerStub runs bind against live under a mutex, like the storage
// transaction does, and enforces uniqueness in memory.
type ledgerStub struct {
	mu     sync.Mutex
	live   map[int64]domain.Entity
	sigs   []domain.SignatureRecord
	audits []domain.AuditEvent
}

func newLedgerStub(live ...domain.Entity) *ledgerStub {
	m := make(map[int64]domain.Entity, len(live))
	for _, e := range live {
		m[e.ID] = e
	}
	return &ledgerStub{live: m}
}

func (l *ledgerStub) AppendWithAudit(_ context.Context, kind domain.Kind, targetID int64, bind ports.BindFunc) (domain.SignatureRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ent, ok := l.live[targetID]
	if !ok || ent.Kind != kind {
		return domain.SignatureRecord{}, &domain.NotFoundError{Kind: kind, ID: targetID}
	}
	rec, err := bind(ent)
	if err != nil {
		return domain.SignatureRecord{}, err
	}
	rec.TargetType, rec.TargetID = kind, targetID
	prior := 0
	for _, s := range l.sigs {
		if s.TargetType != kind || s.TargetID != targetID {
			continue
		}
		prior++
		if s.RecordVersion == rec.RecordVersion && s.ReasonCode == rec.ReasonCode && s.SignerID == rec.SignerID {
			return domain.SignatureRecord{}, &domain.DuplicateSignatureError{TargetType: kind, TargetID: targetID, Version: rec.RecordVersion, ReasonCode: rec.ReasonCode, SignerID: rec.SignerID}
		}
	}
	rec.ID = int64(len(l.sigs) + 1)
	rec.Revision = prior + 1
	l.sigs = append(l.sigs, rec)
	spec, _ := domain.LookupKind(kind)
	l.audits = append(l.audits, domain.NewSignatureAudit(spec, rec, rec.SignedAt))
	return rec, nil
}

func (l *ledgerStub) ListByTarget(_ context.Context, kind domain.Kind, targetID int64) ([]domain.SignatureRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.SignatureRecord
	for _, s := range l.sigs {
		if s.TargetType == kind && s.TargetID == targetID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (l *ledgerStub) ListAll(_ context.Context, afterID int64, limit int) ([]domain.SignatureRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.SignatureRecord
	for _, s := range l.sigs {
		if s.ID > afterID && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

type userDirectoryStub map[int64]domain.Signer

func (u userDirectoryStub) FindUser(_ context.Context, id int64) (domain.Signer, error) {
	s, ok := u[id]
	if !ok {
		return domain.Signer{}, domain.ErrNotFound
	}
	return s, nil
}

type reasonCatalogStub struct{}

func (reasonCatalogStub) Lookup(code string) (domain.Reason, bool) {
	switch code {
	case "WO_CLOSE":
		return domain.Reason{Code: "WO_CLOSE", Name: "Work order closure", Description: "Work order completed"}, true
	case "APPROVE":
		return domain.Reason{Code: "APPROVE", Name: "Approval", Description: "Approved"}, true
	case "CUSTOM":
		return domain.Reason{Code: "CUSTOM", Name: "Custom reason"}, true
	}
	return domain.Reason{}, false
}

func (reasonCatalogStub) CustomCode() string { return "CUSTOM" }

func (reasonCatalogStub) Reasons() []domain.Reason { return nil }

func (reasonCatalogStub) Version() string { return "test" }

// auditRepoStub is an in-memory audit log with the repository's filter rules.
type auditRepoStub struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (r *auditRepoStub) Append(_ context.Context, ev domain.AuditEvent) (domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return ev, nil
}

func (r *auditRepoStub) List(_ context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditEvent
	for _, ev := range r.events {
		switch {
		case ev.ID <= f.AfterID:
		case f.Table != "" && ev.Table != f.Table:
		case f.Action != "" && ev.Action != f.Action:
		case f.RecordID != nil && (ev.RecordID == nil || *ev.RecordID != *f.RecordID):
		case f.ActorID != nil && int64(ev.ActorID) != *f.ActorID:
		default:
			out = append(out, ev)
		}
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
