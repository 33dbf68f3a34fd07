package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/ports"
	"go.uber.org/zap"
)

type IntegrityIssue struct {
	Kind     domain.Kind `json:"kind"`
	RecordID int64       `json:"record_id"`
	Problem  string      `json:"problem"`
}

type IntegrityReport struct {
	EntitiesChecked   int              `json:"entities_checked"`
	SignaturesChecked int              `json:"signatures_checked"`
	Issues            []IntegrityIssue `json:"issues"`
	AuditEventID      int64            `json:"audit_event_id"`
}

func (r IntegrityReport) Clean() bool { return len(r.Issues) == 0 }

// IntegrityChecker looks for entity rows lacking a create event and for
// signatures whose stored snapshot no longer hashes to the signed hash.
type IntegrityChecker struct {
	store     ports.EntityStore
	audit     *AuditService
	ledger    ports.SignatureLedger
	codec     *SnapshotCodec
	log       *zap.Logger
	batchSize int
}

func NewIntegrityChecker(store ports.EntityStore, audit *AuditService, ledger ports.SignatureLedger, codec *SnapshotCodec, log *zap.Logger) *IntegrityChecker {
	if codec == nil {
		codec = NewSnapshotCodec(BareFieldsUpcaster{})
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IntegrityChecker{store: store, audit: audit, ledger: ledger, codec: codec, log: log, batchSize: 500}
}

// Verify runs the check and appends its result as an INTEGRITY_CHECK event.
func (c *IntegrityChecker) Verify(ctx context.Context) (IntegrityReport, error) {
	ctx, span := tracer.Start(ctx, "IntegrityChecker.Verify")
	defer span.End()

	var report IntegrityReport
	for _, spec := range domain.Kinds() {
		if err := c.checkEntities(ctx, spec, &report); err != nil {
			return IntegrityReport{}, err
		}
	}
	if err := c.checkSignatures(ctx, &report); err != nil {
		return IntegrityReport{}, err
	}

	severity := domain.SeverityInfo
	description := fmt.Sprintf("integrity check passed: %d entities, %d signatures", report.EntitiesChecked, report.SignaturesChecked)
	if !report.Clean() {
		severity = domain.SeverityError
		problems := make([]string, 0, len(report.Issues))
		for _, is := range report.Issues {
			problems = append(problems, fmt.Sprintf("%s %d: %s", is.Kind, is.RecordID, is.Problem))
		}
		description = fmt.Sprintf("integrity check found %d issue(s): %s", len(report.Issues), strings.Join(problems, "; "))
	}
	ev, err := c.audit.Append(ctx, domain.AuditEvent{
		Action:      "INTEGRITY_CHECK",
		Table:       "*",
		Description: description,
		Severity:    severity,
	})
	if err != nil {
		return IntegrityReport{}, fmt.Errorf("record integrity check: %w", err)
	}
	report.AuditEventID = ev.ID

	if report.Clean() {
		c.log.Info("integrity check passed",
			zap.Int("entities", report.EntitiesChecked),
			zap.Int("signatures", report.SignaturesChecked))
	} else {
		c.log.Error("integrity check found issues", zap.Int("issues", len(report.Issues)))
	}
	return report, nil
}

func (c *IntegrityChecker) checkEntities(ctx context.Context, spec domain.KindSpec, report *IntegrityReport) error {
	created, err := c.createdIDs(ctx, spec)
	if err != nil {
		return err
	}

	afterID := int64(0)
	for {
		rows, err := c.store.List(ctx, spec.Kind, domain.EntityListFilter{AfterID: afterID, Limit: c.batchSize})
		if err != nil {
			return fmt.Errorf("list %s: %w", spec.Table, err)
		}
		for _, ent := range rows {
			report.EntitiesChecked++
			if !created[ent.ID] {
				report.Issues = append(report.Issues, IntegrityIssue{Kind: spec.Kind, RecordID: ent.ID, Problem: "no " + spec.Action(domain.OpCreate) + " audit event"})
			}
			afterID = ent.ID
		}
		if len(rows) < c.batchSize {
			return nil
		}
	}
}

func (c *IntegrityChecker) createdIDs(ctx context.Context, spec domain.KindSpec) (map[int64]bool, error) {
	ids := make(map[int64]bool)
	afterID := int64(0)
	for {
		events, err := c.audit.repo.List(ctx, domain.AuditFilter{Table: spec.Table, Action: spec.Action(domain.OpCreate), AfterID: afterID, Limit: c.batchSize})
		if err != nil {
			return nil, fmt.Errorf("list %s create events: %w", spec.Table, err)
		}
		for _, ev := range events {
			if ev.RecordID != nil {
				ids[*ev.RecordID] = true
			}
			afterID = ev.ID
		}
		if len(events) < c.batchSize {
			return ids, nil
		}
	}
}

func (c *IntegrityChecker) checkSignatures(ctx context.Context, report *IntegrityReport) error {
	afterID := int64(0)
	for {
		sigs, err := c.ledger.ListAll(ctx, afterID, c.batchSize)
		if err != nil {
			return fmt.Errorf("list signatures: %w", err)
		}
		for _, sig := range sigs {
			report.SignaturesChecked++
			if problem := c.signatureProblem(sig); problem != "" {
				report.Issues = append(report.Issues, IntegrityIssue{Kind: sig.TargetType, RecordID: sig.TargetID, Problem: problem})
			}
			afterID = sig.ID
		}
		if len(sigs) < c.batchSize {
			return nil
		}
	}
}

// signatureProblem reports why sig's snapshot does not reproduce its hash.
// Snapshots that are not in the server's snapshot format are caller
// supplied and cannot be rehashed; they are skipped.
func (c *IntegrityChecker) signatureProblem(sig domain.SignatureRecord) string {
	if len(sig.Snapshot) == 0 || !json.Valid(sig.Snapshot) {
		return ""
	}
	snap, err := c.codec.Decode(sig.Snapshot)
	if err != nil || !describesRecord(snap) {
		return ""
	}
	hash, err := resolvedHash(snap)
	if err != nil {
		return fmt.Sprintf("signature %d snapshot cannot be hashed: %v", sig.ID, err)
	}
	if !strings.EqualFold(hash, sig.RecordHash) {
		return fmt.Sprintf("signature %d snapshot does not match record hash", sig.ID)
	}
	return ""
}
