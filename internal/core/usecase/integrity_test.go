package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyCleanStoreRecordsInfoEvent(t *testing.T) {
	repo := &auditRepoStub{}
	recordMachineEvent(t, repo, domain.OpCreate, machineAt(1, "Autoclave"))

	store := &entityStoreStub{listFn: func(_ context.Context, kind domain.Kind, f domain.EntityListFilter) ([]domain.Entity, error) {
		if kind == domain.KindMachine && f.AfterID == 0 {
			return []domain.Entity{machineAt(1, "Autoclave")}, nil
		}
		return nil, nil
	}}
	svc, ledger := newSignatureFixture(workOrder17(3))
	_, err := svc.Sign(context.Background(), signRequest())
	require.NoError(t, err)

	checker := NewIntegrityChecker(store, NewAuditService(repo), ledger, nil, nil)
	report, err := checker.Verify(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.EntitiesChecked)
	assert.Equal(t, 1, report.SignaturesChecked)

	last := repo.events[len(repo.events)-1]
	assert.Equal(t, "INTEGRITY_CHECK", last.Action)
	assert.Equal(t, domain.SeverityInfo, last.Severity)
	assert.Equal(t, last.ID, report.AuditEventID)
}

func TestVerifyReportsOrphansAndTamperedSnapshots(t *testing.T) {
	repo := &auditRepoStub{}
	store := &entityStoreStub{listFn: func(_ context.Context, kind domain.Kind, f domain.EntityListFilter) ([]domain.Entity, error) {
		if kind == domain.KindMachine && f.AfterID == 0 {
			return []domain.Entity{machineAt(1, "No audit trail")}, nil
		}
		return nil, nil
	}}
	svc, ledger := newSignatureFixture(workOrder17(3))
	_, err := svc.Sign(context.Background(), signRequest())
	require.NoError(t, err)

	tampered := workOrder17(3)
	tampered.Fields["title"] = "Edited after signing"
	ledger.sigs[0].Snapshot, err = json.Marshal(tampered.Snapshot())
	require.NoError(t, err)

	report, err := NewIntegrityChecker(store, NewAuditService(repo), ledger, nil, nil).Verify(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Issues, 2)
	assert.Equal(t, domain.KindMachine, report.Issues[0].Kind)
	assert.Contains(t, report.Issues[0].Problem, "MCH_CREATE")
	assert.Equal(t, domain.KindWorkOrder, report.Issues[1].Kind)

	last := repo.events[len(repo.events)-1]
	assert.Equal(t, domain.SeverityError, last.Severity)
	assert.Contains(t, last.Description, "2 issue(s)")
}
