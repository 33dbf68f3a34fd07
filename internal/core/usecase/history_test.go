package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordMachineEvent(t *testing.T, repo *auditRepoStub, op domain.Operation, ent domain.Entity) {
	t.Helper()
	spec, _ := domain.LookupKind(domain.KindMachine)
	snap, err := json.Marshal(ent.Snapshot())
	require.NoError(t, err)
	_, err = repo.Append(context.Background(), domain.NewMutationAudit(spec, op, ent, 7, domain.Origin{}, fixedNow, snap))
	require.NoError(t, err)
}

func machineAt(version int64, name string) domain.Entity {
	spec, _ := domain.LookupKind(domain.KindMachine)
	return domain.Entity{
		Kind:    domain.KindMachine,
		ID:      42,
		Version: version,
		Fields:  spec.Resolve(map[string]any{"code": "M-100", "name": name}),
	}
}

func TestHistoryReturnsMutationsInOrder(t *testing.T) {
	repo := &auditRepoStub{}
	recordMachineEvent(t, repo, domain.OpCreate, machineAt(1, "Autoclave"))
	recordMachineEvent(t, repo, domain.OpUpdate, machineAt(2, "Autoclave A"))
	_, err := repo.Append(context.Background(), domain.AuditEvent{Action: "MCH_SIGN", Table: "machines", RecordID: ptr(int64(42)), Snapshot: json.RawMessage(`{"free":"form"}`)})
	require.NoError(t, err)
	recordMachineEvent(t, repo, domain.OpUpdate, machineAt(3, "Autoclave B"))

	h := NewHistoryService(repo, nil)
	entries, err := h.History(context.Background(), domain.KindMachine, 42)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "MCH_CREATE", entries[0].Action)
	assert.Equal(t, "Autoclave B", entries[2].Snapshot.Fields["name"])
	assert.Equal(t, int64(2), entries[1].Snapshot.Version)

	_, err = h.History(context.Background(), domain.KindMachine, 43)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistoryUpcastsBareFieldSnapshots(t *testing.T) {
	repo := &auditRepoStub{}
	_, err := repo.Append(context.Background(), domain.AuditEvent{
		Action: "MCH_CREATE", Table: "machines", RecordID: ptr(int64(42)), RecordVersion: 1,
		Snapshot: json.RawMessage(`{"code":"M-100","name":"Legacy","install_date":"2019-05-01"}`),
	})
	require.NoError(t, err)

	entries, err := NewHistoryService(repo, nil).History(context.Background(), domain.KindMachine, 42)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	snap := entries[0].Snapshot
	assert.Equal(t, domain.CurrentSnapshotSchemaVersion, snap.SchemaVersion)
	assert.Equal(t, domain.KindMachine, snap.Kind)
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, "2019-05-01T00:00:00Z", snap.Fields["install_date"])
}

type failingUpcaster struct{}

func (failingUpcaster) FromVersion() int { return 5 }
func (failingUpcaster) ToVersion() int   { return 6 }
func (failingUpcaster) Upcast(json.RawMessage) (json.RawMessage, error) {
	return nil, assert.AnError
}

func TestSnapshotCodecMissingUpcaster(t *testing.T) {
	codec := NewSnapshotCodec(failingUpcaster{})
	_, err := codec.Decode(json.RawMessage(`{"fields":{}}`))
	assert.ErrorContains(t, err, "missing upcaster from version 0")
}

func TestRestoreFromSnapshotIsAnOrdinaryUpdate(t *testing.T) {
	repo := &auditRepoStub{}
	recordMachineEvent(t, repo, domain.OpCreate, machineAt(1, "Autoclave"))
	recordMachineEvent(t, repo, domain.OpUpdate, machineAt(2, "Wrong name"))

	var replaced domain.Mutation
	store := &entityStoreStub{replaceFn: func(_ context.Context, m domain.Mutation) (domain.Entity, error) {
		replaced = m
		ent := m.Entity
		ent.Version = 3
		return ent, nil
	}}
	gw := NewMutationGateway(store, WithClock(fixedClock))
	coord := NewRollbackCoordinator(gw, NewHistoryService(repo, nil))

	ent, err := coord.RestoreVersion(context.Background(), domain.KindMachine, 42, 1, 9, domain.Origin{SessionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), ent.Version)
	assert.Equal(t, int64(42), replaced.Entity.ID)
	assert.Equal(t, "Autoclave", replaced.Entity.Fields["name"])
	assert.Equal(t, domain.ActorID(9), replaced.Actor)

	_, err = coord.RestoreVersion(context.Background(), domain.KindMachine, 42, 7, 9, domain.Origin{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = coord.RestoreFromSnapshot(context.Background(), domain.Snapshot{Kind: domain.KindMachine}, 9, domain.Origin{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuditServiceAppendAndQuery(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo)
	ctx := context.Background()

	ev, err := svc.Append(ctx, domain.AuditEvent{Action: "EXPORT", Table: "machines", Severity: domain.SeverityWarning})
	require.NoError(t, err)
	assert.Equal(t, domain.SystemOrigin, ev.SourceIP)
	assert.False(t, ev.CreatedAt.IsZero())

	_, err = svc.Append(ctx, domain.AuditEvent{Action: "EXPORT", Table: "machines", Severity: "loud"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Append(ctx, domain.AuditEvent{Table: "machines"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	recordMachineEvent(t, repo, domain.OpCreate, machineAt(1, "Autoclave"))
	got, err := svc.Query(ctx, domain.AuditFilter{Table: "machine", Action: "MCH_CREATE"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "machines", got[0].Table)

	_, err = svc.Query(ctx, domain.AuditFilter{From: fixedNow, To: fixedNow})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func ptr[T any](v T) *T { return &v }

func TestSnapshotCodecKeepsLargeIntegers(t *testing.T) {
	codec := NewSnapshotCodec(BareFieldsUpcaster{})
	spec, _ := domain.LookupKind(domain.KindComponent)

	for _, raw := range []string{
		`{"schema_version":1,"kind":"component","id":3,"version":1,"fields":{"machine_id":9007199254740993}}`,
		`{"machine_id":9007199254740993}`,
	} {
		snap, err := codec.Decode(json.RawMessage(raw))
		require.NoError(t, err)
		fields := spec.Resolve(snap.Fields)
		assert.Equal(t, int64(9007199254740993), fields["machine_id"], raw)
	}
}
