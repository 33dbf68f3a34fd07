package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/metrics"
	"github.com/atvirokodosprendimai/gmpledger/internal/slowlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestUpsertInsertResolvesFieldsAndAssignsToken(t *testing.T) {
	var got domain.Mutation
	store := &entityStoreStub{insertFn: func(_ context.Context, m domain.Mutation) (domain.Entity, error) {
		got = m
		ent := m.Entity
		ent.ID = 42
		ent.Version = 1
		return ent, nil
	}}
	gw := NewMutationGateway(store, WithClock(fixedClock))

	ent, err := gw.Upsert(context.Background(), domain.Entity{
		Kind:   domain.KindMachine,
		Fields: domain.Fields{"code": "M-100", "name": "Autoclave", "bogus": true, "install_date": 17},
	}, false, 7, domain.Origin{SourceIP: "10.0.0.5"})
	require.NoError(t, err)

	assert.Equal(t, int64(42), ent.ID)
	assert.Equal(t, domain.ActorID(7), got.Actor)
	assert.Equal(t, fixedNow, got.At)
	assert.NotContains(t, got.Entity.Fields, "bogus")
	assert.Nil(t, got.Entity.Fields["install_date"])
	assert.Contains(t, got.Entity.Fields, "serial_number")
	assert.Len(t, got.Entity.IdentityToken, 64)
	assert.Equal(t, "10.0.0.5", got.Origin.SourceIP)
	assert.Equal(t, domain.SystemOrigin, got.Origin.Device)
}

func TestUpsertKeepsCallerToken(t *testing.T) {
	store := &entityStoreStub{insertFn: func(_ context.Context, m domain.Mutation) (domain.Entity, error) {
		return m.Entity, nil
	}}
	gw := NewMutationGateway(store)

	ent, err := gw.Upsert(context.Background(), domain.Entity{Kind: domain.KindSupplier, IdentityToken: "ext-1", Fields: domain.Fields{"name": "Acme"}}, false, 1, domain.Origin{})
	require.NoError(t, err)
	assert.Equal(t, "ext-1", ent.IdentityToken)
}

func TestUpsertRejectsMisuse(t *testing.T) {
	gw := NewMutationGateway(&entityStoreStub{})
	ctx := context.Background()

	_, err := gw.Upsert(ctx, domain.Entity{Kind: "reactor"}, false, 1, domain.Origin{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = gw.Upsert(ctx, domain.Entity{Kind: domain.KindMachine}, true, 1, domain.Origin{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = gw.Upsert(ctx, domain.Entity{Kind: domain.KindMachine, ID: 5}, false, 1, domain.Origin{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpsertUpdatePassesStoreErrorsThrough(t *testing.T) {
	atomic := &domain.AtomicityError{Op: "update machines", Err: errors.New("disk I/O error")}
	store := &entityStoreStub{replaceFn: func(_ context.Context, m domain.Mutation) (domain.Entity, error) {
		assert.Equal(t, int64(9), m.Entity.ID)
		return domain.Entity{}, atomic
	}}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	gw := NewMutationGateway(store, WithMetrics(m))

	_, err := gw.Upsert(context.Background(), domain.Entity{Kind: domain.KindMachine, ID: 9}, true, 1, domain.Origin{})
	assert.ErrorIs(t, err, domain.ErrAtomicity)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MutationTotal.WithLabelValues("machine", "UPDATE", "atomicity")))
}

func TestDeleteBuildsMutation(t *testing.T) {
	var got domain.Mutation
	store := &entityStoreStub{deleteFn: func(_ context.Context, m domain.Mutation) error {
		got = m
		return nil
	}}
	gw := NewMutationGateway(store, WithClock(fixedClock))

	require.NoError(t, gw.Delete(context.Background(), domain.KindComponent, 3, 7, domain.Origin{}))
	assert.Equal(t, domain.KindComponent, got.Entity.Kind)
	assert.Equal(t, int64(3), got.Entity.ID)
	assert.Equal(t, domain.SystemOrigin, got.Origin.SessionID)

	assert.ErrorIs(t, gw.Delete(context.Background(), domain.KindComponent, 0, 7, domain.Origin{}), domain.ErrValidation)
}

func TestSlowOperationsAreRecorded(t *testing.T) {
	calls := 0
	clock := func() time.Time {
		calls++
		return fixedNow.Add(time.Duration(calls) * time.Second)
	}
	store := &entityStoreStub{insertFn: func(_ context.Context, m domain.Mutation) (domain.Entity, error) {
		ent := m.Entity
		ent.ID = 1
		return ent, nil
	}}
	rec := slowlog.New(500*time.Millisecond, 10)
	gw := NewMutationGateway(store, WithClock(clock), WithSlowLog(rec))

	_, err := gw.Upsert(context.Background(), domain.Entity{Kind: domain.KindMachine, Fields: domain.Fields{"code": "M-1"}}, false, 1, domain.Origin{})
	require.NoError(t, err)

	entries := rec.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "upsert", entries[0].Operation)
	assert.Equal(t, int64(1), entries[0].RecordID)
}

func TestListClampsLimit(t *testing.T) {
	var seen []int
	store := &entityStoreStub{listFn: func(_ context.Context, _ domain.Kind, f domain.EntityListFilter) ([]domain.Entity, error) {
		seen = append(seen, f.Limit)
		return nil, nil
	}}
	gw := NewMutationGateway(store)

	for _, limit := range []int{0, 10, 5000} {
		_, err := gw.List(context.Background(), domain.KindMachine, domain.EntityListFilter{Limit: limit})
		require.NoError(t, err)
	}
	assert.Equal(t, []int{100, 10, 1000}, seen)
}
