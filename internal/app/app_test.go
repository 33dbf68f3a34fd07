package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/config"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const bootstrapKey = "bootstrap-key"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Server:    config.ServerConfig{Addr: "127.0.0.1:0", TimeZone: "UTC"},
		Database:  config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "gmp.db")},
		Outbox:    config.OutboxConfig{Interval: 10 * time.Millisecond, BatchSize: 10, MaxRetry: 3},
		Publisher: config.PublisherConfig{Kind: "log"},
		Bootstrap: config.BootstrapConfig{APIKey: bootstrapKey, Username: "admin", FullName: "Administrator"},
		Reasons:   config.ReasonsConfig{CustomCode: "CUSTOM"},
		SlowLog:   config.SlowLogConfig{Threshold: time.Second, Capacity: 10},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewBootstrapsOnce(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// reopening the same file must not create the user again
	a, err = New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	p, err := a.Auth.Authenticate(context.Background(), bootstrapKey)
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Username)

	events, err := a.Audit.Query(context.Background(), domain.AuditFilter{Action: "USER_CREATE"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publisher.Kind = "carrier-pigeon"
	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.Server.TimeZone = "Mars/Olympus"
	_, err = New(context.Background(), cfg, nil)
	require.Error(t, err)

	_, err = OpenDatabase(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}

func TestConcurrentSigningAdmitsOne(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	p, err := a.Auth.Authenticate(ctx, bootstrapKey)
	require.NoError(t, err)
	actor := domain.ActorID(p.UserID)

	wo, err := a.Gateway.Upsert(ctx, domain.Entity{
		Kind:   domain.KindWorkOrder,
		Fields: domain.Fields{"machine_id": 1, "title": "Replace seal"},
	}, false, actor, domain.Origin{})
	require.NoError(t, err)

	const signers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dups      int
	)
	for i := 0; i < signers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Signatures.Sign(ctx, domain.SignRequest{
				TargetType:    domain.KindWorkOrder,
				TargetID:      wo.ID,
				SignerID:      p.UserID,
				ReasonCode:    "WO_CLOSE",
				RecordVersion: wo.Version,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrDuplicateSignature):
				dups++
			default:
				t.Errorf("unexpected sign error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
	assert.Equal(t, signers-1, dups)

	sigs, err := a.Signatures.Signatures(ctx, domain.KindWorkOrder, wo.ID)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "UTC", sigs[0].TimeZone)

	report, err := a.Integrity.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "issues: %v", report.Issues)
	assert.Equal(t, 1, report.EntitiesChecked)
	assert.Equal(t, 1, report.SignaturesChecked)
}

func TestHandlerServesMetricsAndAPI(t *testing.T) {
	a := newTestApp(t)
	h := a.Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/entities/supplier", strings.NewReader(`{"fields":{"name":"Acme"}}`))
	req.Header.Set("X-API-Key", bootstrapKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gmp_mutations_total{kind="supplier",op="CREATE",outcome="ok"} 1`)
}

func TestServeDispatchesOutboxAndStops(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, "127.0.0.1:0") }()

	_, err := a.Gateway.Upsert(context.Background(), domain.Entity{
		Kind:   domain.KindMachine,
		Fields: domain.Fields{"code": "M-1", "name": "Blister line"},
	}, false, domain.SystemActor, domain.Origin{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return a.dispatcher.Metrics().DispatchSuccessTotal >= 1
	}, 5*time.Second, 20*time.Millisecond, fmt.Sprintf("dispatcher metrics: %+v", a.dispatcher.Metrics()))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
