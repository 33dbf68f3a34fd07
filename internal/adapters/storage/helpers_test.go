package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/adapters/storage/gormdb"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/migrations"
)

func openTestDB(t *testing.T) (*gormdb.DB, *sql.DB) {
	t.Helper()
	db, err := gormdb.Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	wdb, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	if err := migrations.Up(context.Background(), wdb, db.Dialect()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, wdb
}

func failInsertsOn(t *testing.T, wdb *sql.DB, table string) {
	t.Helper()
	_, err := wdb.Exec(`CREATE TRIGGER trg_fail_` + table + ` BEFORE INSERT ON ` + table + `
		BEGIN
			SELECT RAISE(ABORT, 'forced ` + table + ` failure');
		END;`)
	if err != nil {
		t.Fatalf("create failure trigger: %v", err)
	}
}

func assertTableCount(t *testing.T, ctx context.Context, wdb *sql.DB, table string, want int) {
	t.Helper()
	var got int
	row := wdb.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table)
	if err := row.Scan(&got); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	if got != want {
		t.Fatalf("unexpected %s count: got %d want %d", table, got, want)
	}
}

func machineMutation(actor domain.ActorID, fields domain.Fields) domain.Mutation {
	spec, _ := domain.LookupKind(domain.KindMachine)
	return domain.Mutation{
		Entity: domain.Entity{Kind: domain.KindMachine, Fields: spec.Resolve(fields), IdentityToken: "token-initial"},
		Actor:  actor,
		Origin: domain.Origin{SourceIP: "10.1.2.3", Device: "line-3-terminal", SessionID: "sess-1"},
		At:     time.Now().UTC(),
	}
}
