package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func TestApplyRecordsApplied(t *testing.T) {
	db := openInMemoryDB(t)
	migrations := fstest.MapFS{
		"001_deployments.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE deployments(id TEXT PRIMARY KEY);")},
		"002_audit.sql":       {Data: []byte("-- +migrate Up\nCREATE TABLE audit_log(id INTEGER PRIMARY KEY);")},
		"README.md":           {Data: []byte("not a migration")},
	}

	applied, err := Apply(context.Background(), db, migrations)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if len(applied) != 2 || applied[0] != "001_deployments.sql" || applied[1] != "002_audit.sql" {
		t.Fatalf("applied = %v", applied)
	}
	if !tableExists(t, db, "deployments") || !tableExists(t, db, "audit_log") {
		t.Fatal("expected migrated tables to exist")
	}

	records, err := Applied(context.Background(), db)
	if err != nil {
		t.Fatalf("list applied: %v", err)
	}
	if len(records) != 2 || records[0].Name != "001_deployments.sql" || records[0].AppliedAt.IsZero() {
		t.Fatalf("records = %+v", records)
	}
}

func TestApplySkipsAlreadyApplied(t *testing.T) {
	db := openInMemoryDB(t)
	migrations := fstest.MapFS{
		"001_deployments.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE deployments(id TEXT PRIMARY KEY);")},
	}
	if _, err := Apply(context.Background(), db, migrations); err != nil {
		t.Fatalf("apply initial migrations: %v", err)
	}
	applied, err := Apply(context.Background(), db, migrations)
	if err != nil {
		t.Fatalf("re-apply migrations should be idempotent: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("applied on replay = %v, want none", applied)
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 1 {
		t.Fatalf("migration rows = %d, want 1", rows)
	}
}

func TestApplyDoesNotRecordFailedMigration(t *testing.T) {
	db := openInMemoryDB(t)
	bad := fstest.MapFS{
		"001_bad.sql": {Data: []byte("-- +migrate Up\nCREAT table things(id INT);")},
	}
	if _, err := Apply(context.Background(), db, bad); err == nil {
		t.Fatal("expected bad migration to fail")
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 0 {
		t.Fatalf("failed migration recorded %d rows, want 0", rows)
	}

	good := fstest.MapFS{
		"001_bad.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE things(id INTEGER PRIMARY KEY);")},
	}
	if _, err := Apply(context.Background(), db, good); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 1 {
		t.Fatalf("fixed migration rows = %d, want 1", rows)
	}
}

func TestApplyToleratesExistingTable(t *testing.T) {
	db := openInMemoryDB(t)
	if _, err := db.Exec("CREATE TABLE sweep_runs(id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("precreate table: %v", err)
	}
	migrations := fstest.MapFS{
		"001_sweep_runs.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE sweep_runs(id INTEGER PRIMARY KEY);")},
	}
	if _, err := Apply(context.Background(), db, migrations); err != nil {
		t.Fatalf("apply over existing table: %v", err)
	}
}

func TestApplyRequiresDB(t *testing.T) {
	if _, err := Apply(context.Background(), nil, fstest.MapFS{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestUpSection(t *testing.T) {
	got := UpSection("-- +migrate Up\nCREATE TABLE a(x);\n-- +migrate Down\nDROP TABLE a;")
	if got != "\nCREATE TABLE a(x);\n" {
		t.Fatalf("up section = %q", got)
	}
	if plain := UpSection("CREATE TABLE b(x);"); plain != "CREATE TABLE b(x);" {
		t.Fatalf("plain content = %q", plain)
	}
}

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	// Every pooled connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		t.Fatalf("query int value: %v", err)
	}
	return value
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", tableName).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		t.Fatalf("check table exists: %v", err)
	}
	return name == tableName
}
