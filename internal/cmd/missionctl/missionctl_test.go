package missionctl

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
	"github.com/project-89/89-sub004/internal/services/missions/app"
	"github.com/project-89/89-sub004/internal/services/missions/bootstrap"
	"github.com/project-89/89-sub004/internal/services/missions/catalogfs"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
	workerstorage "github.com/project-89/89-sub004/internal/services/worker/storage"
	workersqlite "github.com/project-89/89-sub004/internal/services/worker/storage/sqlite"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, err := NewRootCommand()
	if err != nil {
		t.Fatalf("new root command: %v", err)
	}
	var stdout, stderr bytes.Buffer
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err = root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missions.db")
}

func TestCatalogValidate(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "missions.yaml")
	if err := os.WriteFile(valid, catalogfs.DefaultDocument(), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	out, err := runCLI(t, "catalog", "validate", valid)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "ok") {
		t.Fatalf("output = %q, want ok", out)
	}

	invalid := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(invalid, []byte("missions:\n  - id: 7\n"), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	_, err = runCLI(t, "catalog", "validate", invalid)
	if !apperrors.HasCode(err, apperrors.CodeCatalogInvalid) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeCatalogInvalid)
	}
}

func TestProxim8RegisterListAndAudit(t *testing.T) {
	db := testDB(t)
	if _, err := runCLI(t, "--db-path", db, "--actor", "ops", "proxim8", "register", "p8-1",
		"--agent", "agent-1", "--name", "Nyx", "--personality", "Analytical"); err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := runCLI(t, "--db-path", db, "-o", "json", "proxim8", "list", "--agent", "agent-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var listed []proxim8Output
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list %q: %v", out, err)
	}
	if len(listed) != 1 || listed[0].ID != "p8-1" || listed[0].Personality != "analytical" {
		t.Fatalf("listed = %+v", listed)
	}

	out, err = runCLI(t, "--db-path", db, "-o", "json", "audit", "list")
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	var entries []storage.AuditEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode audit %q: %v", out, err)
	}
	if len(entries) != 1 || entries[0].Action != app.AuditActionRegisterProxim8 || entries[0].Actor != "ops" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestDeploymentLifecycle(t *testing.T) {
	db := testDB(t)
	if _, err := runCLI(t, "--db-path", db, "--actor", "ops", "proxim8", "register", "p8-1",
		"--agent", "agent-1", "--personality", "analytical"); err != nil {
		t.Fatalf("register: %v", err)
	}
	deploymentID := deployTraining(t, db)

	out, err := runCLI(t, "--db-path", db, "-o", "json", "deployment", "show", deploymentID)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var shown deploymentOutput
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode show %q: %v", out, err)
	}
	if shown.ID != deploymentID || shown.Result != nil {
		t.Fatalf("shown = %+v", shown)
	}

	_, err = runCLI(t, "--db-path", db, "deployment", "finalize", deploymentID)
	if !apperrors.HasCode(err, apperrors.CodeDeploymentNotDue) {
		t.Fatalf("finalize err = %v, want %s", err, apperrors.CodeDeploymentNotDue)
	}

	if _, err := runCLI(t, "--db-path", db, "deployment", "clear", deploymentID); err == nil {
		t.Fatal("expected clear without --reason to fail")
	}
	if _, err := runCLI(t, "--db-path", db, "--actor", "ops", "deployment", "clear", deploymentID, "--reason", "stuck"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	_, err = runCLI(t, "--db-path", db, "deployment", "show", deploymentID)
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("show after clear err = %v, want %s", err, apperrors.CodeNotFound)
	}

	out, err = runCLI(t, "--db-path", db, "-o", "json", "audit", "list", "--limit", "1")
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	var entries []storage.AuditEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != app.AuditActionClearDeployment || entries[0].Reason != "stuck" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestSweepEmptyStore(t *testing.T) {
	out, err := runCLI(t, "--db-path", testDB(t), "-o", "yaml", "sweep")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out, "due: 0") {
		t.Fatalf("output = %q, want due: 0", out)
	}
}

func TestSweepRunsListsWorkerHistory(t *testing.T) {
	workerDB := filepath.Join(t.TempDir(), "worker.db")
	store, err := workersqlite.Open(context.Background(), workerDB)
	if err != nil {
		t.Fatalf("open worker store: %v", err)
	}
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, run := range []workerstorage.SweepRun{
		{Consumer: "missions-worker", StartedAt: started, FinishedAt: started.Add(time.Second), Due: 2, Finalized: 2},
		{Consumer: "missions-worker", StartedAt: started.Add(time.Minute), FinishedAt: started.Add(time.Minute + time.Second), Due: 1, Failed: 1, LastError: "deployment d-9: mission removed"},
	} {
		if err := store.RecordSweepRun(context.Background(), run); err != nil {
			t.Fatalf("record run %d: %v", i, err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close worker store: %v", err)
	}

	out, err := runCLI(t, "--worker-db-path", workerDB, "-o", "json", "sweep", "runs", "--limit", "5")
	if err != nil {
		t.Fatalf("sweep runs: %v", err)
	}
	var runs []sweepRunOutput
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(runs) != 2 || runs[0].Failed != 1 || runs[0].LastError == "" || runs[1].Finalized != 2 {
		t.Fatalf("runs = %+v", runs)
	}

	out, err = runCLI(t, "--worker-db-path", workerDB, "sweep", "runs", "--limit", "1")
	if err != nil {
		t.Fatalf("sweep runs table: %v", err)
	}
	if !strings.Contains(out, "CONSUMER") || strings.Count(out, "missions-worker") != 1 {
		t.Fatalf("table output = %q", out)
	}
}

func TestAuditReadArchive(t *testing.T) {
	db := testDB(t)
	archiveDir := t.TempDir()
	if _, err := runCLI(t, "--db-path", db, "--audit-archive-dir", archiveDir, "--actor", "ops",
		"proxim8", "register", "p8-1", "--agent", "agent-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	files, err := filepath.Glob(filepath.Join(archiveDir, "*"))
	if err != nil || len(files) != 1 {
		t.Fatalf("archive files = %v (%v), want one", files, err)
	}

	out, err := runCLI(t, "audit", "read", files[0])
	if err != nil {
		t.Fatalf("audit read: %v", err)
	}
	if !strings.Contains(out, app.AuditActionRegisterProxim8) || !strings.Contains(out, "p8-1") {
		t.Fatalf("output = %q", out)
	}
}

func TestDBStatus(t *testing.T) {
	out, err := runCLI(t, "--db-path", testDB(t), "-o", "json", "db", "status")
	if err != nil {
		t.Fatalf("db status: %v", err)
	}
	var migrations []migrationOutput
	if err := json.Unmarshal([]byte(out), &migrations); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(migrations) == 0 || !strings.HasSuffix(migrations[0].Name, ".sql") {
		t.Fatalf("migrations = %+v", migrations)
	}
}

func TestRejectsUnknownOutput(t *testing.T) {
	if _, err := runCLI(t, "--db-path", testDB(t), "-o", "xml", "sweep"); err == nil {
		t.Fatal("expected unsupported output error")
	}
}

func TestHealthProbe(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("missions.http", grpc_health_v1.HealthCheckResponse_SERVING)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	addr := listener.Addr().String()
	out, err := runCLI(t, "health", addr, "--service", "missions.http", "--timeout", "2s")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out, "SERVING") {
		t.Fatalf("output = %q, want SERVING", out)
	}

	if _, err := runCLI(t, "health", "nowhere"); err == nil {
		t.Fatal("expected unknown service error")
	}
}

func deployTraining(t *testing.T, db string) string {
	t.Helper()
	rt, err := bootstrap.Open(context.Background(), bootstrap.Options{DBPath: db, Logf: t.Logf})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	d, err := rt.Engine.Deploy(context.Background(), app.DeployRequest{
		AgentID:   "agent-1",
		MissionID: "training-001",
		Proxim8ID: "p8-1",
		Approach:  "low",
	})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	return d.ID
}
