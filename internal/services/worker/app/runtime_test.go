package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	missionsapp "github.com/project-89/89-sub004/internal/services/missions/app"
	workersqlite "github.com/project-89/89-sub004/internal/services/worker/storage/sqlite"
)

type fakeSweeper struct {
	mu     sync.Mutex
	calls  []missionsapp.SweepOptions
	report missionsapp.SweepReport
	err    error
}

func (f *fakeSweeper) Sweep(_ context.Context, opts missionsapp.SweepOptions) (missionsapp.SweepReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	return f.report, f.err
}

func (f *fakeSweeper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestConfigNormalizedDefaults(t *testing.T) {
	cfg := Config{Consumer: "  "}.normalized()
	if cfg.Consumer != defaultConsumer {
		t.Fatalf("consumer = %q, want %q", cfg.Consumer, defaultConsumer)
	}
	if cfg.PollInterval != defaultPollInterval || cfg.BatchSize != defaultBatchSize || cfg.Concurrency != defaultConcurrency {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestRunOnceRecordsSweepRun(t *testing.T) {
	store := openTempWorkerStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{report: missionsapp.SweepReport{Due: 2, Finalized: 1, Failed: 1}}
	loop := New(sweeper, store, Config{BatchSize: 10, Concurrency: 2}, func() time.Time { return now })

	report, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if report.Due != 2 {
		t.Fatalf("report = %+v", report)
	}
	if got := sweeper.calls[0]; !got.Now.Equal(now) || got.Limit != 10 || got.Concurrency != 2 {
		t.Fatalf("sweep options = %+v", got)
	}

	runs, err := store.ListSweepRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("list sweep runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs len = %d, want 1", len(runs))
	}
	if runs[0].Consumer != defaultConsumer || runs[0].Finalized != 1 || runs[0].Failed != 1 {
		t.Fatalf("run = %+v", runs[0])
	}
}

func TestRunOnceRecordsSweepError(t *testing.T) {
	store := openTempWorkerStore(t)
	sweeper := &fakeSweeper{err: errors.New("database is locked")}
	loop := New(sweeper, store, Config{Consumer: "worker-a"}, nil)

	if _, err := loop.RunOnce(context.Background()); err == nil {
		t.Fatal("expected sweep error")
	}
	runs, err := store.ListSweepRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("list sweep runs: %v", err)
	}
	if len(runs) != 1 || runs[0].LastError != "database is locked" || runs[0].Consumer != "worker-a" {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sweeper := &fakeSweeper{}
	loop := New(sweeper, nil, Config{PollInterval: 10 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for sweeper.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("loop did not sweep repeatedly")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestRunRequiresSweeper(t *testing.T) {
	if err := New(nil, nil, Config{}, nil).Run(context.Background()); err == nil {
		t.Fatal("expected error without sweeper")
	}
}

func openTempWorkerStore(t *testing.T) *workersqlite.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	store, err := workersqlite.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open worker store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close worker store: %v", err)
		}
	})
	return store
}
