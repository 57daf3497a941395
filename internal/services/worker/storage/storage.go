package storage

import (
	"context"
	"time"
)

// SweepRun is one durable record of a finalization sweep pass.
type SweepRun struct {
	ID          int64
	Consumer    string
	StartedAt   time.Time
	FinishedAt  time.Time
	Due         int
	Finalized   int
	Failed      int
	LoreRetried int
	LoreSynced  int
	LastError   string
}

// SweepRunStore persists sweep pass records.
type SweepRunStore interface {
	RecordSweepRun(ctx context.Context, run SweepRun) error
	ListSweepRuns(ctx context.Context, limit int) ([]SweepRun, error)
}
