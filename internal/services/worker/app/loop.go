package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	missionsapp "github.com/project-89/89-sub004/internal/services/missions/app"
	workerstorage "github.com/project-89/89-sub004/internal/services/worker/storage"
)

const (
	defaultConsumer     = "missions-worker"
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 100
	defaultConcurrency  = 4
)

// Sweeper finalizes due deployments. *missionsapp.Engine implements it.
type Sweeper interface {
	Sweep(ctx context.Context, opts missionsapp.SweepOptions) (missionsapp.SweepReport, error)
}

// Config controls the sweep loop.
type Config struct {
	Consumer     string
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
}

func (c Config) normalized() Config {
	c.Consumer = strings.TrimSpace(c.Consumer)
	if c.Consumer == "" {
		c.Consumer = defaultConsumer
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	return c
}

// Loop periodically sweeps due deployments and records each pass.
type Loop struct {
	sweeper Sweeper
	runs    workerstorage.SweepRunStore
	cfg     Config
	clock   func() time.Time
	logf    func(format string, args ...any)
}

// New builds a sweep loop. runs may be nil to skip run bookkeeping.
func New(sweeper Sweeper, runs workerstorage.SweepRunStore, cfg Config, clock func() time.Time) *Loop {
	if clock == nil {
		clock = time.Now
	}
	return &Loop{
		sweeper: sweeper,
		runs:    runs,
		cfg:     cfg.normalized(),
		clock:   clock,
		logf:    log.Printf,
	}
}

// Run sweeps immediately and then on every poll interval until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil || l.sweeper == nil {
		return errors.New("sweeper is required")
	}
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := l.RunOnce(ctx); err != nil && ctx.Err() == nil {
			l.logf("worker sweep failed consumer=%s: %v", l.cfg.Consumer, err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs one sweep pass and records it.
func (l *Loop) RunOnce(ctx context.Context) (missionsapp.SweepReport, error) {
	started := l.clock().UTC()
	report, sweepErr := l.sweeper.Sweep(ctx, missionsapp.SweepOptions{
		Now:         started,
		Limit:       l.cfg.BatchSize,
		Concurrency: l.cfg.Concurrency,
	})

	if l.runs != nil {
		run := workerstorage.SweepRun{
			Consumer:    l.cfg.Consumer,
			StartedAt:   started,
			FinishedAt:  l.clock().UTC(),
			Due:         report.Due,
			Finalized:   report.Finalized,
			Failed:      report.Failed,
			LoreRetried: report.LoreRetried,
			LoreSynced:  report.LoreSynced,
		}
		if sweepErr != nil {
			run.LastError = sweepErr.Error()
		}
		// Bookkeeping must not depend on the sweep's context surviving.
		if err := l.runs.RecordSweepRun(context.WithoutCancel(ctx), run); err != nil {
			l.logf("record sweep run consumer=%s: %v", l.cfg.Consumer, err)
		}
	}
	return report, sweepErr
}
