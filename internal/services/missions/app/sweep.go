package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/project-89/89-sub004/internal/services/missions/domain/deployment"
)

const (
	defaultSweepLimit       = 100
	defaultSweepConcurrency = 4
)

// SweepOptions bounds one sweep pass.
type SweepOptions struct {
	Now         time.Time
	Limit       int
	Concurrency int
}

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	Due         int
	Finalized   int
	Failed      int
	LoreRetried int
	LoreSynced  int
}

// Sweep finalizes every due deployment and retries pending lore deliveries.
// A failure on one deployment does not stop the others; each is counted and
// left for the next pass.
func (e *Engine) Sweep(ctx context.Context, opts SweepOptions) (_ SweepReport, err error) {
	if opts.Now.IsZero() {
		opts.Now = e.Now()
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultSweepLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultSweepConcurrency
	}
	ctx, span := e.startSpan(ctx, "missions.Sweep", attribute.Int("proxim8.sweep_limit", opts.Limit))
	defer func() { endSpan(span, err) }()

	due, err := e.store.ListDueDeployments(ctx, opts.Now, opts.Limit)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list due deployments: %w", err)
	}
	report := SweepReport{Due: len(due)}

	var finalized, failed atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Concurrency)
	for _, d := range due {
		deploymentID := d.ID
		group.Go(func() error {
			resolved, err := e.Finalize(groupCtx, deploymentID, opts.Now)
			if err != nil {
				failed.Add(1)
				e.logf("sweep finalize id=%s: %v", deploymentID, err)
				return nil
			}
			if resolved.Terminal() {
				finalized.Add(1)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return SweepReport{}, err
	}
	report.Finalized = int(finalized.Load())
	report.Failed = int(failed.Load())

	pending, err := e.store.ListPendingLoreSync(ctx, opts.Limit)
	if err != nil {
		return report, fmt.Errorf("list pending lore sync: %w", err)
	}
	for _, d := range pending {
		report.LoreRetried++
		if sync := e.distributor.SyncLore(ctx, d); sync.Status == deployment.LoreSyncSynced {
			report.LoreSynced++
		}
	}

	span.SetAttributes(
		attribute.Int("proxim8.sweep_due", report.Due),
		attribute.Int("proxim8.sweep_finalized", report.Finalized),
		attribute.Int("proxim8.sweep_failed", report.Failed),
	)
	if report.Due > 0 || report.LoreRetried > 0 {
		e.logf("sweep due=%d finalized=%d failed=%d lore_retried=%d lore_synced=%d",
			report.Due, report.Finalized, report.Failed, report.LoreRetried, report.LoreSynced)
	}
	return report, nil
}
