package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
	"github.com/project-89/89-sub004/internal/services/missions/domain/deployment"
	"github.com/project-89/89-sub004/internal/services/missions/domain/resolution"
	"github.com/project-89/89-sub004/internal/services/missions/domain/reward"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

var testPhases = []catalog.Phase{
	{ID: 1, Name: "One", DurationPercent: 25},
	{ID: 2, Name: "Two", DurationPercent: 50},
	{ID: 3, Name: "Three", DurationPercent: 25},
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "missions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func newDeployment(t *testing.T, id, agentID, missionID string, now time.Time, outcome resolution.Outcome) deployment.Deployment {
	t.Helper()
	d, err := deployment.New(deployment.Params{
		ID:            id,
		AgentID:       agentID,
		Proxim8ID:     "p8-" + agentID,
		Proxim8Type:   "analytical",
		CoordinatorID: "oracle",
		Mission:       catalog.MissionTemplate{ID: missionID, Version: 2, Duration: 300 * time.Second, Phases: testPhases},
		Approach:      catalog.RiskHigh,
		Outcome:       outcome,
		Now:           now,
	})
	if err != nil {
		t.Fatalf("new deployment: %v", err)
	}
	return d
}

func successOutcome() resolution.Outcome {
	return resolution.Outcome{Seed: -77, BaseRate: 0.1 + 0.2, CompatibilityAdjustment: -0.1, AffinityBonus: 0.06, AdjustedRate: 0.26000000000000001, Roll: 0.123456789, Success: true, RewardMultiplier: 1.5, TimelineShift: 6}
}

func finalizeRecord(t *testing.T, d deployment.Deployment, grant reward.Grant, at time.Time) storage.FinalizeRecord {
	t.Helper()
	resolved, err := deployment.Resolve(d, testPhases, deployment.Result{
		Success:           grant.Success,
		TimelinePoints:    grant.TimelinePoints,
		Experience:        grant.Experience,
		LoreFragments:     grant.LoreFragments,
		AffinityIncrement: grant.AffinityIncrement,
		TimelineShift:     grant.TimelineShift,
		FinalizedAt:       at,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(grant.LoreFragments) > 0 {
		resolved.LoreSync = deployment.LoreSync{Status: deployment.LoreSyncPending, UpdatedAt: at}
	}
	return storage.FinalizeRecord{Deployment: resolved, Grant: grant, At: at}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestDeploymentRoundTripMidPhase(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 4, 5, 6, 789000000, time.UTC)
	d := newDeployment(t, "dep-1", "agent-1", "m1", now, successOutcome())
	if err := store.CreateDeployment(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	advanced := deployment.Advance(d, testPhases, now.Add(100*time.Second), 0)
	if err := store.AdvanceDeployment(ctx, d.ID, advanced.State.(deployment.Pending)); err != nil {
		t.Fatalf("advance: %v", err)
	}

	got, err := store.GetDeployment(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.DeployedAt.Equal(d.DeployedAt) || !got.CompletesAt.Equal(d.CompletesAt) {
		t.Fatalf("times = %v/%v, want %v/%v", got.DeployedAt, got.CompletesAt, d.DeployedAt, d.CompletesAt)
	}
	if got.Outcome != d.Outcome {
		t.Fatalf("outcome = %+v, want %+v", got.Outcome, d.Outcome)
	}
	if got.PhaseIndex() != 1 || got.Status() != deployment.StatusInProgress {
		t.Fatalf("state = %s/%d, want in-progress/1", got.Status(), got.PhaseIndex())
	}
	if got.MissionVersion != 2 || got.Approach != catalog.RiskHigh || got.CoordinatorID != "oracle" {
		t.Fatalf("deployment = %+v", got)
	}

	if _, err := store.GetDeployment(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing = %v, want ErrNotFound", err)
	}
}

func TestAdvanceNeverLowersPhase(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	d := newDeployment(t, "dep-1", "agent-1", "m1", now, successOutcome())
	if err := store.CreateDeployment(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.AdvanceDeployment(ctx, d.ID, deployment.Pending{CurrentPhase: 2}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := store.AdvanceDeployment(ctx, d.ID, deployment.Pending{Deploying: true, CurrentPhase: 1}); err != nil {
		t.Fatalf("advance back: %v", err)
	}
	got, err := store.GetDeployment(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PhaseIndex() != 2 || got.Status() != deployment.StatusInProgress {
		t.Fatalf("state = %s/%d, want in-progress/2", got.Status(), got.PhaseIndex())
	}
	if err := store.AdvanceDeployment(ctx, "missing", deployment.Pending{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("advance missing = %v, want ErrNotFound", err)
	}
}

func TestActivePairIsUnique(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	if err := store.CreateDeployment(ctx, newDeployment(t, "dep-1", "agent-1", "m1", now, successOutcome())); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.CreateDeployment(ctx, newDeployment(t, "dep-2", "agent-1", "m1", now, successOutcome()))
	if !errors.Is(err, storage.ErrActiveDeploymentExists) {
		t.Fatalf("second create = %v, want ErrActiveDeploymentExists", err)
	}
	if err := store.CreateDeployment(ctx, newDeployment(t, "dep-3", "agent-2", "m1", now, successOutcome())); err != nil {
		t.Fatalf("other agent create: %v", err)
	}

	active, err := store.FindActiveDeployment(ctx, "agent-1", "m1")
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if active.ID != "dep-1" {
		t.Fatalf("active id = %s, want dep-1", active.ID)
	}
}

func TestConcurrentCreateOneWins(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	deployments := make([]deployment.Deployment, attempts)
	for i := range deployments {
		deployments[i] = newDeployment(t, "dep-"+string(rune('a'+i)), "agent-1", "m1", now, successOutcome())
	}
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.CreateDeployment(ctx, deployments[i])
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, storage.ErrActiveDeploymentExists):
				conflicts++
			default:
				t.Errorf("create %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("successes = %d conflicts = %d, want 1/%d", successes, conflicts, attempts-1)
	}
}

func TestFinalizeAppliesGrantOnce(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	d := newDeployment(t, "dep-1", "agent-1", "m1", now, successOutcome())
	if err := store.CreateDeployment(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}

	at := d.CompletesAt
	grant := reward.Grant{Success: true, TimelinePoints: 600, Experience: 300, LoreFragments: []string{"lore-a", "lore-b"}, AffinityIncrement: 1, TimelineShift: 6}
	record := finalizeRecord(t, d, grant, at)
	if err := store.FinalizeDeployment(ctx, record); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := store.FinalizeDeployment(ctx, record); !errors.Is(err, storage.ErrAlreadyFinalized) {
		t.Fatalf("second finalize = %v, want ErrAlreadyFinalized", err)
	}

	got, err := store.GetDeployment(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	result, ok := got.Result()
	if !ok || got.Status() != deployment.StatusCompleted || result.TimelinePoints != 600 || !result.FinalizedAt.Equal(at) {
		t.Fatalf("finalized = %s %+v", got.Status(), result)
	}
	if got.LoreSync.Status != deployment.LoreSyncPending {
		t.Fatalf("lore sync = %s, want pending", got.LoreSync.Status)
	}

	progress, err := store.GetAgentProgress(ctx, "agent-1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.TimelinePoints != 600 || progress.Experience != 300 || progress.MissionsCompleted != 1 || progress.MissionsFailed != 0 {
		t.Fatalf("progress = %+v", progress)
	}
	unlocks, err := store.ListLoreUnlocks(ctx, "agent-1")
	if err != nil {
		t.Fatalf("lore: %v", err)
	}
	if len(unlocks) != 2 {
		t.Fatalf("unlocks = %d, want 2", len(unlocks))
	}
	record2, err := store.GetAffinity(ctx, "agent-1", "oracle")
	if err != nil {
		t.Fatalf("affinity: %v", err)
	}
	if record2.SuccessfulMissions != 1 {
		t.Fatalf("affinity = %d, want 1", record2.SuccessfulMissions)
	}
	timeline, err := store.GetTimeline(ctx)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if timeline.TotalShift != 6 || timeline.SuccessfulMissions != 1 {
		t.Fatalf("timeline = %+v", timeline)
	}
	application, err := store.GetRewardApplication(ctx, d.ID)
	if err != nil {
		t.Fatalf("reward application: %v", err)
	}
	if application.TimelinePoints != 600 {
		t.Fatalf("application = %+v", application)
	}

	pending, err := store.ListPendingLoreSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending lore: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != d.ID {
		t.Fatalf("pending lore = %+v", pending)
	}
	attempts, err := store.RecordLoreSyncAttempt(ctx, d.ID, deployment.LoreSync{Status: deployment.LoreSyncPending, LastError: "lore down", UpdatedAt: at})
	if err != nil || attempts != 1 {
		t.Fatalf("failed attempt = %d, %v; want 1", attempts, err)
	}
	attempts, err = store.RecordLoreSyncAttempt(ctx, d.ID, deployment.LoreSync{Status: deployment.LoreSyncSynced, Attempts: 1, UpdatedAt: at})
	if err != nil || attempts != 2 {
		t.Fatalf("synced attempt = %d, %v; want 2", attempts, err)
	}
	pending, err = store.ListPendingLoreSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending lore: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending lore after sync = %d, want 0", len(pending))
	}
}

func TestRecordLoreSyncAttemptCountsConcurrentAttempts(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	d := newDeployment(t, "dep-1", "agent-1", "m1", now, successOutcome())
	if err := store.CreateDeployment(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := deployment.LoreSyncPending
			if i == 0 {
				status = deployment.LoreSyncSynced
			}
			// Every caller passes the same stale snapshot count.
			if _, err := store.RecordLoreSyncAttempt(ctx, d.ID, deployment.LoreSync{Status: status, Attempts: 1, UpdatedAt: now}); err != nil {
				t.Errorf("attempt %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.GetDeployment(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LoreSync.Attempts != attempts {
		t.Fatalf("attempts = %d, want %d", got.LoreSync.Attempts, attempts)
	}
	if got.LoreSync.Status != deployment.LoreSyncSynced || got.LoreSync.LastError != "" {
		t.Fatalf("lore sync = %+v, want synced without error", got.LoreSync)
	}
	if _, err := store.RecordLoreSyncAttempt(ctx, "missing", deployment.LoreSync{Status: deployment.LoreSyncSynced}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing = %v, want ErrNotFound", err)
	}
}

func TestFinalizeFailureAndRetry(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	failedOutcome := resolution.Outcome{Seed: 1, AdjustedRate: 0.2, Roll: 0.9, RewardMultiplier: 1}
	d := newDeployment(t, "dep-1", "agent-1", "m1", now, failedOutcome)
	if err := store.CreateDeployment(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	grant := reward.Grant{TimelinePoints: 100, Experience: 50}
	if err := store.FinalizeDeployment(ctx, finalizeRecord(t, d, grant, d.CompletesAt)); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	completed, err := store.HasCompletedMission(ctx, "agent-1", "m1")
	if err != nil {
		t.Fatalf("has completed: %v", err)
	}
	if completed {
		t.Fatal("failed deployment counted as completed")
	}
	if _, err := store.FindActiveDeployment(ctx, "agent-1", "m1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("find active = %v, want ErrNotFound", err)
	}
	// A failed mission frees the pair for a retry.
	if err := store.CreateDeployment(ctx, newDeployment(t, "dep-2", "agent-1", "m1", now.Add(time.Hour), successOutcome())); err != nil {
		t.Fatalf("retry create: %v", err)
	}

	timeline, err := store.GetTimeline(ctx)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if timeline.TotalShift != 0 || timeline.FailedMissions != 1 {
		t.Fatalf("timeline = %+v", timeline)
	}
	progress, err := store.GetAgentProgress(ctx, "agent-1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.TimelinePoints != 100 || progress.MissionsFailed != 1 {
		t.Fatalf("progress = %+v", progress)
	}
	if _, err := store.GetAffinity(ctx, "agent-1", "oracle"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("affinity = %v, want ErrNotFound", err)
	}
}

func TestConcurrentFinalizeOneWins(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	d := newDeployment(t, "dep-1", "agent-1", "m1", now, successOutcome())
	if err := store.CreateDeployment(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	record := finalizeRecord(t, d, reward.Grant{Success: true, TimelinePoints: 10, LoreFragments: []string{"lore-a"}, TimelineShift: 2}, d.CompletesAt)

	const workers = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.FinalizeDeployment(ctx, record)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, storage.ErrAlreadyFinalized):
			default:
				t.Errorf("finalize: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
	progress, err := store.GetAgentProgress(ctx, "agent-1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.TimelinePoints != 10 {
		t.Fatalf("timeline points = %d, want 10", progress.TimelinePoints)
	}
}

func TestListDueAndAgentDeployments(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	for i, mission := range []string{"m1", "m2", "m3"} {
		d := newDeployment(t, "dep-"+mission, "agent-1", mission, base.Add(time.Duration(i)*time.Minute), successOutcome())
		if err := store.CreateDeployment(ctx, d); err != nil {
			t.Fatalf("create %s: %v", mission, err)
		}
	}

	due, err := store.ListDueDeployments(ctx, base.Add(6*time.Minute), 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 || due[0].ID != "dep-m1" || due[1].ID != "dep-m2" {
		t.Fatalf("due = %+v", due)
	}
	limited, err := store.ListDueDeployments(ctx, base.Add(time.Hour), 1)
	if err != nil {
		t.Fatalf("list due limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited due = %d, want 1", len(limited))
	}

	listed, err := store.ListAgentDeployments(ctx, "agent-1", 10)
	if err != nil {
		t.Fatalf("list agent: %v", err)
	}
	if len(listed) != 3 || listed[0].ID != "dep-m3" {
		t.Fatalf("agent deployments = %+v", listed)
	}
	if _, err := store.ListAgentDeployments(ctx, "agent-1", 0); err == nil {
		t.Fatal("expected error for zero limit")
	}
}

func TestClearDeployment(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	d := newDeployment(t, "dep-1", "agent-1", "m1", now, successOutcome())
	if err := store.CreateDeployment(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	entry := storage.AuditEntry{Actor: "ops", Action: "deployment.clear", TargetID: d.ID, Reason: "stuck", CreatedAt: now}
	if err := store.ClearDeployment(ctx, d.ID, storage.AuditEntry{Action: "deployment.clear"}); err == nil {
		t.Fatal("expected error for missing actor")
	}
	if err := store.ClearDeployment(ctx, d.ID, entry); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.ClearDeployment(ctx, d.ID, entry); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("clear again = %v, want ErrNotFound", err)
	}
	entries, err := store.ListAudit(ctx, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].TargetID != d.ID || entries[0].Reason != "stuck" {
		t.Fatalf("audit entries = %+v", entries)
	}
	if err := store.CreateDeployment(ctx, newDeployment(t, "dep-2", "agent-1", "m1", now, successOutcome())); err != nil {
		t.Fatalf("create after clear: %v", err)
	}
}

func TestClearDeploymentRollsBackWithoutAudit(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	d := newDeployment(t, "dep-1", "agent-1", "m1", now, successOutcome())
	if err := store.CreateDeployment(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.sqlDB.ExecContext(ctx, `DROP TABLE audit_log`); err != nil {
		t.Fatalf("drop audit_log: %v", err)
	}
	entry := storage.AuditEntry{Actor: "ops", Action: "deployment.clear", TargetID: d.ID, CreatedAt: now}
	if err := store.ClearDeployment(ctx, d.ID, entry); err == nil {
		t.Fatal("expected clear to fail without an audit table")
	}
	if _, err := store.GetDeployment(ctx, d.ID); err != nil {
		t.Fatalf("deployment after failed clear: %v", err)
	}
}

func TestCreateDeploymentSeedsAffinity(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	if err := store.CreateDeployment(ctx, newDeployment(t, "dep-1", "agent-1", "m1", now, successOutcome())); err != nil {
		t.Fatalf("create: %v", err)
	}
	record, err := store.GetAffinity(ctx, "agent-1", "oracle")
	if err != nil {
		t.Fatalf("affinity: %v", err)
	}
	if record.SuccessfulMissions != 0 {
		t.Fatalf("successful missions = %d, want 0", record.SuccessfulMissions)
	}

	if _, err := store.sqlDB.ExecContext(ctx, `DROP TABLE affinity`); err != nil {
		t.Fatalf("drop affinity: %v", err)
	}
	if err := store.CreateDeployment(ctx, newDeployment(t, "dep-2", "agent-2", "m1", now, successOutcome())); err == nil {
		t.Fatal("expected create to fail without an affinity table")
	}
	if _, err := store.GetDeployment(ctx, "dep-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deployment after failed create = %v, want ErrNotFound", err)
	}
}

func TestProxim8Directory(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutProxim8(ctx, storage.Proxim8Record{ID: "p8-1", OwnerAgentID: "agent-1", Name: "Nyx", Personality: "analytical"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.PutProxim8(ctx, storage.Proxim8Record{ID: "p8-1", OwnerAgentID: "agent-2", Name: "Nyx", Personality: "chaotic"}); err != nil {
		t.Fatalf("put update: %v", err)
	}
	got, err := store.GetProxim8(ctx, "p8-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OwnerAgentID != "agent-2" || got.Personality != "chaotic" {
		t.Fatalf("proxim8 = %+v", got)
	}
	owned, err := store.ListAgentProxim8s(ctx, "agent-2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(owned) != 1 {
		t.Fatalf("owned = %d, want 1", len(owned))
	}
	if _, err := store.GetProxim8(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing = %v, want ErrNotFound", err)
	}
	if err := store.PutProxim8(ctx, storage.Proxim8Record{ID: "p8-2"}); err == nil {
		t.Fatal("expected error without owner")
	}
}

func TestAuditLog(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	for i, action := range []string{"deployment.clear", "proxim8.register"} {
		if err := store.AppendAudit(ctx, storage.AuditEntry{Actor: "ops", Action: action, TargetID: "t", CreatedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	entries, err := store.ListAudit(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != "proxim8.register" {
		t.Fatalf("entries = %+v", entries)
	}
	if err := store.AppendAudit(ctx, storage.AuditEntry{Action: "x"}); err == nil {
		t.Fatal("expected error without actor")
	}
}
