package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
	"github.com/project-89/89-sub004/internal/services/missions/domain/deployment"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

// Proxim8 is a verified (agent, Proxim8) pair.
type Proxim8 struct {
	ID          string
	AgentID     string
	Name        string
	Personality string
}

// Proxim8Directory verifies that an agent owns a Proxim8.
type Proxim8Directory interface {
	// Proxim8 returns the Proxim8 when agentID owns it and a NOT_FOUND
	// error otherwise.
	Proxim8(ctx context.Context, agentID, proxim8ID string) (Proxim8, error)
}

// NarrativeSource supplies generated narrative text. Missing text is normal.
type NarrativeSource interface {
	Narrative(ctx context.Context, key deployment.NarrativeKey) (string, bool)
}

// LoreStore receives unlocked lore fragments. UnlockFragments must be
// idempotent; it is retried until it succeeds.
type LoreStore interface {
	UnlockFragments(ctx context.Context, agentID string, fragmentIDs []string) error
}

// AuditSink records privileged administrative actions.
type AuditSink interface {
	Record(ctx context.Context, entry storage.AuditEntry) error
	// Committed receives entries the store already wrote inside the action's
	// own transaction. It must not fail the action.
	Committed(entry storage.AuditEntry)
}

// LocalLore treats the local lore_unlocks ledger as authoritative.
type LocalLore struct{}

// UnlockFragments does nothing.
func (LocalLore) UnlockFragments(context.Context, string, []string) error { return nil }

// StoreDirectory resolves Proxim8 ownership from the registered directory.
type StoreDirectory struct {
	Store storage.Proxim8Store
}

// Proxim8 implements Proxim8Directory.
func (d StoreDirectory) Proxim8(ctx context.Context, agentID, proxim8ID string) (Proxim8, error) {
	if d.Store == nil {
		return Proxim8{}, fmt.Errorf("proxim8 directory store is not configured")
	}
	record, err := d.Store.GetProxim8(ctx, proxim8ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Proxim8{}, notFoundError("proxim8", proxim8ID)
		}
		return Proxim8{}, fmt.Errorf("load proxim8: %w", err)
	}
	if !strings.EqualFold(record.OwnerAgentID, agentID) {
		// Unowned Proxim8s are indistinguishable from unknown ones.
		return Proxim8{}, notFoundError("proxim8", proxim8ID)
	}
	return Proxim8{
		ID:          record.ID,
		AgentID:     record.OwnerAgentID,
		Name:        record.Name,
		Personality: record.Personality,
	}, nil
}

// StoreAudit records audit entries in the missions store only.
type StoreAudit struct {
	Store storage.AuditStore
}

// Record implements AuditSink.
func (a StoreAudit) Record(ctx context.Context, entry storage.AuditEntry) error {
	return a.Store.AppendAudit(ctx, entry)
}

// Committed implements AuditSink.
func (StoreAudit) Committed(storage.AuditEntry) {}

func notFoundError(resource, id string) error {
	return apperrors.WithMetadata(
		apperrors.CodeNotFound,
		fmt.Sprintf("%s %q not found", resource, id),
		map[string]string{"resource": resource, "id": id},
	)
}
