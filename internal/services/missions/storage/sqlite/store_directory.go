package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

// PutProxim8 registers or updates a Proxim8 and its owner.
func (s *Store) PutProxim8(ctx context.Context, record storage.Proxim8Record) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.ID = strings.TrimSpace(record.ID)
	record.OwnerAgentID = strings.TrimSpace(record.OwnerAgentID)
	if record.ID == "" {
		return fmt.Errorf("proxim8 id is required")
	}
	if record.OwnerAgentID == "" {
		return fmt.Errorf("owner agent id is required")
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO proxim8s (id, owner_agent_id, name, personality, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	owner_agent_id = excluded.owner_agent_id,
	name = excluded.name,
	personality = excluded.personality,
	updated_at = excluded.updated_at
`, record.ID, record.OwnerAgentID, record.Name, record.Personality, toMillis(record.UpdatedAt)); err != nil {
		return fmt.Errorf("put proxim8: %w", err)
	}
	return nil
}

// GetProxim8 loads a Proxim8 by id.
func (s *Store) GetProxim8(ctx context.Context, id string) (storage.Proxim8Record, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Proxim8Record{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, owner_agent_id, name, personality, updated_at
FROM proxim8s
WHERE id = ?
`, id)
	record, err := scanProxim8(row)
	if err != nil {
		return storage.Proxim8Record{}, notFound(err)
	}
	return record, nil
}

// ListAgentProxim8s lists the Proxim8s owned by an agent.
func (s *Store) ListAgentProxim8s(ctx context.Context, agentID string) ([]storage.Proxim8Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, owner_agent_id, name, personality, updated_at
FROM proxim8s
WHERE owner_agent_id = ?
ORDER BY id
`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list proxim8s: %w", err)
	}
	defer rows.Close()

	var records []storage.Proxim8Record
	for rows.Next() {
		record, err := scanProxim8(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proxim8: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proxim8s: %w", err)
	}
	return records, nil
}

func scanProxim8(row scanner) (storage.Proxim8Record, error) {
	var (
		record    storage.Proxim8Record
		updatedAt int64
	)
	if err := row.Scan(&record.ID, &record.OwnerAgentID, &record.Name, &record.Personality, &updatedAt); err != nil {
		return storage.Proxim8Record{}, err
	}
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// AppendAudit appends one administrative audit entry.
func (s *Store) AppendAudit(ctx context.Context, entry storage.AuditEntry) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	entry, err := normalizeAudit(entry)
	if err != nil {
		return err
	}
	return insertAudit(ctx, s.sqlDB, entry)
}

func normalizeAudit(entry storage.AuditEntry) (storage.AuditEntry, error) {
	entry.Actor = strings.TrimSpace(entry.Actor)
	entry.Action = strings.TrimSpace(entry.Action)
	if entry.Actor == "" {
		return entry, fmt.Errorf("audit actor is required")
	}
	if entry.Action == "" {
		return entry, fmt.Errorf("audit action is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return entry, nil
}

func insertAudit(ctx context.Context, db execer, entry storage.AuditEntry) error {
	if _, err := db.ExecContext(ctx, `
INSERT INTO audit_log (actor, action, target_id, reason, details, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, entry.Actor, entry.Action, entry.TargetID, entry.Reason, entry.Details, toMillis(entry.CreatedAt)); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit lists newest-first audit entries.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]storage.AuditEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, actor, action, target_id, reason, details, created_at
FROM audit_log
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	entries := make([]storage.AuditEntry, 0, limit)
	for rows.Next() {
		var (
			entry     storage.AuditEntry
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.TargetID, &entry.Reason, &entry.Details, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit: %w", err)
	}
	return entries, nil
}
