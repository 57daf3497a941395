package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

const (
	AuditActionClearDeployment = "deployment.clear"
	AuditActionRegisterProxim8 = "proxim8.register"
)

// ClearRequest asks an operator to remove a deployment.
type ClearRequest struct {
	DeploymentID string
	Actor        string
	Reason       string
}

// ClearDeployment deletes a deployment so the agent may deploy on the
// mission again. Rewards already applied stay applied. This is a privileged
// path, not a state transition; the delete and its audit row commit together.
func (e *Engine) ClearDeployment(ctx context.Context, req ClearRequest) error {
	req.DeploymentID = strings.TrimSpace(req.DeploymentID)
	req.Actor = strings.TrimSpace(req.Actor)
	if req.Actor == "" {
		return apperrors.New(apperrors.CodePermissionDenied, "clear deployment requires an actor")
	}
	d, err := e.loadDeployment(ctx, req.DeploymentID)
	if err != nil {
		return err
	}
	details, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal cleared deployment: %w", err)
	}
	entry := storage.AuditEntry{
		Actor:     req.Actor,
		Action:    AuditActionClearDeployment,
		TargetID:  d.ID,
		Reason:    req.Reason,
		Details:   string(details),
		CreatedAt: e.Now(),
	}
	if err := e.store.ClearDeployment(ctx, d.ID, entry); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFoundError("deployment", d.ID)
		}
		return fmt.Errorf("clear deployment: %w", err)
	}
	e.audit.Committed(entry)
	e.logf("deployment cleared id=%s agent=%s mission=%s status=%s actor=%s", d.ID, d.AgentID, d.MissionID, d.Status(), req.Actor)
	return nil
}

// RegisterProxim8Request records verified Proxim8 ownership.
type RegisterProxim8Request struct {
	Actor       string
	Proxim8ID   string
	AgentID     string
	Name        string
	Personality string
}

// RegisterProxim8 stores a Proxim8 in the ownership directory.
func (e *Engine) RegisterProxim8(ctx context.Context, req RegisterProxim8Request) error {
	req.Actor = strings.TrimSpace(req.Actor)
	if req.Actor == "" {
		return apperrors.New(apperrors.CodePermissionDenied, "register proxim8 requires an actor")
	}
	record := storage.Proxim8Record{
		ID:           strings.TrimSpace(req.Proxim8ID),
		OwnerAgentID: strings.TrimSpace(req.AgentID),
		Name:         strings.TrimSpace(req.Name),
		Personality:  strings.ToLower(strings.TrimSpace(req.Personality)),
		UpdatedAt:    e.Now(),
	}
	if record.ID == "" || record.OwnerAgentID == "" {
		return apperrors.WithMetadata(apperrors.CodeDeployRequestInvalid, "proxim8 id and agent id are required", map[string]string{"field": "proxim8Id"})
	}
	if err := e.store.PutProxim8(ctx, record); err != nil {
		return fmt.Errorf("register proxim8: %w", err)
	}
	if err := e.audit.Record(ctx, storage.AuditEntry{
		Actor:     req.Actor,
		Action:    AuditActionRegisterProxim8,
		TargetID:  record.ID,
		Details:   fmt.Sprintf(`{"agentId":%q,"personality":%q}`, record.OwnerAgentID, record.Personality),
		CreatedAt: record.UpdatedAt,
	}); err != nil {
		return fmt.Errorf("audit register proxim8: %w", err)
	}
	return nil
}

// ListAgentProxim8s lists the Proxim8s registered to an agent.
func (e *Engine) ListAgentProxim8s(ctx context.Context, agentID string) ([]storage.Proxim8Record, error) {
	records, err := e.store.ListAgentProxim8s(ctx, strings.TrimSpace(agentID))
	if err != nil {
		return nil, fmt.Errorf("list proxim8s: %w", err)
	}
	return records, nil
}

// AuditLog lists recent administrative actions.
func (e *Engine) AuditLog(ctx context.Context, limit int) ([]storage.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	entries, err := e.store.ListAudit(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return entries, nil
}
