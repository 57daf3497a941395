// Package httpapi exposes the mission engine over JSON/HTTP. Agent routes
// require a bearer token; error bodies are localized from Accept-Language.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
	"github.com/project-89/89-sub004/internal/platform/errors/i18n"
	"github.com/project-89/89-sub004/internal/platform/requestctx"
	"github.com/project-89/89-sub004/internal/services/missions/app"
)

const maxBodyBytes = 16 << 10

// Config wires the HTTP surface.
type Config struct {
	Engine   *app.Engine
	Auth     *Authenticator
	Messages *i18n.Bundle
	Logf     func(format string, args ...any)
}

type handler struct {
	engine   *app.Engine
	auth     *Authenticator
	messages *i18n.Bundle
	logf     func(format string, args ...any)
}

// NewHandler returns the routed HTTP handler.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if cfg.Messages == nil {
		cfg.Messages = i18n.Default()
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	h := &handler{engine: cfg.Engine, auth: cfg.Auth, messages: cfg.Messages, logf: cfg.Logf}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /v1/missions", h.listMissions)
	mux.HandleFunc("GET /v1/missions/{missionID}", h.getMission)
	mux.HandleFunc("GET /v1/coordinators", h.listCoordinators)
	mux.HandleFunc("GET /v1/timeline", h.timeline)
	mux.Handle("POST /v1/deployments", h.agent(h.deploy))
	mux.Handle("GET /v1/deployments/{deploymentID}", h.agent(h.getDeployment))
	mux.Handle("GET /v1/agents/me/deployments", h.agent(h.listDeployments))
	mux.Handle("GET /v1/agents/me/progress", h.agent(h.progress))
	mux.Handle("GET /v1/agents/me/affinity/{coordinatorID}", h.agent(h.affinity))
	return mux, nil
}

// agent authenticates the bearer token and stores the agent id on the
// request context.
func (h *handler) agent(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agentID, err := h.auth.AgentID(r.Header.Get("Authorization"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(requestctx.WithAgentID(r.Context(), agentID)))
	})
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listMissions(w http.ResponseWriter, _ *http.Request) {
	missions := h.engine.ListMissions()
	views := make([]missionView, 0, len(missions))
	for _, m := range missions {
		views = append(views, newMissionView(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"missions": views})
}

func (h *handler) getMission(w http.ResponseWriter, r *http.Request) {
	mission, err := h.engine.GetMission(r.PathValue("missionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMissionView(mission))
}

func (h *handler) listCoordinators(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"coordinators": h.engine.ListCoordinators()})
}

func (h *handler) timeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := h.engine.Timeline(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTimelineView(timeline))
}

type deployBody struct {
	MissionID     string `json:"missionId"`
	Proxim8ID     string `json:"proxim8Id"`
	Approach      string `json:"approach"`
	CoordinatorID string `json:"coordinatorId"`
}

func (h *handler) deploy(w http.ResponseWriter, r *http.Request) {
	agentID := requestctx.AgentIDFromContext(r.Context())
	var body deployBody
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		h.writeError(w, r, apperrors.WithMetadata(
			apperrors.CodeDeployRequestInvalid,
			fmt.Sprintf("decode deploy request: %v", err),
			map[string]string{"field": "body"},
		))
		return
	}
	d, err := h.engine.Deploy(r.Context(), app.DeployRequest{
		AgentID:       agentID,
		MissionID:     body.MissionID,
		Proxim8ID:     body.Proxim8ID,
		Approach:      body.Approach,
		CoordinatorID: body.CoordinatorID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/deployments/"+d.ID)
	writeJSON(w, http.StatusCreated, newDeploymentView(d))
}

func (h *handler) getDeployment(w http.ResponseWriter, r *http.Request) {
	agentID := requestctx.AgentIDFromContext(r.Context())
	view, err := h.engine.GetAgentStatus(r.Context(), agentID, r.PathValue("deploymentID"), h.engine.Now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusView(view))
}

func (h *handler) listDeployments(w http.ResponseWriter, r *http.Request) {
	agentID := requestctx.AgentIDFromContext(r.Context())
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, r, apperrors.WithMetadata(apperrors.CodeDeployRequestInvalid, "limit must be a non-negative integer", map[string]string{"field": "limit"}))
			return
		}
		limit = parsed
	}
	deployments, err := h.engine.ListAgentDeployments(r.Context(), agentID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]deploymentView, 0, len(deployments))
	for _, d := range deployments {
		views = append(views, newDeploymentView(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"deployments": views})
}

func (h *handler) progress(w http.ResponseWriter, r *http.Request) {
	agentID := requestctx.AgentIDFromContext(r.Context())
	profile, err := h.engine.AgentProfile(r.Context(), agentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProgressView(profile))
}

func (h *handler) affinity(w http.ResponseWriter, r *http.Request) {
	agentID := requestctx.AgentIDFromContext(r.Context())
	record, err := h.engine.Affinity(r.Context(), agentID, r.PathValue("coordinatorID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAffinityView(record))
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     apperrors.Code    `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logf("http %s %s: %v", r.Method, r.URL.Path, err)
	}
	metadata := apperrors.MetadataOf(err)
	locale := h.messages.Match(r.Header.Get("Accept-Language"))
	w.Header().Set("Content-Language", locale.String())
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:     code,
		Message:  h.messages.Format(locale, string(code), metadata),
		Metadata: metadata,
	}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
