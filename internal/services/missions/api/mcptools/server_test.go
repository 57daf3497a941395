package mcptools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/project-89/89-sub004/internal/random"
	"github.com/project-89/89-sub004/internal/services/missions/app"
	"github.com/project-89/89-sub004/internal/services/missions/catalogfs"
	storagesqlite "github.com/project-89/89-sub004/internal/services/missions/storage/sqlite"
)

func newEngine(t *testing.T, now *time.Time) *app.Engine {
	t.Helper()
	cat, err := catalogfs.LoadDefault()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	store, err := storagesqlite.Open(context.Background(), filepath.Join(t.TempDir(), "missions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	engine, err := app.NewEngine(app.Config{
		Catalog: cat,
		Store:   store,
		Seed:    random.Fixed(42),
		Clock:   func() time.Time { return *now },
		Logf:    t.Logf,
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	if err := engine.RegisterProxim8(context.Background(), app.RegisterProxim8Request{
		Actor: "test", Proxim8ID: "p8-1", AgentID: "agent-1", Personality: "analytical",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return engine
}

func connect(t *testing.T, engine *app.Engine) *mcp.ClientSession {
	t.Helper()
	server, err := NewServer(engine)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func call[T any](t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (T, *mcp.CallToolResult) {
	t.Helper()
	var out T
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if res.IsError {
		return out, res
	}
	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal %s output: %v", name, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s output %s: %v", name, raw, err)
	}
	return out, res
}

func TestToolsAreRegistered(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	session := connect(t, newEngine(t, &now))

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	want := map[string]bool{
		"mission_list": false, "mission_get": false, "mission_deploy": false,
		"deployment_status": false, "agent_profile": false, "timeline_get": false,
	}
	for _, tool := range res.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("tool %s not registered", name)
		}
	}
}

func TestDeployAndPollThroughTools(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := newEngine(t, &now)
	session := connect(t, engine)

	list, _ := call[MissionListResult](t, session, "mission_list", map[string]any{})
	if len(list.Missions) == 0 {
		t.Fatal("expected catalog missions")
	}
	first := list.Missions[0]

	detail, _ := call[MissionGetResult](t, session, "mission_get", map[string]any{"mission_id": first.ID})
	if len(detail.Approaches) != 3 || len(detail.Phases) == 0 {
		t.Fatalf("detail = %+v", detail)
	}

	deployed, res := call[DeploymentResult](t, session, "mission_deploy", map[string]any{
		"agent_id": "agent-1", "mission_id": first.ID, "proxim8_id": "p8-1", "approach": "low",
	})
	if res.IsError {
		t.Fatalf("deploy failed: %+v", res.Content)
	}
	if deployed.Status != "in-progress" || deployed.Success != nil {
		t.Fatalf("deployed = %+v", deployed)
	}

	_, res = call[DeploymentResult](t, session, "mission_deploy", map[string]any{
		"agent_id": "agent-1", "mission_id": first.ID, "proxim8_id": "p8-1", "approach": "low",
	})
	if !res.IsError {
		t.Fatal("second deploy should be a tool error")
	}

	now = now.Add(time.Duration(first.DurationMs) * time.Millisecond)
	status, _ := call[DeploymentResult](t, session, "deployment_status", map[string]any{"deployment_id": deployed.DeploymentID})
	if status.Success == nil || (status.Status != "completed" && status.Status != "failed") {
		t.Fatalf("status = %+v", status)
	}

	profile, _ := call[AgentProfileResult](t, session, "agent_profile", map[string]any{"agent_id": "agent-1"})
	if profile.TimelinePoints != status.TimelinePoints {
		t.Fatalf("profile points = %d, want %d", profile.TimelinePoints, status.TimelinePoints)
	}

	timeline, _ := call[TimelineResult](t, session, "timeline_get", map[string]any{})
	if timeline.SuccessfulMissions+timeline.FailedMissions != 1 {
		t.Fatalf("timeline = %+v", timeline)
	}
}

func TestUnknownMissionIsToolError(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	session := connect(t, newEngine(t, &now))
	_, res := call[MissionGetResult](t, session, "mission_get", map[string]any{"mission_id": "nope"})
	if !res.IsError {
		t.Fatal("expected tool error for unknown mission")
	}
}
