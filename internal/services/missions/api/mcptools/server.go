package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/project-89/89-sub004/internal/platform/timeouts"
	"github.com/project-89/89-sub004/internal/services/missions/app"
)

const (
	serverName    = "Proxim8 Missions MCP"
	serverVersion = "0.1.0"
)

// NewServer registers every mission tool on a new MCP server.
func NewServer(engine *app.Engine) (*mcp.Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(server, MissionListTool(), MissionListHandler(engine))
	mcp.AddTool(server, MissionGetTool(), MissionGetHandler(engine))
	mcp.AddTool(server, MissionDeployTool(), MissionDeployHandler(engine))
	mcp.AddTool(server, DeploymentStatusTool(), DeploymentStatusHandler(engine))
	mcp.AddTool(server, AgentProfileTool(), AgentProfileHandler(engine))
	mcp.AddTool(server, TimelineTool(), TimelineHandler(engine))
	return server, nil
}

// Run serves the tools on transport until ctx is cancelled or the client
// disconnects.
func Run(ctx context.Context, engine *app.Engine, transport mcp.Transport) error {
	server, err := NewServer(engine)
	if err != nil {
		return err
	}
	if err := server.Run(ctx, transport); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// RunHTTP serves the tools over streamable HTTP at addr until ctx ends.
func RunHTTP(ctx context.Context, engine *app.Engine, addr string) error {
	server, err := NewServer(engine)
	if err != nil {
		return err
	}
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	httpServer := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: timeouts.ReadHeader}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("mcp http listening at %s", addr)
		serveErr <- httpServer.ListenAndServe()
	}()
	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve MCP http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown MCP http: %w", err)
		}
		return nil
	}
}
