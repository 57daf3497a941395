// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	entrypoint "github.com/project-89/89-sub004/internal/platform/cmd"
	"github.com/project-89/89-sub004/internal/services/missions/api/mcptools"
	"github.com/project-89/89-sub004/internal/services/missions/bootstrap"
)

// Config holds MCP command configuration.
type Config struct {
	DBPath      string `env:"PROXIM8_MISSIONS_DB_PATH"            envDefault:"data/missions.db"`
	CatalogPath string `env:"PROXIM8_MISSIONS_CATALOG_PATH"`
	ArchiveDir  string `env:"PROXIM8_MISSIONS_AUDIT_ARCHIVE_DIR"`
	HTTPAddr    string `env:"PROXIM8_MCP_HTTP_ADDR"               envDefault:"localhost:8081"`
	Transport   string `env:"PROXIM8_MCP_TRANSPORT"               envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The missions SQLite database path")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Mission catalog YAML file (embedded catalog when empty)")
	fs.StringVar(&cfg.ArchiveDir, "audit-archive-dir", cfg.ArchiveDir, "Directory for compressed audit archives")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if cfg.Transport != "stdio" && cfg.Transport != "http" {
		return Config{}, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		rt, err := bootstrap.Open(ctx, bootstrap.Options{
			DBPath:      cfg.DBPath,
			CatalogPath: cfg.CatalogPath,
			ArchiveDir:  cfg.ArchiveDir,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.Close(); err != nil {
				log.Printf("close missions runtime: %v", err)
			}
		}()

		if cfg.Transport == "http" {
			return mcptools.RunHTTP(ctx, rt.Engine, cfg.HTTPAddr)
		}
		return mcptools.Run(ctx, rt.Engine, &sdkmcp.StdioTransport{})
	})
}
