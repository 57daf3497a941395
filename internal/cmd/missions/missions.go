// Package missions parses missions server flags and launches the HTTP API.
package missions

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/project-89/89-sub004/internal/platform/cmd"
	missionsserver "github.com/project-89/89-sub004/internal/services/missions/server"
)

// Config holds missions server configuration.
type Config struct {
	HTTPAddr        string        `env:"PROXIM8_MISSIONS_HTTP_ADDR" envDefault:":8080"`
	HealthPort      int           `env:"PROXIM8_MISSIONS_HEALTH_PORT" envDefault:"8082"`
	DBPath          string        `env:"PROXIM8_MISSIONS_DB_PATH" envDefault:"data/missions.db"`
	CatalogPath     string        `env:"PROXIM8_MISSIONS_CATALOG_PATH"`
	ArchiveDir      string        `env:"PROXIM8_MISSIONS_AUDIT_ARCHIVE_DIR"`
	DeployingWindow time.Duration `env:"PROXIM8_MISSIONS_DEPLOYING_WINDOW" envDefault:"0s"`
	JWTSecret       string        `env:"PROXIM8_MISSIONS_JWT_SECRET"`
	JWTIssuer       string        `env:"PROXIM8_MISSIONS_JWT_ISSUER"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The HTTP API listen address")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The gRPC health server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The missions SQLite database path")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Mission catalog YAML file (embedded catalog when empty)")
	fs.StringVar(&cfg.ArchiveDir, "audit-archive-dir", cfg.ArchiveDir, "Directory for compressed audit archives")
	fs.DurationVar(&cfg.DeployingWindow, "deploying-window", cfg.DeployingWindow, "How long new deployments report the deploying status")
	fs.StringVar(&cfg.JWTIssuer, "jwt-issuer", cfg.JWTIssuer, "Required JWT issuer (any issuer when empty)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the missions server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMissions, func(ctx context.Context) error {
		return missionsserver.Run(ctx, missionsserver.RuntimeConfig{
			HTTPAddr:        cfg.HTTPAddr,
			HealthPort:      cfg.HealthPort,
			DBPath:          cfg.DBPath,
			CatalogPath:     cfg.CatalogPath,
			ArchiveDir:      cfg.ArchiveDir,
			DeployingWindow: cfg.DeployingWindow,
			JWTSecret:       cfg.JWTSecret,
			JWTIssuer:       cfg.JWTIssuer,
		})
	})
}
