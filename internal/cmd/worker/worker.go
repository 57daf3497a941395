// Package worker parses worker command flags and launches the sweep worker.
package worker

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/project-89/89-sub004/internal/platform/cmd"
	workerserver "github.com/project-89/89-sub004/internal/services/worker/app"
)

// Config holds worker command configuration.
type Config struct {
	Port            int           `env:"PROXIM8_WORKER_PORT" envDefault:"8089"`
	MissionsDBPath  string        `env:"PROXIM8_MISSIONS_DB_PATH" envDefault:"data/missions.db"`
	CatalogPath     string        `env:"PROXIM8_MISSIONS_CATALOG_PATH"`
	ArchiveDir      string        `env:"PROXIM8_MISSIONS_AUDIT_ARCHIVE_DIR"`
	DeployingWindow time.Duration `env:"PROXIM8_MISSIONS_DEPLOYING_WINDOW" envDefault:"0s"`
	DBPath          string        `env:"PROXIM8_WORKER_DB_PATH" envDefault:"data/worker.db"`
	Consumer        string        `env:"PROXIM8_WORKER_CONSUMER" envDefault:"missions-worker"`
	PollInterval    time.Duration `env:"PROXIM8_WORKER_POLL_INTERVAL" envDefault:"30s"`
	BatchSize       int           `env:"PROXIM8_WORKER_BATCH_SIZE" envDefault:"100"`
	Concurrency     int           `env:"PROXIM8_WORKER_CONCURRENCY" envDefault:"4"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The worker health gRPC server port")
	fs.StringVar(&cfg.MissionsDBPath, "missions-db-path", cfg.MissionsDBPath, "The missions SQLite database path")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Mission catalog YAML file (embedded catalog when empty)")
	fs.StringVar(&cfg.ArchiveDir, "audit-archive-dir", cfg.ArchiveDir, "Directory for compressed audit archives")
	fs.DurationVar(&cfg.DeployingWindow, "deploying-window", cfg.DeployingWindow, "How long new deployments report the deploying status")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The worker SQLite database path")
	fs.StringVar(&cfg.Consumer, "consumer", cfg.Consumer, "Sweep consumer name recorded with each run")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Sweep interval")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Maximum due deployments finalized per sweep")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Concurrent finalizations per sweep")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(ctx context.Context) error {
		return workerserver.Run(ctx, workerserver.RuntimeConfig{
			Port:            cfg.Port,
			MissionsDBPath:  cfg.MissionsDBPath,
			CatalogPath:     cfg.CatalogPath,
			ArchiveDir:      cfg.ArchiveDir,
			DBPath:          cfg.DBPath,
			Consumer:        cfg.Consumer,
			PollInterval:    cfg.PollInterval,
			BatchSize:       cfg.BatchSize,
			Concurrency:     cfg.Concurrency,
			DeployingWindow: cfg.DeployingWindow,
		})
	})
}
