package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/project-89/89-sub004/internal/services/missions/bootstrap"
	workersqlite "github.com/project-89/89-sub004/internal/services/worker/storage/sqlite"
)

// RuntimeConfig controls worker startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	Port            int
	MissionsDBPath  string
	CatalogPath     string
	ArchiveDir      string
	DBPath          string
	Consumer        string
	PollInterval    time.Duration
	BatchSize       int
	Concurrency     int
	DeployingWindow time.Duration
}

const (
	defaultWorkerPort = 8089
	defaultWorkerDB   = "data/worker.db"
	defaultMissionsDB = "data/missions.db"
)

// Run starts worker runtime dependencies and the background sweep loop.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultWorkerPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultWorkerDB
	}
	if strings.TrimSpace(cfg.MissionsDBPath) == "" {
		cfg.MissionsDBPath = defaultMissionsDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create worker storage dir: %w", err)
		}
	}

	workerStore, err := workersqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open worker sqlite store: %w", err)
	}
	defer func() {
		if closeErr := workerStore.Close(); closeErr != nil {
			log.Printf("close worker sqlite store: %v", closeErr)
		}
	}()

	missions, err := bootstrap.Open(ctx, bootstrap.Options{
		DBPath:          cfg.MissionsDBPath,
		CatalogPath:     cfg.CatalogPath,
		ArchiveDir:      cfg.ArchiveDir,
		DeployingWindow: cfg.DeployingWindow,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := missions.Close(); closeErr != nil {
			log.Printf("close missions runtime: %v", closeErr)
		}
	}()

	workerLoop := New(
		missions.Engine,
		workerStore,
		Config{
			Consumer:     cfg.Consumer,
			PollInterval: cfg.PollInterval,
			BatchSize:    cfg.BatchSize,
			Concurrency:  cfg.Concurrency,
		},
		nil,
	)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on worker port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("worker.sweep", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("worker server listening at %v", listener.Addr())
	return workerLoop.Run(ctx)
}
