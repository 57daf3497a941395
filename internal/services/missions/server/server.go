// Package server runs the missions HTTP API next to a gRPC health endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/project-89/89-sub004/internal/platform/errors/i18n"
	"github.com/project-89/89-sub004/internal/platform/timeouts"
	"github.com/project-89/89-sub004/internal/services/missions/api/httpapi"
	"github.com/project-89/89-sub004/internal/services/missions/bootstrap"
)

// RuntimeConfig controls the missions server.
type RuntimeConfig struct {
	HTTPAddr        string
	HealthPort      int
	DBPath          string
	CatalogPath     string
	ArchiveDir      string
	DeployingWindow time.Duration
	JWTSecret       string
	JWTIssuer       string
}

// Run serves until ctx is cancelled or a listener fails.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return errors.New("http address is required")
	}
	auth, err := httpapi.NewAuthenticator([]byte(cfg.JWTSecret), cfg.JWTIssuer, nil)
	if err != nil {
		return fmt.Errorf("configure authentication: %w", err)
	}

	rt, err := bootstrap.Open(ctx, bootstrap.Options{
		DBPath:          cfg.DBPath,
		CatalogPath:     cfg.CatalogPath,
		ArchiveDir:      cfg.ArchiveDir,
		DeployingWindow: cfg.DeployingWindow,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			log.Printf("close missions runtime: %v", closeErr)
		}
	}()

	handler, err := httpapi.NewHandler(httpapi.Config{Engine: rt.Engine, Auth: auth, Messages: i18n.Default()})
	if err != nil {
		return err
	}
	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on http %s: %w", cfg.HTTPAddr, err)
	}
	healthListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		_ = httpListener.Close()
		return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
	}

	httpServer := &http.Server{Handler: handler, ReadHeaderTimeout: timeouts.ReadHeader}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("missions.http", grpc_health_v1.HealthCheckResponse_SERVING)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("missions http listening at %v", httpListener.Addr())
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		log.Printf("missions health listening at %v", healthListener.Addr())
		if err := grpcServer.Serve(healthListener); err != nil {
			return fmt.Errorf("serve health: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		healthServer.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})
	return group.Wait()
}
