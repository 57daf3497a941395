// Package bootstrap assembles a mission engine from its on-disk
// dependencies: the SQLite store, the catalog document and the audit
// archive. Every binary that serves missions starts here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/project-89/89-sub004/internal/services/missions/app"
	"github.com/project-89/89-sub004/internal/services/missions/audit"
	"github.com/project-89/89-sub004/internal/services/missions/catalogfs"
	storagesqlite "github.com/project-89/89-sub004/internal/services/missions/storage/sqlite"
)

// Options locate the engine's dependencies.
type Options struct {
	DBPath          string
	CatalogPath     string
	ArchiveDir      string
	DeployingWindow time.Duration
	Clock           func() time.Time
	TracerProvider  trace.TracerProvider
	Logf            func(format string, args ...any)
}

// Runtime owns an engine and the resources behind it.
type Runtime struct {
	Engine  *app.Engine
	Store   *storagesqlite.Store
	Archive *audit.Archive
	logf    func(format string, args ...any)
}

// Open builds a Runtime. Callers must Close it.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	if strings.TrimSpace(opts.DBPath) == "" {
		return nil, errors.New("missions database path is required")
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	if dir := filepath.Dir(opts.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create missions storage dir: %w", err)
		}
	}

	cat, err := catalogfs.LoadFile(opts.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load mission catalog: %w", err)
	}
	store, err := storagesqlite.Open(ctx, opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open missions sqlite store: %w", err)
	}

	rt := &Runtime{Store: store, logf: opts.Logf}
	var sink app.AuditSink = app.StoreAudit{Store: store}
	if dir := strings.TrimSpace(opts.ArchiveDir); dir != "" {
		rt.Archive = audit.NewArchive(dir, "audit", opts.Clock)
		sink = audit.Recorder{Store: store, Archive: rt.Archive, Logf: opts.Logf}
	}

	rt.Engine, err = app.NewEngine(app.Config{
		Catalog:         cat,
		Store:           store,
		Audit:           sink,
		Clock:           opts.Clock,
		DeployingWindow: opts.DeployingWindow,
		TracerProvider:  opts.TracerProvider,
		Logf:            opts.Logf,
	})
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("build mission engine: %w", err)
	}
	opts.Logf("mission engine ready missions=%d db=%s", cat.Len(), opts.DBPath)
	return rt, nil
}

// Close flushes the audit archive and closes the store.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Archive != nil {
		if err := r.Archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audit archive: %w", err))
		}
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close missions store: %w", err))
		}
	}
	return errors.Join(errs...)
}
