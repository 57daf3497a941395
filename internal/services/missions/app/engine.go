// Package app orchestrates mission deployments: it validates and resolves
// deploy requests, reveals phases over time, finalizes due deployments and
// answers status queries. All mutable state lives behind storage.Store, so
// any number of Engine instances may serve the same database.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/project-89/89-sub004/internal/platform/id"
	"github.com/project-89/89-sub004/internal/random"
	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

const tracerName = "github.com/project-89/89-sub004/internal/services/missions/app"

// Config wires an Engine. Catalog and Store are required.
type Config struct {
	Catalog         *catalog.Catalog
	Store           storage.Store
	Proxim8s        Proxim8Directory
	Lore            LoreStore
	Narratives      NarrativeSource
	Audit           AuditSink
	Seed            random.SeedFunc
	NewID           func() (string, error)
	Clock           func() time.Time
	DeployingWindow time.Duration
	TracerProvider  trace.TracerProvider
	Logf            func(format string, args ...any)
}

// Engine runs deployments against a catalog and a store.
type Engine struct {
	catalog         *catalog.Catalog
	store           storage.Store
	proxim8s        Proxim8Directory
	narratives      NarrativeSource
	audit           AuditSink
	distributor     *Distributor
	seed            random.SeedFunc
	newID           func() (string, error)
	clock           func() time.Time
	deployingWindow time.Duration
	tracer          trace.Tracer
	logf            func(format string, args ...any)
}

// NewEngine builds an Engine, filling optional collaborators with defaults.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.DeployingWindow < 0 {
		return nil, fmt.Errorf("deploying window must not be negative: %v", cfg.DeployingWindow)
	}
	if cfg.Proxim8s == nil {
		cfg.Proxim8s = StoreDirectory{Store: cfg.Store}
	}
	if cfg.Lore == nil {
		cfg.Lore = LocalLore{}
	}
	if cfg.Audit == nil {
		cfg.Audit = StoreAudit{Store: cfg.Store}
	}
	if cfg.Seed == nil {
		cfg.Seed = random.NewSeed
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Engine{
		catalog:         cfg.Catalog,
		store:           cfg.Store,
		proxim8s:        cfg.Proxim8s,
		narratives:      cfg.Narratives,
		audit:           cfg.Audit,
		distributor:     &Distributor{store: cfg.Store, lore: cfg.Lore, clock: cfg.Clock, logf: cfg.Logf},
		seed:            cfg.Seed,
		newID:           cfg.NewID,
		clock:           cfg.Clock,
		deployingWindow: cfg.DeployingWindow,
		tracer:          cfg.TracerProvider.Tracer(tracerName),
		logf:            cfg.Logf,
	}, nil
}

// Catalog returns the engine's mission catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock().UTC()
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
