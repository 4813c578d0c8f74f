// Package app assembles the service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"docqa/internal/agent"
	"docqa/internal/api"
	"docqa/internal/config"
	"docqa/internal/ingest"
	"docqa/internal/memory"
	"docqa/internal/providers"
	"docqa/internal/storage"
	"docqa/internal/vector"
	"docqa/internal/workflows"

	tclient "go.temporal.io/sdk/client"
)

type App struct {
	Cfg      config.Config
	DB       *storage.DB
	Gateway  *providers.Gateway
	Indexer  *ingest.Indexer
	Memory   *memory.Memory
	Pipeline *agent.Pipeline
	Temporal tclient.Client
	Starter  *workflows.Starter

	closers []func() error
}

type options struct {
	temporal   bool
	ingestOnly bool
}

type Option func(*options)

// WithTemporal dials the workflow engine when an address is configured.
func WithTemporal() Option {
	return func(o *options) { o.temporal = true }
}

// IngestOnly wires the indexing path alone. Conversation memory and the
// query pipeline stay nil, so the memory backend is never opened.
func IngestOnly() Option {
	return func(o *options) { o.ingestOnly = true }
}

// New connects the configured backends.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	a.Gateway = providers.NewGateway(pm, cfg)

	var (
		schema   ingest.SchemaEnsurer
		writer   ingest.ChunkWriter
		backend  vector.Backend
		pgSchema *storage.Schema
	)
	switch cfg.IndexBackend {
	case "memory":
		idx := vector.NewMemoryIndex()
		schema, writer, backend = idx, idx, idx
		slog.Warn("using in-memory search index; documents are lost on exit")
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		db, err := storage.NewDB(connectCtx, cfg.PostgresURL)
		cancel()
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.closers = append(a.closers, func() error { db.Close(); return nil })
		pgSchema = storage.NewSchema(db, cfg.EmbedDim)
		schema = pgSchema
		writer = storage.NewChunkRepo(db)
		backend = vector.NewSearcher(db.Pool, pgSchema)
	}

	a.Indexer = ingest.NewIndexer(schema, a.Gateway, writer, cfg.ChunkSize, cfg.IngestWorkers)

	if !o.ingestOnly {
		turns, err := a.openTurnStore(pgSchema)
		if err != nil {
			return nil, err
		}
		a.Memory = memory.New(turns)
		combiner := vector.NewCombiner(backend, cfg.PortTimeout, vector.WithDefaultLimit(cfg.SearchLimit))
		a.Pipeline = agent.NewPipeline(a.Gateway, a.Gateway, combiner, a.Memory, cfg.ContextTurns)
	}

	if o.temporal && cfg.AsyncIngest() {
		c, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			return nil, fmt.Errorf("dial temporal: %w", err)
		}
		a.Temporal = c
		a.closers = append(a.closers, func() error { c.Close(); return nil })
		a.Starter = workflows.NewStarter(c, cfg.TemporalTaskQueue, cfg.DataInRoot)
	}
	ok = true
	return a, nil
}

// NewWorker wires the ingestion worker: the workflow engine and the indexing
// path, without conversation memory, so it can run beside the API on the
// same badger directory.
func NewWorker(ctx context.Context, cfg config.Config) (*App, error) {
	return New(ctx, cfg, WithTemporal(), IngestOnly())
}

// openTurnStore opens the configured conversation backend. Badger holds an
// exclusive lock on its directory for the life of the process.
func (a *App) openTurnStore(pgSchema *storage.Schema) (memory.TurnStore, error) {
	if a.Cfg.MemoryBackend == "badger" {
		store, err := storage.OpenBadgerTurnStore(a.Cfg.BadgerDir)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	return storage.NewConversationRepo(a.DB, pgSchema), nil
}

// API returns the HTTP server over the assembled components.
func (a *App) API() *api.Server {
	deps := api.Deps{
		Ingester: a.Indexer,
		Asker:    a.Pipeline,
		Sessions: a.Memory,
	}
	if a.Starter != nil {
		deps.Async = a.Starter
	}
	return api.NewServer(a.Cfg, deps)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// SetupLogging installs a text slog handler on stderr at the given level.
func SetupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
