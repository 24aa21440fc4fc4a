// CLAUDE:SUMMARY load subcommand: resolves the three catalog sources, reads them and runs the ingestion pipeline once.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hazyhaar/pandemic-registry/pkg/normalize"
	"github.com/hazyhaar/pandemic-registry/pkg/pipeline"
	"github.com/hazyhaar/pandemic-registry/pkg/source"
	"github.com/hazyhaar/pandemic-registry/pkg/store"
)

func cmdLoad(args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	cfgPath := fs.String("config", "pandemic.yaml", "path to config file")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath, ".env")
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	_, err = app.load(ctx)
	return err
}

func newLogger(cfg config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel()}))
}

// app holds what load, serve and sources share: the store, the source catalog
// (in the same database) and the pipeline.
type app struct {
	cfg      config
	logger   *slog.Logger
	db       *store.DB
	catalog  *source.Catalog
	pipeline *pipeline.Pipeline

	loading sync.Mutex
}

func openApp(cfg config, logger *slog.Logger) (*app, error) {
	policy, err := pipeline.ParseContinentPolicy(cfg.ContinentPolicy)
	if err != nil {
		return nil, err
	}
	norm, err := normalize.NewNormalizer(normalize.Aliases(cfg.CountryAliases))
	if err != nil {
		return nil, fmt.Errorf("country aliases: %w", err)
	}

	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	catalog, err := source.OpenCatalog(db.DB())
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := catalog.Seed(cfg.definitions()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed sources: %w", err)
	}

	p := pipeline.New(pipeline.StoreRepositories(db),
		pipeline.WithLogger(logger),
		pipeline.WithContinentPolicy(policy),
		pipeline.WithNormalizer(norm),
		pipeline.WithRunRecorder(db.Runs()),
	)
	return &app{cfg: cfg, logger: logger, db: db, catalog: catalog, pipeline: p}, nil
}

func (a *app) close() { a.db.Close() }

// load reads the three sources and runs the pipeline. A source that cannot be
// fetched or read is logged and treated as empty.
func (a *app) load(ctx context.Context) (*pipeline.Report, error) {
	var in pipeline.Inputs

	if path, enc, done, ok := a.resolve(ctx, source.SourceSars); ok {
		rows, st, err := source.ReadSarsFile(path, enc)
		done()
		a.recordRead(source.SourceSars, st, err)
		in.Sars = rows
	}
	if path, enc, done, ok := a.resolve(ctx, source.SourceCovidSummary); ok {
		rows, st, err := source.ReadCovidSummaryFile(path, enc)
		done()
		a.recordRead(source.SourceCovidSummary, st, err)
		in.CovidSummary = rows
	}
	if path, enc, done, ok := a.resolve(ctx, source.SourceCovidDaily); ok {
		rows, st, err := source.ReadCovidDailyFile(path, enc)
		done()
		a.recordRead(source.SourceCovidDaily, st, err)
		in.CovidDaily = rows
	}

	rep, err := a.pipeline.Run(ctx, in)
	if err != nil {
		return rep, fmt.Errorf("load: %w", err)
	}
	return rep, nil
}

// resolve fetches source id to a local file and returns it with its encoding.
func (a *app) resolve(ctx context.Context, id string) (string, string, func(), bool) {
	e, err := a.catalog.Get(id)
	if err != nil {
		a.logger.Warn("source skipped", "source", id, "error", err)
		return "", "", nil, false
	}
	path, cleanup, err := source.Fetch(ctx, e.Location, a.cfg.WorkDir)
	if err != nil {
		a.logger.Warn("source skipped", "source", id, "location", e.Location, "error", err)
		a.recordRead(id, source.Stats{}, err)
		return "", "", nil, false
	}
	return path, e.Encoding, cleanup, true
}

func (a *app) recordRead(id string, st source.Stats, readErr error) {
	if readErr != nil {
		a.logger.Warn("source read failed", "source", id, "error", readErr)
	} else {
		a.logger.Info("source read", "source", id, "read", st.Read, "valid", st.Valid, "skipped", st.Skipped)
	}
	if err := a.catalog.RecordRead(id, st, readErr); err != nil {
		a.logger.Error("record source read", "source", id, "error", err)
	}
}
