package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hazyhaar/pandemic-registry/pkg/api"
	"github.com/hazyhaar/pandemic-registry/pkg/chassis"
	"github.com/hazyhaar/pandemic-registry/pkg/source"
	"github.com/hazyhaar/pandemic-registry/pkg/stats"
)

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "pandemic.yaml", "path to config file")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath, ".env")
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	app, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	svc := stats.NewService(app.db)
	router := api.NewRouter(svc, api.NewMCPServer(svc, version, logger), logger)

	srv, err := chassis.New(chassis.Config{
		Addr:     cfg.Addr,
		CertFile: cfg.TLS.CertFile,
		KeyFile:  cfg.TLS.KeyFile,
		Insecure: cfg.TLS.Disabled,
		HTTP3:    cfg.HTTP3,
		Handler:  router,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	// SIGHUP: reload now.
	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched, err := newScheduler(ctx, app)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)
	go app.reloadOn(ctx, sighup)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// newScheduler registers the configured reload and source check jobs. A job
// still running when its next tick comes is skipped.
func newScheduler(ctx context.Context, a *app) (*cron.Cron, error) {
	log := cronLogger{a.logger}
	c := cron.New(cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)), cron.WithLogger(log))

	if spec := a.cfg.ReloadSchedule; spec != "" {
		if _, err := c.AddFunc(spec, func() { a.reload(ctx) }); err != nil {
			return nil, fmt.Errorf("schedule reload: %w", err)
		}
		a.logger.Info("reload scheduled", "schedule", spec)
	}
	if spec := a.cfg.CheckSchedule; spec != "" {
		checker := newChecker(a)
		if _, err := c.AddFunc(spec, func() { checker.CheckAll(ctx) }); err != nil {
			return nil, fmt.Errorf("schedule source check: %w", err)
		}
		a.logger.Info("source check scheduled", "schedule", spec)
	}
	return c, nil
}

// reload runs a load unless one is already in progress.
func (a *app) reload(ctx context.Context) bool {
	if !a.loading.TryLock() {
		a.logger.Warn("load already running, reload skipped")
		return false
	}
	defer a.loading.Unlock()

	if _, err := a.load(ctx); err != nil {
		a.logger.Error("reload failed", "error", err)
	}
	return true
}

// reloadOn reloads on every signal from sig until ctx is done.
func (a *app) reloadOn(ctx context.Context, sig <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-sig:
			a.logger.Info("signal received, reloading sources", "signal", s)
			a.reload(ctx)
		}
	}
}

// cronLogger routes cron's logging to slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

func newChecker(a *app) *source.Checker { return source.NewChecker(a.catalog, a.logger) }
