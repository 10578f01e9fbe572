package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nimasrn/church-messaging/internal/app"
	"github.com/nimasrn/church-messaging/internal/config"
	"github.com/nimasrn/church-messaging/internal/delivery"
	"github.com/nimasrn/church-messaging/pkg/logger"
	"github.com/nimasrn/church-messaging/pkg/prom"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// The worker runs a single delivery cycle and exits, for an external
// scheduler. With --cron="*/5 * * * *" (or WORKER_CRON) it stays up, runs a
// cycle on every tick and serves metrics.
func main() {
	err := config.Load(app.EnvPath(os.Args))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Get()

	a, err := app.New(cfg)
	if err != nil {
		logger.Error("failed to initialise dependencies", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spec := cronSpec(os.Args, cfg.WorkerCron)
	if spec == "" {
		if err := runCycle(ctx, a.Worker); err != nil {
			os.Exit(1)
		}
		return
	}

	logger.Info("starting delivery worker", "version", version, "commit", commit, "date", date, "cron", spec)
	if cfg.AppDebugMetricsAddr != "" {
		host, _ := os.Hostname()
		if err := prom.Create(host, cfg.AppEnv, cfg.PromNamespace); err != nil {
			logger.Error("failed to register metrics", "error", err)
		}
		go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(spec, func() { _ = runCycle(ctx, a.Worker) }); err != nil {
		logger.Error("invalid cron spec", "cron", spec, "error", err)
		os.Exit(1)
	}
	c.Start()

	<-ctx.Done()
	logger.Info("delivery worker is shutting down", "pid", os.Getpid())
	<-c.Stop().Done()
}

// runCycle reports only failures; the worker logs every finished cycle.
func runCycle(ctx context.Context, w *delivery.Worker) error {
	if _, err := w.RunCycle(ctx); err != nil {
		logger.Error("delivery cycle failed", "error", err)
		return err
	}
	return nil
}

func cronSpec(args []string, fallback string) string {
	for _, v := range args {
		if strings.HasPrefix(v, "--cron=") {
			return strings.Trim(strings.TrimPrefix(v, "--cron="), `"'`)
		}
	}
	return strings.TrimSpace(fallback)
}
