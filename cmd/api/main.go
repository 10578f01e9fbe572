package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/church-messaging/internal/app"
	"github.com/nimasrn/church-messaging/internal/audience"
	"github.com/nimasrn/church-messaging/internal/config"
	"github.com/nimasrn/church-messaging/internal/handlers"
	"github.com/nimasrn/church-messaging/internal/services"
	xhttp "github.com/nimasrn/church-messaging/pkg/http"
	"github.com/nimasrn/church-messaging/pkg/logger"
	"github.com/nimasrn/church-messaging/pkg/prom"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()
	logger.Info("starting api", "version", version, "commit", commit, "date", date)

	err := config.Load(app.EnvPath(os.Args))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()

	opt := xhttp.DefaultServerOption
	opt.ReadTimeout = cfg.HttpServerReadTimeout
	opt.WriteTimeout = cfg.HttpServerWriteTimeout
	s := xhttp.NewServer(opt)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.CompressMiddleware(6))
	// an immediate send delivers inline, so the budget covers a whole batch
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))
	s.Router = xhttp.CreateDefaultRouter()

	a, err := app.New(cfg)
	if err != nil {
		logger.Error("failed to initialise dependencies", "error", err)
		return
	}

	if cfg.AppDebugMetricsAddr != "" {
		host, _ := os.Hostname()
		if err := prom.Create(host, cfg.AppEnv, cfg.PromNamespace); err != nil {
			logger.Error("failed to register metrics", "error", err)
		}
		go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}

	// services
	messageService := services.NewMessageService(a.Repos, audience.NewResolver(a.Repos.Members), a.Worker)
	healthService := services.NewHealthService(a.DB, a.Redis)

	// v1 handlers
	messageHandler := handlers.NewMessageHandler(messageService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterMessageRoutes(g, messageHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(cfg.HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}
