package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/hubble/internal/adapter/api"
	"github.com/user/hubble/internal/adapter/metrics"
	"github.com/user/hubble/internal/adapter/nexus"
	"github.com/user/hubble/internal/adapter/notifier"
	dockerruntime "github.com/user/hubble/internal/adapter/runtime/docker"
	fileruntime "github.com/user/hubble/internal/adapter/runtime/file"
	"github.com/user/hubble/internal/adapter/statestore"
	"github.com/user/hubble/internal/domain"
	"github.com/user/hubble/internal/pkg/config"
	"github.com/user/hubble/internal/pkg/logger"
	"github.com/user/hubble/internal/pkg/ratelimit"
	"github.com/user/hubble/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML config file")
	flag.Parse()
	// Keep the positional form working too: `hubble myconfig.yml`.
	if flag.NArg() > 0 {
		*configPath = flag.Arg(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New("info").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting hubble monitor",
		"subject", cfg.FarmerName,
		"mode", cfg.Mode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		log.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	m := metrics.New()

	var runtime domain.ContainerRuntime
	if cfg.LogFile != "" {
		log.Info("using file log source", "path", cfg.LogFile)
		runtime = fileruntime.New(cfg.LogFile)
	} else {
		dockerRT, err := dockerruntime.New(cfg.DockerHost, cfg.ImageNeedle)
		if err != nil {
			log.Error("failed to create docker client", "error", err)
			os.Exit(1)
		}
		defer dockerRT.Close()
		if err := dockerRT.Ping(ctx); err != nil {
			log.Warn("docker daemon not reachable yet", "error", err)
		}
		runtime = dockerRT
	}

	sink := nexus.New(cfg.NexusURL, log)

	var alerts domain.Notifier
	if cfg.DiscordWebhookURL != "" {
		alerts = notifier.NewDiscord(cfg.DiscordWebhookURL, log)
	} else {
		log.Warn("no discord webhook configured, alerts will only be logged")
		alerts = notifier.NewStdout(log)
	}

	var cursors domain.CursorStore
	store, err := statestore.New(cfg.StateDBPath)
	if err != nil {
		log.Warn("state db unavailable, stream cursors will not persist", "error", err)
	} else {
		cursors = store
		defer store.Close()
	}

	// Startup probes are best-effort: a backend that is briefly down must not
	// keep the monitor from tailing.
	probeCtx, probeCancel := context.WithTimeout(ctx, 15*time.Second)
	if err := sink.Hello(probeCtx); err != nil {
		log.Warn("backend probe failed", "error", err)
	} else if err := sink.InsertFarmer(probeCtx, cfg.FarmerName); err != nil {
		log.Warn("subject registration failed", "error", err)
	}
	probeCancel()

	opsServer := api.NewServer(cfg.MetricsAddr, api.Health{
		Status:  "ok",
		Subject: cfg.FarmerName,
		Mode:    cfg.Mode,
	})
	go func() {
		log.Info("ops server listening", "addr", cfg.MetricsAddr)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server failed", "error", err)
		}
	}()

	limiter := ratelimit.New(cfg.AlertCapacity, cfg.AlertInterval)
	router := usecase.NewRouter(sink, alerts, limiter, cfg.PublishThresholdMinutes, m, log)
	supervisor := usecase.NewSupervisor(
		runtime,
		usecase.NewClassifier(),
		router,
		cursors,
		cfg.FarmerName,
		cfg.WorkloadMode(),
		m,
		log,
	)

	runErr := supervisor.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = opsServer.Shutdown(shutdownCtx)
	shutdownCancel()

	if runErr != nil {
		log.Error("monitor stopped", "error", runErr)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
