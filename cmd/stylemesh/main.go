// Command stylemesh serves the AI fashion stylist API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hupe1980/stylemesh"
	"github.com/hupe1980/stylemesh/api"
	"github.com/hupe1980/stylemesh/artifact"
	"github.com/hupe1980/stylemesh/config"
	"github.com/hupe1980/stylemesh/core"
	"github.com/hupe1980/stylemesh/logging"
	"github.com/hupe1980/stylemesh/metrics"
	"github.com/hupe1980/stylemesh/store"
	"github.com/hupe1980/stylemesh/visual"
	"github.com/hupe1980/stylemesh/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slogger := logging.NewSlog(cfg.Logging())
	slog.SetDefault(slogger)
	logger := logging.NewSlogAdapter(slogger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := config.LoadCatalog(cfg.AgentsFile)
	if err != nil {
		return err
	}

	models, err := stylemesh.NewModels(ctx, cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(reg)

	var artifacts core.ArtifactStore = artifact.NewInMemoryStore(func(o *artifact.Options) {
		o.MaxBytes = int(cfg.MaxPhotoBytes)
	})
	if cfg.ArtifactDir != "" {
		fs, err := artifact.NewFileStore(cfg.ArtifactDir, func(o *artifact.Options) {
			o.MaxBytes = int(cfg.MaxPhotoBytes)
		})
		if err != nil {
			return err
		}
		artifacts = fs
	}

	images := visual.NewImages(artifacts, nil)

	mesh, err := stylemesh.New(func(o *stylemesh.Options) {
		o.Catalog = catalog
		o.Resolve = models.Resolve
		o.MaxModelCalls = cfg.Orchestrator.MaxModelCalls
		o.MaxAttempts = cfg.Orchestrator.MaxAttempts
		o.BackoffUnit = cfg.Orchestrator.BackoffUnit
		o.MinResponseLength = cfg.Orchestrator.MinResponseLength
		o.RetryableMarkers = cfg.Orchestrator.RetryableMarkers
		o.RefusalMarkers = cfg.Orchestrator.RefusalMarkers
		o.Recorder = recorder
		o.PhotoLoader = images
		o.MaxPhotoBytes = cfg.MaxPhotoBytes
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	var visualizer *visual.Service
	switch {
	case cfg.Visual.Disabled:
		logger.Info("Visualization disabled")
	case models.Google == nil:
		logger.Warn("Visualization disabled: GOOGLE_API_KEY is not set")
	default:
		visualizer = visual.New(visual.NewGeminiEditor(models.Google, cfg.Visual.Model), images, func(o *visual.Options) {
			o.Parallelism = cfg.Visual.Parallelism
			o.Recorder = recorder
			o.Logger = logger
		})
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return err
	}
	logger.Info("Database connected", "path", cfg.DBPath)

	// a typed nil would defeat the nil check in the workflow
	var wfVisualizer workflow.Visualizer
	if visualizer != nil {
		wfVisualizer = visualizer
	}

	engine := workflow.New(mesh.Stylist(), wfVisualizer, repo, func(o *workflow.Options) {
		o.Concurrency = int64(cfg.Workflow.Concurrency)
		o.Timeout = cfg.Workflow.Timeout
		o.Logger = logger
	})

	deps := api.Deps{
		Stylist:       mesh.Stylist(),
		Workflow:      engine,
		Repo:          repo,
		Images:        images,
		Metrics:       recorder,
		Logger:        logger,
		MaxPhotoBytes: cfg.MaxPhotoBytes,
		CORSOrigins:   cfg.CORSOrigins,
	}
	if visualizer != nil {
		deps.Visualizer = visualizer
	}

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "address", cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	if err := engine.Close(shutdownCtx); err != nil {
		logger.Error("Workflows did not finish", "error", err)
	}

	logger.Info("Server exited")

	return nil
}
