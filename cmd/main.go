package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/parleyai/quorum/internal/adapters/http/api"
	"github.com/parleyai/quorum/internal/adapters/llm"
	app "github.com/parleyai/quorum/internal/app"
	"github.com/parleyai/quorum/internal/config"
	"github.com/parleyai/quorum/internal/domain/model"
	"github.com/parleyai/quorum/pkg/logger"
	"github.com/parleyai/quorum/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	// We collect our own custom system metrics instead.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Provider keys commonly live in a local .env during development.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	adapters, err := buildAdapters(cfg)
	if err != nil {
		os.Stderr.WriteString("failed to build model adapters: " + err.Error() + "\n")
		return
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithIdempotencySize(cfg.IdempotencySize),
		app.WithAdapters(adapters...),
		app.WithDefaultStrategy(model.Strategy(cfg.DefaultStrategy)),
		app.WithDefaultTaskType(model.TaskType(cfg.DefaultTaskType)),
		app.WithConfidenceThreshold(cfg.ConfidenceThreshold),
		app.WithAdapterTimeout(time.Duration(cfg.AdapterTimeoutMS)*time.Millisecond),
		app.WithDispatchTimeout(time.Duration(cfg.DispatchTimeoutMS)*time.Millisecond),
		app.WithJobTimeout(time.Duration(cfg.JobTimeoutS)*time.Second),
		app.WithRetention(time.Duration(cfg.RetentionMin)*time.Minute),
		app.WithSweepInterval(time.Duration(cfg.SweepIntervalS)*time.Second),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// buildAdapters turns configured models into live adapters. An empty
// model list yields nil; the service falls back to static doubles.
func buildAdapters(cfg *config.Config) ([]llm.Adapter, error) {
	adapters := make([]llm.Adapter, 0, len(cfg.Models))
	for _, mc := range cfg.Models {
		switch mc.Provider {
		case "openai":
			adapters = append(adapters, llm.NewOpenAI(mc.Name, mc.APIKey, mc.BaseURL, mc.ModelID))
		case "gemini":
			adapters = append(adapters, llm.NewGemini(mc.Name, mc.APIKey, mc.BaseURL, mc.ModelID))
		case "static", "":
			adapters = append(adapters, llm.NewStatic(mc.Name))
		default:
			return nil, &unknownProviderError{provider: mc.Provider, name: mc.Name}
		}
	}
	return adapters, nil
}

type unknownProviderError struct {
	provider string
	name     string
}

func (e *unknownProviderError) Error() string {
	return "unknown provider " + e.provider + " for model " + e.name
}

// startSystemMetricsUpdater periodically refreshes process metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater periodically refreshes service gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the job and queue gauges as a side
			// effect.
			svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
