package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gogenie/internal/observability"
	"github.com/3leaps/gogenie/internal/server"
	"github.com/3leaps/gogenie/internal/server/handlers"
	"github.com/3leaps/gogenie/internal/transport/channel"
	"github.com/3leaps/gogenie/pkg/completion"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept job-finished events over HTTP and finalize them",
	Long: `Start the HTTP intake and the completion worker pool.

Job-finished notifications posted to /v1/jobs/{jobID}/finished are queued and
finalized by the workers. On SIGINT or SIGTERM the server stops accepting
requests and queued events are drained within completion.drain_timeout.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := observability.InitServerLogger(cfg.Logging.Level, cfg.Logging.Profile, binaryName); err != nil {
		return fmt.Errorf("init server logger: %w", err)
	}
	logger := observability.ServerLogger

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	p, err := buildPipeline(cfg, reg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	bus := channel.NewEventBus(cfg.Completion.Buffer, channel.WithMetrics(p.sink))
	dispatcher := completion.NewDispatcher(p.orch,
		completion.WithWorkers(cfg.Completion.Workers),
		completion.WithDrainTimeout(cfg.Completion.DrainTimeout),
		completion.WithDispatcherMetrics(p.sink),
		completion.WithDispatcherLogger(logger.Named("dispatcher")))

	handlers.InitHealthManager(versionInfo.Version)
	health := handlers.GetHealthManager()
	health.RegisterChecker("jobs_dir", dirHealthChecker{path: cfg.Jobs.Dir})
	health.RegisterChecker("registry_dir", dirHealthChecker{path: cfg.Jobs.RegistryDir})
	health.RegisterChecker("completion_queue", queueHealthChecker{bus: bus, capacity: cfg.Completion.Buffer})

	opts := []server.Option{
		server.WithLogger(logger.Named("http")),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
		server.WithJobsHandler(handlers.NewJobsHandler(bus, logger.Named("jobs"))),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	srv := server.New(cfg.Server.Host, cfg.Server.Port, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(dispatchCtx, bus.Channel())
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("gogenie started",
		zap.String("version", versionInfo.Version),
		zap.String("jobs_dir", cfg.Jobs.Dir),
		zap.Int("workers", cfg.Completion.Workers),
		zap.Int("buffer", cfg.Completion.Buffer))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	// No new events can arrive once the listener is down.
	bus.Close()
	cancelDispatch()
	wg.Wait()
	logger.Info("gogenie stopped", zap.Int("undelivered", bus.Len()))
	return serveErr
}

type dirHealthChecker struct {
	path string
}

func (c dirHealthChecker) CheckHealth(ctx context.Context) error {
	info, err := os.Stat(c.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", c.path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", c.path)
	}
	return nil
}

type queueHealthChecker struct {
	bus      *channel.EventBus
	capacity int
}

func (c queueHealthChecker) CheckHealth(ctx context.Context) error {
	if c.bus == nil {
		return fmt.Errorf("completion queue not initialized")
	}
	if n := c.bus.Len(); c.capacity > 0 && n >= c.capacity {
		return fmt.Errorf("completion queue full (%d/%d)", n, c.capacity)
	}
	return nil
}
