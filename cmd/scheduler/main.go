package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/scalecore/scheduler/pkg/cleanup"
	"github.com/scalecore/scheduler/pkg/config"
	"github.com/scalecore/scheduler/pkg/errcat"
	"github.com/scalecore/scheduler/pkg/events"
	"github.com/scalecore/scheduler/pkg/log"
	"github.com/scalecore/scheduler/pkg/metrics"
	"github.com/scalecore/scheduler/pkg/runningjob"
	"github.com/scalecore/scheduler/pkg/storage"
	"github.com/scalecore/scheduler/pkg/syncloop"
	"github.com/scalecore/scheduler/pkg/task"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "scheduler",
	Short:   "Batch job scheduler runtime core",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"scheduler version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
		Output:     os.Stdout,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler runtime core",
	RunE: func(cmd *cobra.Command, args []string) error {
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger := log.WithComponent("main")
		logger.Info().Str("data_dir", cfg.DataDir).Msg("starting scheduler runtime core")

		catalog := errcat.NewStatic()

		store, err := storage.NewBoltStore(cfg.DataDir, catalog)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		registry := runningjob.New()
		idGen := task.NewAtomicCounter()
		cleanupMgr := cleanup.New(cfg.FrameworkID, idGen)

		// router.Router and quarantine.Policy are not constructed here:
		// both need a live inbound status-update callback from a cluster
		// manager client to dispatch into, and that client is out of scope
		// for this core (see DESIGN.md Open Question #3). A deployment that
		// adds one wires router.New(registry) and quarantine.New backed by
		// an implementation of quarantine.Settings over cfg behind it.
		driver := noopDriver{logger: log.WithComponent("cluster")}

		loop := syncloop.New(store, registry, cleanupMgr, driver, syncloop.CatalogSyncers{})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		loop.Start(ctx)
		defer loop.Stop()

		collector := metrics.NewCollector(registry, cleanupMgr)
		collector.Start()
		defer collector.Stop()

		metrics.SetVersion(Version)
		metrics.RegisterCriticalComponent("storage", true, "ready")
		metrics.RegisterCriticalComponent("syncloop", true, "ready")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())

		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
		logger.Info().Str("addr", metricsAddr).Msg("metrics and health endpoints listening")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			logger.Info().Msg("shutdown signal received")
		case err := <-errCh:
			logger.Error().Err(err).Msg("metrics server failed")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("metrics server did not shut down cleanly")
		}

		logger.Info().Msg("shutdown complete")
		return nil
	},
}

func init() {
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics and health HTTP server")
}

// noopDriver is a placeholder ExecutorDriver until a real cluster manager
// client is wired in; KillTask only logs the request.
type noopDriver struct {
	logger zerolog.Logger
}

func (d noopDriver) KillTask(taskID string) error {
	d.logger.Warn().Str("task_id", taskID).Msg("kill requested, no cluster manager client wired")
	return nil
}
