package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/postforge/postforge/internal/appid"
	"github.com/postforge/postforge/internal/config"
	errwrap "github.com/postforge/postforge/internal/errors"
	"github.com/postforge/postforge/internal/metrics"
	"github.com/postforge/postforge/internal/observability"
	"github.com/postforge/postforge/internal/server"
	"github.com/postforge/postforge/internal/server/handlers"
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local tracker HTTP API",
	Long: `Start the local HTTP API that exposes the tracker to UI clients.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload

Running countdown streams are closed and the store is released on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		identity := appid.Get()
		namespace := identity.TelemetryNamespace()

		observability.InitServerLogger(observability.ServerLogOptions{
			Service:     identity.BinaryName,
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			Environment: cfg.Logging.Environment,
			Namespace:   namespace,
		})
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(namespace, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
			metrics.SetServerStartTime(time.Now().Unix())
		}

		handle, err := openTracker(cmd.Context(), cfg, logger)
		if err != nil {
			return errwrap.WrapServiceUnavailable(cmd.Context(), err, "tracker storage unavailable")
		}

		logger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("version", versionInfo.Version),
			zap.String("backend", cfg.Tracker.Backend),
			zap.String("tracker_namespace", handle.Tracker.Namespace()),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled))

		health := handlers.NewHealthManager(versionInfo.Version)
		if cfg.Health.Enabled {
			health.RegisterChecker("tracker_storage", handlers.StorageChecker{
				Storage: handle.Storage,
				Key:     handle.Tracker.Namespace() + ".health.probe",
			})
			if handle.Store != nil {
				health.RegisterChecker("store", handlers.PingChecker{Target: handle.Store})
			}
			if cfg.Metrics.Enabled {
				health.RegisterChecker("telemetry", telemetryHealthChecker{})
			}
		}

		srv := server.New(cfg.Server.Host, cfg.Server.Port, server.Options{
			Tracker:      handle.Tracker,
			Health:       health,
			PollInterval: cfg.Tracker.PollInterval,
			MaxCountdown: cfg.Tracker.MaxCountdown,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			MetricsPort:  cfg.Metrics.Port,
		})

		registerShutdown(srv, handle, cfg.Server.ShutdownTimeout)
		registerReload()

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		g, gctx := errgroup.WithContext(cmd.Context())
		g.Go(srv.Start)
		g.Go(func() error {
			if err := signals.Listen(gctx); err != nil && gctx.Err() == nil {
				logger.Error("Signal handler error", zap.Error(err))
				return err
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			_ = handle.Close()
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}
		return nil
	},
}

// registerShutdown installs shutdown handlers; they run in LIFO order.
func registerShutdown(srv *server.Server, handle *trackerHandle, timeout time.Duration) {
	logger := observability.ServerLogger
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	// Runs last
	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Flushing logger...")
		if err := logger.Sync(); err != nil {
			// Sync errors are often benign (stdout/stderr already closed)
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		if err := handle.Close(); err != nil {
			return errwrap.WrapInternal(ctx, err, "tracker store close failed")
		}
		logger.Info("Tracker store closed")
		return nil
	})

	// Runs first
	signals.OnShutdown(func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})
}

// registerReload re-reads the config file on SIGHUP and applies the log level.
func registerReload() {
	logger := observability.ServerLogger

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: attempting config reload")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				logger.Info("No config file found - using defaults and environment variables")
				return nil
			}
			logger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			logger.Error("Reloaded config is invalid; keeping previous settings", zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}

		logger.Info("Configuration reloaded successfully",
			zap.String("file", viper.ConfigFileUsed()),
			zap.String("log_level", cfg.Logging.Level))
		return nil
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8787, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
