package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/postforge/postforge/internal/errors"
	"github.com/postforge/postforge/internal/observability"
	"github.com/postforge/postforge/internal/server/handlers"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check to verify the configuration loads and tracker storage is writable.",
	Run: func(cmd *cobra.Command, args []string) {
		observability.CLILogger.Info("Running health check...")

		// Check 1: Version info available
		if versionInfo.Version == "" {
			observability.CLILogger.Error("❌ FAIL: Version information missing")
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		observability.CLILogger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		observability.CLILogger.Info("✅ Version information available")

		// Check 2: Configuration valid
		cfg, err := loadConfig(cmd)
		if err != nil {
			observability.CLILogger.Error("❌ FAIL: Configuration invalid")
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		observability.CLILogger.Info("✅ Configuration valid")

		// Check 3: Tracker storage reachable and writable
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		handle, err := openCLITracker(ctx, cfg)
		if err != nil {
			observability.CLILogger.Error("❌ FAIL: Tracker storage unavailable", zap.Error(err))
			ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable, "Tracker storage unavailable", err)
			return
		}
		defer handle.Close() // nolint:errcheck // best-effort cleanup

		probe := handlers.StorageChecker{
			Storage: handle.Storage,
			Key:     handle.Tracker.Namespace() + ".health.probe",
		}
		if err := probe.CheckHealth(ctx); err != nil {
			observability.CLILogger.Error("❌ FAIL: Tracker storage probe failed", zap.Error(err))
			ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable, "Tracker storage probe failed", err)
			return
		}
		observability.CLILogger.Info("✅ Tracker storage writable", zap.String("backend", cfg.Tracker.Backend))

		observability.CLILogger.Info("")
		observability.CLILogger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
