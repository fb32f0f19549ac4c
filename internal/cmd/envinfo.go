package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/postforge/postforge/internal/appid"
	"github.com/postforge/postforge/internal/core/store"
	"github.com/postforge/postforge/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()
		log := observability.CLILogger

		log.Info("=== PostForge Environment Information ===")
		log.Info("")

		identity := appid.Get()
		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("  Env Prefix: " + identity.EnvPrefix)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig(cmd)
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = "(none)"
		}

		log.Info("Configuration:")
		log.Info("  Config File:    "+configFile, zap.String("config_file", configFile))
		log.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		location := store.Describe(cfg.Store)
		log.Info("  DB Location:    "+location, zap.String("db_location", location))
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled), zap.Int("metrics_port", cfg.Metrics.Port))
		log.Info("")

		log.Info("Tracker:")
		log.Info("  Backend:          "+cfg.Tracker.Backend, zap.String("backend", cfg.Tracker.Backend))
		log.Info("  Namespace:        "+cfg.Tracker.Namespace, zap.String("namespace", cfg.Tracker.Namespace))
		log.Info("  Default Cooldown: " + cfg.Tracker.DefaultCooldown.String())
		log.Info("  Auth TTL:         " + cfg.Tracker.AuthTTL.String())
		log.Info("  Poll Interval:    " + cfg.Tracker.PollInterval.String())
		log.Info("  Max Countdown:    " + cfg.Tracker.MaxCountdown.String())
		log.Info("")

		log.Info("X API:")
		log.Info("  Base URL:  "+cfg.XAPI.BaseURL, zap.String("xapi_base_url", cfg.XAPI.BaseURL))
		log.Info("  Timeout:   " + cfg.XAPI.Timeout.String())
		log.Info("  Limit Key: " + cfg.XAPI.LimitKey)
		log.Info("  Auth Key:  " + cfg.XAPI.AuthKey)
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
