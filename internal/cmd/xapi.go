package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postforge/postforge/internal/appid"
	"github.com/postforge/postforge/internal/config"
	errwrap "github.com/postforge/postforge/internal/errors"
	"github.com/postforge/postforge/internal/observability"
	"github.com/postforge/postforge/internal/output"
	"github.com/postforge/postforge/internal/tracker"
	"github.com/postforge/postforge/internal/xapi"
)

var xapiCmd = &cobra.Command{
	Use:   "xapi",
	Short: "Call the X API backend through the rate limit guard",
}

var xapiVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify X credentials, reusing a cached result when available",
	Long: `Verify X credentials against the backend.

A cached verification is returned without a network call. While the X API
cooldown is running the command fails fast with the remaining time. Secrets
default to the ` + appid.Get().EnvVar("X_API_KEY") + `, ` + appid.Get().EnvVar("X_API_SECRET") + `,
` + appid.Get().EnvVar("X_ACCESS_TOKEN") + ` and ` + appid.Get().EnvVar("X_ACCESS_SECRET") + ` variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		handle, err := openCLITracker(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer handle.Close() // nolint:errcheck // best-effort cleanup

		creds := xapi.Credentials{
			APIKey:       flagOrEnv(cmd, "api-key", "X_API_KEY"),
			APISecret:    flagOrEnv(cmd, "api-secret", "X_API_SECRET"),
			AccessToken:  flagOrEnv(cmd, "access-token", "X_ACCESS_TOKEN"),
			AccessSecret: flagOrEnv(cmd, "access-secret", "X_ACCESS_SECRET"),
		}

		result, err := newGuard(cfg, handle.Tracker).VerifyCredentials(cmd.Context(), creds)
		if err != nil {
			var limited *xapi.RateLimitedError
			if errors.As(err, &limited) {
				return errwrap.NewRateLimitedError(cmd.Context(), limited.Key, limited.Remaining.Milliseconds())
			}
			if errors.Is(err, tracker.ErrInvalidArgument) {
				return errwrap.FromTrackerError(cmd.Context(), err)
			}
			return errwrap.WrapExternalService(cmd.Context(), err, "x api verification failed")
		}

		if observability.CLILogger != nil {
			observability.CLILogger.Debug("X credentials verified",
				zap.Bool("from_cache", result.FromCache),
				zap.String("username", result.Username))
		}

		source := "backend"
		if result.FromCache {
			source = "cache"
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "verified=%t username=%s source=%s\n", result.Verified, result.Username, source)
		return err
	},
}

var xapiStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the X API cooldown and cached verification state",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		handle, err := openCLITracker(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer handle.Close() // nolint:errcheck // best-effort cleanup

		status := newGuard(cfg, handle.Tracker).Status(cmd.Context())
		rendered, err := output.NewFormatter(format).FormatLimits([]output.LimitView{
			output.NewLimitView(xapiLimitKey(cfg), status.Limit),
		})
		if err != nil {
			return err
		}

		sink, err := openCommandSink(cmd, format, "xapi.status")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if err := render(sink.writer, rendered); err != nil {
			return err
		}
		if format == output.FormatTable {
			_, err = fmt.Fprintf(sink.writer, "auth cached: %t\n", status.AuthCached)
		}
		return err
	},
}

func newGuard(cfg *config.Config, tr *tracker.Tracker) *xapi.Guard {
	return &xapi.Guard{
		Tracker:         tr,
		Client:          &http.Client{Timeout: cfg.XAPI.Timeout},
		BaseURL:         cfg.XAPI.BaseURL,
		LimitKey:        cfg.XAPI.LimitKey,
		AuthKey:         cfg.XAPI.AuthKey,
		DefaultCooldown: cfg.Tracker.DefaultCooldown,
		AuthTTL:         cfg.Tracker.AuthTTL,
	}
}

func xapiLimitKey(cfg *config.Config) string {
	if key := strings.TrimSpace(cfg.XAPI.LimitKey); key != "" {
		return key
	}
	return xapi.DefaultLimitKey
}

func flagOrEnv(cmd *cobra.Command, flag, env string) string {
	if value, _ := cmd.Flags().GetString(flag); strings.TrimSpace(value) != "" {
		return value
	}
	return os.Getenv(appid.Get().EnvVar(env))
}

func init() {
	xapiVerifyCmd.Flags().String("api-key", "", "X API key")
	xapiVerifyCmd.Flags().String("api-secret", "", "X API secret")
	xapiVerifyCmd.Flags().String("access-token", "", "X access token")
	xapiVerifyCmd.Flags().String("access-secret", "", "X access token secret")
	addOutputFlags(xapiStatusCmd)

	xapiCmd.AddCommand(xapiVerifyCmd, xapiStatusCmd)
	rootCmd.AddCommand(xapiCmd)
}
