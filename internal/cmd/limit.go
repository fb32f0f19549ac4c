package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	errwrap "github.com/postforge/postforge/internal/errors"
	"github.com/postforge/postforge/internal/output"
	"github.com/postforge/postforge/internal/tracker"
)

var limitCmd = &cobra.Command{
	Use:   "limit",
	Short: "Inspect and manage rate limit windows",
}

var limitRecordCmd = &cobra.Command{
	Use:   "record <key>",
	Short: "Start a cooldown window for a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		duration, err := cmd.Flags().GetDuration("duration")
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("duration") {
			duration = cfg.Tracker.DefaultCooldown
		}

		handle, err := openCLITracker(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer handle.Close() // nolint:errcheck // best-effort cleanup

		if err := handle.Tracker.RecordLimit(cmd.Context(), args[0], duration); err != nil {
			return errwrap.FromTrackerError(cmd.Context(), err)
		}
		return writeLimitStatus(cmd, handle.Tracker, args)
	},
}

var limitStatusCmd = &cobra.Command{
	Use:   "status <key>...",
	Short: "Show whether resources are rate limited",
	Args:  cobra.MinimumNArgs(1),
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

		return writeLimitStatus(cmd, handle.Tracker, args)
	},
}

var limitClearCmd = &cobra.Command{
	Use:   "clear <key>",
	Short: "Remove the cooldown window and cached credential for a resource",
	Args:  cobra.ExactArgs(1),
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

		if err := handle.Tracker.Clear(cmd.Context(), args[0]); err != nil {
			return errwrap.FromTrackerError(cmd.Context(), err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", strings.TrimSpace(args[0]))
		return err
	},
}

var limitWatchCmd = &cobra.Command{
	Use:   "watch <key>",
	Short: "Count down a cooldown window until it clears",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		if !cmd.Flags().Changed("interval") {
			interval = cfg.Tracker.PollInterval
		}
		maxDuration, _ := cmd.Flags().GetDuration("max")
		if !cmd.Flags().Changed("max") {
			maxDuration = cfg.Tracker.MaxCountdown
		}

		handle, err := openCLITracker(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer handle.Close() // nolint:errcheck // best-effort cleanup

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return watchLimit(ctx, cmd.OutOrStdout(), handle.Tracker, args[0], interval, maxDuration)
	},
}

func writeLimitStatus(cmd *cobra.Command, tr *tracker.Tracker, keys []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	views := make([]output.LimitView, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		views = append(views, output.NewLimitView(key, tr.IsLimited(cmd.Context(), key)))
	}

	rendered, err := output.NewFormatter(format).FormatLimits(views)
	if err != nil {
		return err
	}

	sink, err := openCommandSink(cmd, format, "limit.status")
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	return render(sink.writer, rendered)
}

func init() {
	limitRecordCmd.Flags().Duration("duration", 15*time.Minute, "Cooldown length (default tracker.default_cooldown)")
	addOutputFlags(limitRecordCmd)
	addOutputFlags(limitStatusCmd)

	limitWatchCmd.Flags().Duration("interval", time.Second, "Poll interval (default tracker.poll_interval)")
	limitWatchCmd.Flags().Duration("max", 30*time.Minute, "Stop watching after this long (default tracker.max_countdown)")

	limitCmd.AddCommand(limitRecordCmd, limitStatusCmd, limitClearCmd, limitWatchCmd, limitListCmd, limitResetCmd)
	rootCmd.AddCommand(limitCmd)
}

// drawBox frames a block of lines the way list output is shown on a terminal.
func drawBox(lines []string) string {
	return ascii.DrawBox(strings.Join(lines, "\n"), 0)
}
