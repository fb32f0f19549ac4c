package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/postforge/postforge/internal/core/store"
	"github.com/postforge/postforge/internal/output"
	"github.com/postforge/postforge/internal/tracker"
)

var limitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		prefix, _ := cmd.Flags().GetString("prefix")
		raw, _ := cmd.Flags().GetBool("raw")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		handle, err := openCLITracker(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer handle.Close() // nolint:errcheck // best-effort cleanup
		if handle.Store == nil {
			return errStoreBackendRequired
		}

		limitPrefix := handle.Tracker.LimitStorageKey("")
		query := store.EntryQuery{Prefix: limitPrefix + strings.TrimSpace(prefix)}
		if raw {
			query.Prefix = handle.Tracker.Namespace() + "." + strings.TrimSpace(prefix)
		}

		entries, err := handle.Store.ListEntries(cmd.Context(), query)
		if err != nil {
			return err
		}

		sink, err := openCommandSink(cmd, format, "limit.list")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		formatter := output.NewFormatter(format)
		if raw {
			rendered, err := formatter.FormatEntries(entries)
			if err != nil {
				return err
			}
			return render(sink.writer, rendered)
		}

		views := limitViews(cmd, handle.Tracker, limitPrefix, entries)
		if format == output.FormatTable {
			return render(sink.writer, limitListBox(views))
		}
		rendered, err := formatter.FormatLimits(views)
		if err != nil {
			return err
		}
		return render(sink.writer, rendered)
	},
}

// limitViews re-reads each stored window through the tracker so elapsed
// windows report as clear and are collected.
func limitViews(cmd *cobra.Command, tr *tracker.Tracker, limitPrefix string, entries []store.Entry) []output.LimitView {
	views := make([]output.LimitView, 0, len(entries))
	for _, entry := range entries {
		key := strings.TrimPrefix(entry.Key, limitPrefix)
		views = append(views, output.NewLimitView(key, tr.IsLimited(cmd.Context(), key)))
	}
	return views
}

func limitListBox(views []output.LimitView) string {
	lines := []string{"Rate Limits", ""}
	active := 0
	for _, view := range views {
		if !view.Limited {
			continue
		}
		active++
		lines = append(lines, fmt.Sprintf("%s: %s remaining (resets %s)",
			view.Key,
			formatRemaining(msDuration(view.RemainingMs)),
			view.ResetAt.Format(time.RFC3339)))
	}
	if active == 0 {
		lines = append(lines, "(no active rate limit windows)")
	}
	return drawBox(lines)
}

func init() {
	addOutputFlags(limitListCmd)
	limitListCmd.Flags().String("prefix", "", "List keys with matching prefix")
	limitListCmd.Flags().Bool("raw", false, "Show raw stored entries for the whole namespace")
}
