package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/postforge/postforge/internal/core/store"
	"github.com/postforge/postforge/internal/output"
	"github.com/postforge/postforge/internal/tracker"
)

type resetResult struct {
	Matched int   `json:"matched" yaml:"matched"`
	Deleted int64 `json:"deleted" yaml:"deleted"`
	DryRun  bool  `json:"dry_run" yaml:"dry_run"`
}

var limitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete stored rate limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		all, _ := cmd.Flags().GetBool("all")
		key, _ := cmd.Flags().GetString("key")
		prefix, _ := cmd.Flags().GetString("prefix")
		yes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		requested := store.EntryQuery{
			All:    all,
			Key:    strings.TrimSpace(key),
			Prefix: strings.TrimSpace(prefix),
		}
		if err := requested.Validate(); err != nil {
			return err
		}
		if requested.All && !yes && !dryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
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
		if handle.Store == nil {
			return errStoreBackendRequired
		}

		query := namespacedQuery(handle.Tracker, requested)

		matched, err := handle.Store.CountEntries(cmd.Context(), query)
		if err != nil {
			return err
		}

		sink, err := openCommandSink(cmd, format, "limit.reset")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if dryRun {
			return writeResetResult(format, sink.writer, resetResult{Matched: matched, DryRun: true})
		}

		deleted, err := handle.Store.ResetEntries(cmd.Context(), query)
		if err != nil {
			return err
		}
		return writeResetResult(format, sink.writer, resetResult{Matched: matched, Deleted: deleted})
	},
}

// namespacedQuery confines a user query to the tracker's rate limit keys.
func namespacedQuery(tr *tracker.Tracker, q store.EntryQuery) store.EntryQuery {
	switch {
	case q.Key != "":
		return store.EntryQuery{Key: tr.LimitStorageKey(q.Key)}
	case q.Prefix != "":
		return store.EntryQuery{Prefix: tr.LimitStorageKey(q.Prefix)}
	default:
		return store.EntryQuery{Prefix: tr.LimitStorageKey("")}
	}
}

func writeResetResult(format output.Format, w io.Writer, result resetResult) error {
	switch format {
	case output.FormatJSON:
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	case output.FormatYAML:
		payload, err := yaml.Marshal(result)
		if err != nil {
			return err
		}
		_, err = w.Write(payload)
		return err
	}

	if result.DryRun {
		_, err := fmt.Fprintf(w, "Would delete %d rate limit entr(ies)\n", result.Matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d rate limit entr(ies)\n", result.Deleted, result.Matched)
	return err
}

func init() {
	limitResetCmd.Flags().Bool("all", false, "Reset every rate limit window")
	limitResetCmd.Flags().String("key", "", "Reset a single key (exact match)")
	limitResetCmd.Flags().String("prefix", "", "Reset keys with matching prefix")
	limitResetCmd.Flags().Bool("yes", false, "Confirm destructive reset")
	limitResetCmd.Flags().Bool("dry-run", false, "Show what would be deleted")
	addOutputFlags(limitResetCmd)
}
