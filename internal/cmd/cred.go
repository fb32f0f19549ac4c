package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	errwrap "github.com/postforge/postforge/internal/errors"
	"github.com/postforge/postforge/internal/output"
)

var credCmd = &cobra.Command{
	Use:   "cred",
	Short: "Manage cached credential verifications",
}

var credSetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Cache a JSON payload for a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("payload")
		payload, err := parsePayloadFlag(raw)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if !cmd.Flags().Changed("ttl") {
			ttl = cfg.Tracker.AuthTTL
		}

		handle, err := openCLITracker(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer handle.Close() // nolint:errcheck // best-effort cleanup

		if err := handle.Tracker.CacheCredential(cmd.Context(), args[0], payload, ttl); err != nil {
			return errwrap.FromTrackerError(cmd.Context(), err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cached %s for %s\n", strings.TrimSpace(args[0]), ttl)
		return err
	},
}

func parsePayloadFlag(raw string) (json.RawMessage, error) {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return nil, errwrap.NewInvalidInputError("--payload is required")
	}
	if !json.Valid([]byte(payload)) {
		return nil, errwrap.NewInvalidInputError("--payload must be valid JSON")
	}
	return json.RawMessage(payload), nil
}

var credGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show the cached payload for a key",
	Args:  cobra.ExactArgs(1),
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

		key := strings.TrimSpace(args[0])
		entry, found := handle.Tracker.CredentialEntry(cmd.Context(), key)
		view, err := output.NewCredentialView(key, entry, found)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatCredential(view)
		if err != nil {
			return err
		}

		sink, err := openCommandSink(cmd, format, "cred."+key)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()
		return render(sink.writer, rendered)
	},
}

var credClearCmd = &cobra.Command{
	Use:   "clear <key>",
	Short: "Remove the cached payload for a key",
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

		if err := handle.Tracker.ClearCredential(cmd.Context(), args[0]); err != nil {
			return errwrap.FromTrackerError(cmd.Context(), err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cleared cached credential %s\n", strings.TrimSpace(args[0]))
		return err
	},
}

func init() {
	credSetCmd.Flags().String("payload", "", "JSON payload to cache")
	credSetCmd.Flags().Duration("ttl", 15*time.Minute, "Cache lifetime (default tracker.auth_ttl)")
	addOutputFlags(credGetCmd)

	credCmd.AddCommand(credSetCmd, credGetCmd, credClearCmd)
	rootCmd.AddCommand(credCmd)
}
