package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/postforge/postforge/internal/config"
	"github.com/postforge/postforge/internal/core/store"
	"github.com/postforge/postforge/internal/kv"
	"github.com/postforge/postforge/internal/observability"
	"github.com/postforge/postforge/internal/tracker"
)

var errStoreBackendRequired = errors.New("this command requires tracker.backend=store")

// trackerHandle owns the tracker and whatever backend it was opened on.
type trackerHandle struct {
	Tracker *tracker.Tracker
	Storage kv.Storage
	// Store is nil for the memory backend.
	Store *store.Store
}

func (h *trackerHandle) Close() error {
	if h == nil {
		return nil
	}
	if h.Tracker != nil {
		h.Tracker.Close()
	}
	if h.Store != nil {
		return h.Store.Close()
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// openTracker builds the tracker on the configured backend. logger may be nil.
func openTracker(ctx context.Context, cfg *config.Config, logger tracker.Logger) (*trackerHandle, error) {
	handle := &trackerHandle{}

	switch strings.ToLower(strings.TrimSpace(cfg.Tracker.Backend)) {
	case config.BackendMemory:
		handle.Storage = kv.NewMemory()
	default:
		db, err := openStore(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		handle.Store = db
		handle.Storage = db
	}

	opts := []tracker.Option{tracker.WithNamespace(cfg.Tracker.Namespace)}
	if logger != nil {
		opts = append(opts, tracker.WithLogger(logger))
	}
	handle.Tracker = tracker.New(handle.Storage, opts...)
	return handle, nil
}

// openCLITracker loads config and opens the tracker with the CLI logger.
func openCLITracker(ctx context.Context, cfg *config.Config) (*trackerHandle, error) {
	if observability.CLILogger != nil {
		return openTracker(ctx, cfg, observability.CLILogger)
	}
	return openTracker(ctx, cfg, nil)
}
