package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/postforge/postforge/internal/kv"
)

// Pinger is implemented by backends with a cheap liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker adapts a Pinger to HealthChecker.
type PingChecker struct {
	Target Pinger
}

func (c PingChecker) CheckHealth(ctx context.Context) error {
	if c.Target == nil {
		return errors.New("ping target not configured")
	}
	return c.Target.Ping(ctx)
}

// StorageChecker writes, reads back and deletes a probe key.
type StorageChecker struct {
	Storage kv.Storage
	Key     string
}

func (c StorageChecker) CheckHealth(ctx context.Context) error {
	if c.Storage == nil {
		return errors.New("storage not configured")
	}

	key := c.Key
	if key == "" {
		key = "health.probe"
	}
	value := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	if err := c.Storage.Set(ctx, key, value); err != nil {
		return fmt.Errorf("write probe: %w", err)
	}
	defer c.Storage.Delete(context.WithoutCancel(ctx), key) // nolint:errcheck // probe cleanup

	got, err := c.Storage.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read probe: %w", err)
	}
	if !bytes.Equal(got, value) {
		return errors.New("probe value mismatch")
	}
	return nil
}
