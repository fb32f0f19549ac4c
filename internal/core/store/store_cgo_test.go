//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/postforge/postforge/internal/config"
	"github.com/postforge/postforge/internal/kv"
	"github.com/postforge/postforge/internal/tracker"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Path: filepath.Join(t.TempDir(), "postforge.db")})
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenMemoryStore(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.Equal(t, "libsql", s.Driver())
	require.NoError(t, s.Close())
}

func TestStoreKeyValue(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, s.Set(ctx, "a", []byte(`{"resetAt":1}`)))
	require.NoError(t, s.Set(ctx, "a", []byte(`{"resetAt":2}`)))

	value, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.JSONEq(t, `{"resetAt":2}`, string(value))

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStoreAdminByPrefix(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, key := range []string{"pf.rate_limit.a", "pf.rate_limit.b", "pf.cred_cache.a", "pf.rateXlimit.c"} {
		require.NoError(t, s.Set(ctx, key, []byte("{}")))
	}

	entries, err := s.ListEntries(ctx, EntryQuery{Prefix: "pf.rate_limit."})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "pf.rate_limit.a", entries[0].Key)

	count, err := s.CountEntries(ctx, EntryQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, 4, count)

	deleted, err := s.ResetEntries(ctx, EntryQuery{Prefix: "pf.rate_limit."})
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	count, err = s.CountEntries(ctx, EntryQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestTrackerOverStore(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	tr := tracker.New(s, tracker.WithNamespace("pf"))
	defer tr.Close()

	require.NoError(t, tr.RecordLimit(ctx, "x_api", 15*time.Minute))
	status := tr.IsLimited(ctx, "x_api")
	require.True(t, status.Limited)
	require.InDelta(t, float64(15*time.Minute), float64(status.Remaining), float64(2*time.Second))

	require.NoError(t, tr.CacheCredential(ctx, "x_auth", map[string]string{"user": "alice"}, time.Minute))
	var got map[string]string
	require.True(t, tr.DecodeCachedCredential(ctx, "x_auth", &got))
	require.Equal(t, "alice", got["user"])

	require.NoError(t, tr.Clear(ctx, "x_api"))
	require.False(t, tr.IsLimited(ctx, "x_api").Limited)
}
