package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/postforge/postforge/internal/config"
)

func TestResolveTarget(t *testing.T) {
	t.Run("URLWithAuthToken", func(t *testing.T) {
		tgt, err := resolveTarget(config.StoreConfig{
			URL:       "libsql://tracker.turso.io",
			AuthToken: "token123",
		})
		require.NoError(t, err)
		require.Equal(t, targetRemote, tgt.kind)
		require.Equal(t, "libsql://tracker.turso.io?authToken=token123", tgt.dsn)
		require.Equal(t, "libsql://tracker.turso.io", tgt.Location())
	})

	t.Run("URLKeepsExplicitToken", func(t *testing.T) {
		tgt, err := resolveTarget(config.StoreConfig{
			URL:       "libsql://tracker.turso.io?authToken=mine",
			AuthToken: "other",
		})
		require.NoError(t, err)
		require.Equal(t, "libsql://tracker.turso.io?authToken=mine", tgt.dsn)
		require.NotContains(t, tgt.Location(), "mine")
	})

	t.Run("PlainPathGetsFilePrefix", func(t *testing.T) {
		dir := t.TempDir()
		tgt, err := resolveTarget(config.StoreConfig{Path: dir + "/nested/postforge.db"})
		require.NoError(t, err)
		require.Equal(t, targetFile, tgt.kind)
		require.Equal(t, "file:"+dir+"/nested/postforge.db", tgt.dsn)
		require.Equal(t, dir+"/nested/postforge.db", tgt.Location())

		require.NoError(t, tgt.prepare())
		require.DirExists(t, dir+"/nested")
	})

	t.Run("FileURI", func(t *testing.T) {
		tgt, err := resolveTarget(config.StoreConfig{Path: "file:/var/lib/postforge/state.db"})
		require.NoError(t, err)
		require.Equal(t, "/var/lib/postforge/state.db", tgt.local)
	})

	t.Run("MemoryPath", func(t *testing.T) {
		tgt, err := resolveTarget(config.StoreConfig{Path: ":memory:"})
		require.NoError(t, err)
		require.Equal(t, targetMemory, tgt.kind)
		require.Equal(t, ":memory:", tgt.dsn)
		require.NoError(t, tgt.prepare())
	})

	t.Run("PathMissing", func(t *testing.T) {
		_, err := resolveTarget(config.StoreConfig{})
		require.Error(t, err)
	})
}

func TestEntryQuery(t *testing.T) {
	require.Error(t, EntryQuery{}.Validate())
	require.NoError(t, EntryQuery{All: true}.Validate())

	where, args, err := EntryQuery{Prefix: "postforge.rate_limit."}.whereClause()
	require.NoError(t, err)
	require.Contains(t, where, "LIKE")
	require.Equal(t, []any{`postforge.rate\_limit.%`}, args)

	where, args, err = EntryQuery{Key: "k"}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE key = ?", where)
	require.Equal(t, []any{"k"}, args)
}

func TestNilStoreIsNotInitialized(t *testing.T) {
	var s *Store
	_, err := s.Get(context.Background(), "k")
	require.ErrorIs(t, err, errNotInitialized)
	require.NoError(t, s.Close())
	require.Empty(t, s.Driver())
	require.Empty(t, s.Location())
}
