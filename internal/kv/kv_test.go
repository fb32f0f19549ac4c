package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "missing")
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, m.Set(ctx, "a.one", []byte("1")))
	require.NoError(t, m.Set(ctx, "a.two", []byte("2")))
	require.NoError(t, m.Set(ctx, "b.one", []byte("3")))

	value, err := m.Get(ctx, "a.one")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	require.Equal(t, []string{"a.one", "a.two"}, m.Keys("a."))

	require.NoError(t, m.Delete(ctx, "a.one"))
	require.NoError(t, m.Delete(ctx, "a.one"))
	_, err = m.Get(ctx, "a.one")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	var m Memory

	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf))
	buf[0] = 'z'

	value, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(value))

	value[1] = 'z'
	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(again))
}
