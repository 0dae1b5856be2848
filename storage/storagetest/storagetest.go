// Package storagetest holds a conformance suite for storage.Storage
// backends.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggoodman/rpcparam/storage"
)

// Factory creates an empty Storage for one subtest. The suite closes it.
type Factory func(t *testing.T) storage.Storage

// RunStorageTests runs the complete Storage test suite against the provided
// factory.
func RunStorageTests(t *testing.T, factory Factory) {
	t.Run("SetAndGet", func(t *testing.T) { testSetAndGet(t, factory) })
	t.Run("GetNonExistent", func(t *testing.T) { testGetNonExistent(t, factory) })
	t.Run("TTL", func(t *testing.T) { testTTL(t, factory) })
	t.Run("Namespaces", func(t *testing.T) { testNamespaces(t, factory) })
	t.Run("IfNotExists", func(t *testing.T) { testIfNotExists(t, factory) })
	t.Run("List", func(t *testing.T) { testList(t, factory) })
	t.Run("DeleteKey", func(t *testing.T) { testDeleteKey(t, factory) })
	t.Run("DeleteNamespace", func(t *testing.T) { testDeleteNamespace(t, factory) })
}

func open(t *testing.T, factory Factory) storage.Storage {
	t.Helper()
	s := factory(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSetAndGet(t *testing.T, factory Factory) {
	s := open(t, factory)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	item, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "v1", string(item.Data))
	assert.False(t, item.CreatedAt.IsZero())
	assert.Nil(t, item.ExpiresAt)

	require.NoError(t, s.Set(ctx, "k", []byte("v2")))
	item, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "v2", string(item.Data))
}

func testGetNonExistent(t *testing.T, factory Factory) {
	s := open(t, factory)
	item, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func testTTL(t *testing.T, factory Factory) {
	s := open(t, factory)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("x"), storage.WithTTL(50*time.Millisecond)))
	item, err := s.Get(ctx, "short")
	require.NoError(t, err)
	require.NotNil(t, item)
	require.NotNil(t, item.ExpiresAt)

	time.Sleep(100 * time.Millisecond)
	item, err = s.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func testNamespaces(t *testing.T, factory Factory) {
	s := open(t, factory)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("global")))
	require.NoError(t, s.Set(ctx, "k", []byte("a"), storage.WithNamespace("a")))
	require.NoError(t, s.Set(ctx, "k", []byte("b"), storage.WithNamespace("b")))

	for ns, want := range map[string]string{"": "global", "a": "a", "b": "b"} {
		item, err := s.Get(ctx, "k", storage.WithNamespace(ns))
		require.NoError(t, err)
		require.NotNil(t, item, ns)
		assert.Equal(t, want, string(item.Data), ns)
	}
}

func testIfNotExists(t *testing.T, factory Factory) {
	s := open(t, factory)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "once", []byte("1"), storage.IfNotExists()))
	err := s.Set(ctx, "once", []byte("2"), storage.IfNotExists())
	assert.ErrorIs(t, err, storage.ErrExists)

	item, err := s.Get(ctx, "once")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "1", string(item.Data))
}

func testList(t *testing.T, factory Factory) {
	s := open(t, factory)
	ctx := context.Background()
	ns := storage.WithNamespace("list")

	keys, err := s.List(ctx, ns)
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, k := range []string{"b", "c", "a"} {
		require.NoError(t, s.Set(ctx, k, []byte(k), ns))
	}
	require.NoError(t, s.Set(ctx, "z", []byte("other"), storage.WithNamespace("other")))

	keys, err = s.List(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func testDeleteKey(t *testing.T, factory Factory) {
	s := open(t, factory)
	ctx := context.Background()
	ns := storage.WithNamespace("del")

	require.NoError(t, s.Set(ctx, "a", []byte("1"), ns))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), ns))
	require.NoError(t, s.Delete(ctx, ns, storage.WithKey("a")))

	item, err := s.Get(ctx, "a", ns)
	require.NoError(t, err)
	assert.Nil(t, item)
	item, err = s.Get(ctx, "b", ns)
	require.NoError(t, err)
	assert.NotNil(t, item)
}

func testDeleteNamespace(t *testing.T, factory Factory) {
	s := open(t, factory)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), storage.WithNamespace("gone")))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), storage.WithNamespace("gone")))
	require.NoError(t, s.Set(ctx, "a", []byte("3"), storage.WithNamespace("kept")))
	require.NoError(t, s.Delete(ctx, storage.WithNamespace("gone")))

	keys, err := s.List(ctx, storage.WithNamespace("gone"))
	require.NoError(t, err)
	assert.Empty(t, keys)

	item, err := s.Get(ctx, "a", storage.WithNamespace("kept"))
	require.NoError(t, err)
	assert.NotNil(t, item)
}
