package cache

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	sqliteStore, err := NewSQLiteStore("")
	require.NoError(t, err)
	return map[string]Store{
		"mem":    NewMemStore(),
		"sqlite": sqliteStore,
		"afero":  NewAferoStore(afero.NewMemMapFs(), "/cache"),
	}
}

func TestStoreLoadMiss(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Load(ctx, "ngsw.cache.app.v1", "/missing.js")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Store(ctx, "ngsw.cache.app.v1", "/index.html", []byte("INDEX")))

			body, ok, err := s.Load(ctx, "ngsw.cache.app.v1", "/index.html")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "INDEX", string(body))

			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Contains(t, keys, "ngsw.cache.app.v1")

			urls, err := s.URLs(ctx, "ngsw.cache.app.v1")
			require.NoError(t, err)
			assert.Contains(t, urls, "/index.html")
		})
	}
}

func TestStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Store(ctx, "c", "/a", []byte("one")))
			require.NoError(t, s.Store(ctx, "c", "/a", []byte("two")))

			body, ok, err := s.Load(ctx, "c", "/a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "two", string(body))
		})
	}
}

func TestStoreRemoveIsNoopOnAbsent(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, s.Remove(ctx, "never-existed"))
		})
	}
}

func TestStoreRemoveDeletesEntries(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Store(ctx, "c", "/a", []byte("one")))
			require.NoError(t, s.Remove(ctx, "c"))

			_, ok, err := s.Load(ctx, "c", "/a")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}
