package store

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	backends := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLite(filepath.Join(t.TempDir(), "agendabot.db"))
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			runStoreSuite(t, s)
		})
	}
}

func runStoreSuite(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("Get on missing key", func(t *testing.T) {
		_, ok, err := s.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Set then Get overwrites", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k", "one"))
		require.NoError(t, s.Set(ctx, "k", "two"))
		v, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "two", v)
	})

	t.Run("HSet merges fields", func(t *testing.T) {
		require.NoError(t, s.HSet(ctx, "h", map[string]string{"a": "1", "b": "2"}))
		require.NoError(t, s.HSet(ctx, "h", map[string]string{"b": "3"}))
		got, err := s.HGetAll(ctx, "h")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "1", "b": "3"}, got)
	})

	t.Run("HGetAll on missing hash is empty", func(t *testing.T) {
		got, err := s.HGetAll(ctx, "nohash")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("HSetNX only writes absent fields", func(t *testing.T) {
		wrote, err := s.HSetNX(ctx, "nx", "tz", "UTC")
		require.NoError(t, err)
		assert.True(t, wrote)

		wrote, err = s.HSetNX(ctx, "nx", "tz", "Europe/Paris")
		require.NoError(t, err)
		assert.False(t, wrote)

		got, err := s.HGetAll(ctx, "nx")
		require.NoError(t, err)
		assert.Equal(t, "UTC", got["tz"])
	})

	t.Run("HDel removes fields", func(t *testing.T) {
		require.NoError(t, s.HSet(ctx, "del", map[string]string{"x": "1", "y": "2"}))
		require.NoError(t, s.HDel(ctx, "del", "x", "absent"))
		got, err := s.HGetAll(ctx, "del")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"y": "2"}, got)
	})

	t.Run("SAdd reports new members", func(t *testing.T) {
		added, err := s.SAdd(ctx, "users", "15550001")
		require.NoError(t, err)
		assert.True(t, added)

		added, err = s.SAdd(ctx, "users", "15550001")
		require.NoError(t, err)
		assert.False(t, added)

		_, err = s.SAdd(ctx, "users", "15550002")
		require.NoError(t, err)

		member, err := s.SIsMember(ctx, "users", "15550001")
		require.NoError(t, err)
		assert.True(t, member)

		member, err = s.SIsMember(ctx, "users", "nobody")
		require.NoError(t, err)
		assert.False(t, member)

		members, err := s.SMembers(ctx, "users")
		require.NoError(t, err)
		sort.Strings(members)
		assert.Equal(t, []string{"15550001", "15550002"}, members)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}

func TestMemoryClosed(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Close())

	_, _, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Ping(context.Background()), ErrClosed)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "agendabot.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	_, err = s.SAdd(ctx, "users", "u1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	member, err := s.SIsMember(ctx, "users", "u1")
	require.NoError(t, err)
	assert.True(t, member)
}
